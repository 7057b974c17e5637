package custody

import (
	"context"
	"sync"

	"github.com/airchains-network/settlement-bridge/db"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
)

const pursePrefix = "purse:"

// Ledger keeps purse balances in a database.
type Ledger struct {
	mu  sync.Mutex
	db  db.DB
	log *logrus.Logger
}

func NewLedger(database db.DB, log *logrus.Logger) *Ledger {
	return &Ledger{db: database, log: log}
}

// Balance returns the balance of ref. Unknown purses hold zero.
func (l *Ledger) Balance(ref AccountRef) (*uint256.Int, error) {
	if ref == "" {
		return nil, ErrInvalidPurse
	}
	return l.balance(ref)
}

// Mint credits ref out of thin air. It backs the development faucet.
func (l *Ledger) Mint(ref AccountRef, amount *uint256.Int) error {
	if ref == "" {
		return ErrInvalidPurse
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, err := l.balance(ref)
	if err != nil {
		return err
	}
	if _, overflow := bal.AddOverflow(bal, amount); overflow {
		return ErrBalanceOverflow
	}
	if err := l.db.Put(purseKey(ref), encodeBalance(bal)); err != nil {
		return errors.Wrapf(err, "failed to save purse %s", ref)
	}
	l.log.Infof("Minted %s into purse %s", amount, ref)
	return nil
}

// Transfer moves amount from one purse to another in a single batch write.
func (l *Ledger) Transfer(ctx context.Context, from, to AccountRef, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if from == "" || to == "" {
		return ErrInvalidPurse
	}
	if from == to {
		return ErrSamePurse
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBal, err := l.balance(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return errors.Wrapf(ErrInsufficientFunds, "purse %s has %s, need %s", from, fromBal, amount)
	}
	toBal, err := l.balance(to)
	if err != nil {
		return err
	}
	if _, overflow := toBal.AddOverflow(toBal, amount); overflow {
		return ErrBalanceOverflow
	}
	fromBal.Sub(fromBal, amount)

	b := new(leveldb.Batch)
	b.Put(purseKey(from), encodeBalance(fromBal))
	b.Put(purseKey(to), encodeBalance(toBal))
	if err := l.db.Write(b); err != nil {
		return errors.Wrap(err, "failed to write transfer")
	}
	l.log.Debugf("Transferred %s from %s to %s", amount, from, to)
	return nil
}

func (l *Ledger) balance(ref AccountRef) (*uint256.Int, error) {
	data, err := l.db.Get(purseKey(ref))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get purse %s", ref)
	}
	if len(data) > 32 {
		return nil, errors.Errorf("corrupt purse %s of %d bytes", ref, len(data))
	}
	return new(uint256.Int).SetBytes(data), nil
}

func purseKey(ref AccountRef) []byte {
	return []byte(pursePrefix + string(ref))
}

func encodeBalance(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}
