package state

import (
	"encoding/binary"
	"encoding/json"

	"github.com/airchains-network/settlement-bridge/db"
	"github.com/airchains-network/settlement-bridge/types"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	stateRootKey       = "state_root"
	batchCountKey      = "batch_count"
	sequencerKey       = "sequencer"
	escrowBalanceKey   = "escrow_balance"
	totalDepositsKey   = "total_deposits"
	totalWithdrawalKey = "total_withdrawals"
	depositCountKey    = "deposit_count"
	withdrawalCountKey = "withdrawal_count"

	depositPrefix    = "deposit:"
	withdrawalPrefix = "withdrawal:"
)

// Stage adds writes to the batch that Store.Commit applies atomically.
type Stage func(b *leveldb.Batch) error

// Store persists bridge state under named keys. It does not cache: every
// Load is a round trip to the database.
type Store struct {
	db db.DB
}

func NewStore(database db.DB) *Store {
	return &Store{db: database}
}

// DB exposes the backing database for record packages that stage their own keys.
func (s *Store) DB() db.DB {
	return s.db
}

// Load reads the complete snapshot. An uninitialized store yields a zero snapshot.
func (s *Store) Load() (*Snapshot, error) {
	snap := &Snapshot{}
	ok, err := s.db.Has([]byte(stateRootKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read state root")
	}
	if !ok {
		return snap, nil
	}

	root, err := s.db.Get([]byte(stateRootKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read state root")
	}
	snap.Roots.root = types.Root(append([]byte{}, root...))
	snap.Roots.initialized = true

	if snap.Roots.sequence, err = s.getUint64(batchCountKey); err != nil {
		return nil, err
	}
	seq, err := s.db.Get([]byte(sequencerKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sequencer")
	}
	if len(seq) != len(snap.Sequencer) {
		return nil, errors.Errorf("corrupt sequencer entry of %d bytes", len(seq))
	}
	copy(snap.Sequencer[:], seq)

	amounts := []struct {
		key string
		set func([]byte)
	}{
		{escrowBalanceKey, func(b []byte) { snap.Escrow.balance.SetBytes(b) }},
		{totalDepositsKey, func(b []byte) { snap.Escrow.deposited.SetBytes(b) }},
		{totalWithdrawalKey, func(b []byte) { snap.Escrow.withdrawn.SetBytes(b) }},
	}
	for _, a := range amounts {
		data, err := s.db.Get([]byte(a.key))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", a.key)
		}
		if len(data) > 32 {
			return nil, errors.Errorf("corrupt %s entry of %d bytes", a.key, len(data))
		}
		a.set(data)
	}

	if snap.DepositCount, err = s.getUint64(depositCountKey); err != nil {
		return nil, err
	}
	if snap.WithdrawalCount, err = s.getUint64(withdrawalCountKey); err != nil {
		return nil, err
	}
	return snap, nil
}

// Commit writes snap and the staged records in a single atomic batch.
func (s *Store) Commit(snap *Snapshot, stages ...Stage) error {
	if !snap.Initialized() {
		return errors.New("refusing to commit an uninitialized snapshot")
	}
	b := new(leveldb.Batch)
	b.Put([]byte(stateRootKey), snap.Roots.root)
	b.Put([]byte(batchCountKey), encodeUint64(snap.Roots.sequence))
	b.Put([]byte(sequencerKey), snap.Sequencer[:])
	putAmount(b, escrowBalanceKey, snap.Escrow.balance.Bytes32())
	putAmount(b, totalDepositsKey, snap.Escrow.deposited.Bytes32())
	putAmount(b, totalWithdrawalKey, snap.Escrow.withdrawn.Bytes32())
	b.Put([]byte(depositCountKey), encodeUint64(snap.DepositCount))
	b.Put([]byte(withdrawalCountKey), encodeUint64(snap.WithdrawalCount))

	for _, stage := range stages {
		if err := stage(b); err != nil {
			return err
		}
	}
	if err := s.db.Write(b); err != nil {
		return errors.Wrap(err, "failed to write state")
	}
	return nil
}

// StageDeposit stages rec under its nonce.
func StageDeposit(rec *DepositRecord) Stage {
	return stageJSON(depositPrefix, rec.Nonce, rec)
}

// StageWithdrawal stages rec under its nonce.
func StageWithdrawal(rec *WithdrawalRecord) Stage {
	return stageJSON(withdrawalPrefix, rec.Nonce, rec)
}

// Deposit returns the deposit with the given nonce, or nil if there is none.
func (s *Store) Deposit(nonce uint64) (*DepositRecord, error) {
	var rec DepositRecord
	ok, err := s.getJSON(RecordKey(depositPrefix, nonce), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// Deposits returns up to limit deposits starting at nonce from.
func (s *Store) Deposits(from uint64, limit int) ([]*DepositRecord, error) {
	out := make([]*DepositRecord, 0)
	it := s.db.NewIterator([]byte(depositPrefix))
	defer it.Release()
	for ok := it.Seek(RecordKey(depositPrefix, from)); ok && len(out) < limit; ok = it.Next() {
		var rec DepositRecord
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			return nil, errors.Wrapf(err, "failed to decode deposit %x", it.Key())
		}
		out = append(out, &rec)
	}
	return out, errors.Wrap(it.Error(), "failed to iterate deposits")
}

// Withdrawal returns the withdrawal with the given nonce, or nil if there is none.
func (s *Store) Withdrawal(nonce uint64) (*WithdrawalRecord, error) {
	var rec WithdrawalRecord
	ok, err := s.getJSON(RecordKey(withdrawalPrefix, nonce), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// RecordKey is prefix followed by the big-endian index, so that records
// iterate in index order.
func RecordKey(prefix string, index uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], index)
	return key
}

func stageJSON(prefix string, index uint64, v any) Stage {
	return func(b *leveldb.Batch) error {
		data, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "failed to encode %s%d", prefix, index)
		}
		b.Put(RecordKey(prefix, index), data)
		return nil
	}
}

func (s *Store) getJSON(key []byte, v any) (bool, error) {
	data, err := s.db.Get(key)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %x", key)
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "failed to decode %x", key)
	}
	return true, nil
}

func (s *Store) getUint64(key string) (uint64, error) {
	data, err := s.db.Get([]byte(key))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s", key)
	}
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, errors.Errorf("corrupt %s entry of %d bytes", key, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func encodeUint64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func putAmount(b *leveldb.Batch, key string, v [32]byte) {
	b.Put([]byte(key), v[:])
}
