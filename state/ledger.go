package state

import (
	"math"

	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/airchains-network/settlement-bridge/types"
	"github.com/holiman/uint256"
)

// RootLedger holds the live state root and the batch sequence.
type RootLedger struct {
	root        types.Root
	sequence    uint64
	initialized bool
}

// InitializeRoot sets the first root. It can succeed only once.
func (l *RootLedger) InitializeRoot(initial types.Root) error {
	if l.initialized {
		return types.ErrAlreadyInitialized
	}
	l.root = initial.Copy()
	if l.root == nil {
		l.root = types.Root{}
	}
	l.sequence = 0
	l.initialized = true
	return nil
}

func (l *RootLedger) Initialized() bool {
	return l.initialized
}

func (l *RootLedger) CurrentRoot() types.Root {
	return l.root.Copy()
}

func (l *RootLedger) Sequence() uint64 {
	return l.sequence
}

// Commit replaces the root and returns the new batch sequence.
func (l *RootLedger) Commit(newRoot types.Root) (uint64, error) {
	if !l.initialized {
		return 0, types.ErrNotInitialized
	}
	if l.sequence == math.MaxUint64 {
		return 0, types.ErrSequenceOverflow
	}
	l.root = newRoot.Copy()
	if l.root == nil {
		l.root = types.Root{}
	}
	l.sequence++
	return l.sequence, nil
}

// EscrowLedger tracks the custodial balance and the running totals.
// balance == deposited - withdrawn holds after every method.
type EscrowLedger struct {
	balance   uint256.Int
	deposited uint256.Int
	withdrawn uint256.Int
}

func (e *EscrowLedger) Balance() *uint256.Int {
	return e.balance.Clone()
}

func (e *EscrowLedger) TotalDeposited() *uint256.Int {
	return e.deposited.Clone()
}

func (e *EscrowLedger) TotalWithdrawn() *uint256.Int {
	return e.withdrawn.Clone()
}

// Credit records amount entering custody.
func (e *EscrowLedger) Credit(amount *uint256.Int) error {
	balance, overflow := new(uint256.Int).AddOverflow(&e.balance, amount)
	if overflow {
		return types.ErrAmountOverflow
	}
	deposited, overflow := new(uint256.Int).AddOverflow(&e.deposited, amount)
	if overflow {
		return types.ErrAmountOverflow
	}
	e.balance.Set(balance)
	e.deposited.Set(deposited)
	return nil
}

// Debit records amount leaving custody. It refuses to take the balance
// below zero regardless of what the proof gate decided.
func (e *EscrowLedger) Debit(amount *uint256.Int) error {
	if amount.Gt(&e.balance) {
		return types.ErrInsufficientEscrow
	}
	withdrawn, overflow := new(uint256.Int).AddOverflow(&e.withdrawn, amount)
	if overflow {
		return types.ErrAmountOverflow
	}
	e.balance.Sub(&e.balance, amount)
	e.withdrawn.Set(withdrawn)
	return nil
}

// Snapshot is the complete bridge state read from the store. Operations
// mutate a clone and hand it back to Store.Commit only on success.
type Snapshot struct {
	Roots           RootLedger
	Escrow          EscrowLedger
	Sequencer       identity.Identity
	DepositCount    uint64
	WithdrawalCount uint64
}

func (s *Snapshot) Initialized() bool {
	return s.Roots.initialized
}

// NextDepositNonce claims the next deposit nonce.
func (s *Snapshot) NextDepositNonce() (uint64, error) {
	return claim(&s.DepositCount)
}

// NextWithdrawalNonce claims the next withdrawal nonce.
func (s *Snapshot) NextWithdrawalNonce() (uint64, error) {
	return claim(&s.WithdrawalCount)
}

func claim(counter *uint64) (uint64, error) {
	if *counter == math.MaxUint64 {
		return 0, types.ErrNonceOverflow
	}
	n := *counter
	*counter++
	return n, nil
}

func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.Roots.root = s.Roots.root.Copy()
	return &out
}

// View renders the snapshot for the read-only state query.
func (s *Snapshot) View() types.BridgeState {
	view := types.BridgeState{
		Initialized:     s.Initialized(),
		CurrentRoot:     s.Roots.CurrentRoot(),
		BatchSequence:   s.Roots.Sequence(),
		EscrowBalance:   s.Escrow.Balance(),
		TotalDeposited:  s.Escrow.TotalDeposited(),
		TotalWithdrawn:  s.Escrow.TotalWithdrawn(),
		DepositCount:    s.DepositCount,
		WithdrawalCount: s.WithdrawalCount,
	}
	if !s.Sequencer.IsZero() {
		view.Sequencer = s.Sequencer.String()
	}
	return view
}
