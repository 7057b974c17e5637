// Package bridge is the settlement state machine. It serializes every
// operation, works on a clone of the stored state and commits the clone in
// one write only when the whole operation succeeded.
package bridge

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/airchains-network/settlement-bridge/auth"
	"github.com/airchains-network/settlement-bridge/batch"
	"github.com/airchains-network/settlement-bridge/custody"
	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/airchains-network/settlement-bridge/proof"
	"github.com/airchains-network/settlement-bridge/state"
	"github.com/airchains-network/settlement-bridge/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	opInitialize  = "initialize"
	opSubmitBatch = "submitBatch"
	opDeposit     = "deposit"
	opWithdraw    = "withdraw"
)

// Bridge orchestrates the root ledger, the escrow ledger, the sequencer
// guard and the proof gate.
type Bridge struct {
	// mu serializes operations. view guards State's reads against commits
	// and is never held across the proof gate.
	mu   sync.Mutex
	view sync.RWMutex

	store     *state.Store
	verifier  proof.Verifier
	custodian custody.Custodian
	oracle    identity.Oracle
	escrow    custody.AccountRef

	proofTimeout time.Duration

	log        *logrus.Logger
	now        func() time.Time
	registerer prometheus.Registerer
	metrics    *metrics
	feed       event.Feed
}

// New creates a Bridge over store. Funds move through custodian and callers
// are identified by oracle.
func New(store *state.Store, verifier proof.Verifier, custodian custody.Custodian, oracle identity.Oracle, opts ...Option) *Bridge {
	b := &Bridge{
		store:        store,
		verifier:     verifier,
		custodian:    custodian,
		oracle:       oracle,
		escrow:       DefaultEscrowAccount,
		proofTimeout: DefaultProofTimeout,
		log:          logrus.New(),
		now:          time.Now,
		metrics:      newMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.registerer != nil {
		b.metrics.register(b.registerer, b.log)
	}
	return b
}

// EscrowAccount is the purse that holds deposited funds.
func (b *Bridge) EscrowAccount() custody.AccountRef {
	return b.escrow
}

// Initialize records the first root and the sequencer. It succeeds exactly once.
func (b *Bridge) Initialize(ctx context.Context, initialRoot types.Root, sequencer identity.Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap, err := b.store.Load()
	if err != nil {
		return b.fail(opInitialize, err)
	}
	if snap.Initialized() {
		return b.fail(opInitialize, types.ErrAlreadyInitialized)
	}
	if sequencer.IsZero() {
		return b.fail(opInitialize, types.ErrInvalidSequencer)
	}

	next := &state.Snapshot{Sequencer: sequencer}
	if err := next.Roots.InitializeRoot(initialRoot); err != nil {
		return b.fail(opInitialize, err)
	}
	if err := b.commit(next); err != nil {
		return b.fail(opInitialize, err)
	}
	b.metrics.observe(next)
	b.log.WithFields(logrus.Fields{
		"root":      initialRoot.String(),
		"sequencer": sequencer.String(),
	}).Info("Bridge initialized")
	return nil
}

// SubmitBatch replaces the live root with newRoot. The caller must be the
// sequencer and proofBlob must pass the proof gate, in that order.
func (b *Bridge) SubmitBatch(ctx context.Context, newRoot types.Root, proofBlob []byte) (*batch.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap, err := b.load(opSubmitBatch)
	if err != nil {
		return nil, err
	}
	caller, err := b.oracle.CurrentCaller(ctx)
	if err != nil {
		return nil, b.fail(opSubmitBatch, err)
	}
	if !auth.NewGuard(snap.Sequencer).IsAuthorizedSequencer(caller) {
		return nil, b.fail(opSubmitBatch, types.ErrUnauthorized)
	}

	prev := snap.Roots.CurrentRoot()
	t := proof.Transition{
		Kind:         proof.KindBatch,
		PreviousRoot: prev,
		NewRoot:      newRoot,
		Sequence:     snap.Roots.Sequence() + 1,
	}
	if err := b.checkProof(ctx, t, proofBlob); err != nil {
		return nil, b.fail(opSubmitBatch, err)
	}

	next := snap.Clone()
	seq, err := next.Roots.Commit(newRoot)
	if err != nil {
		return nil, b.fail(opSubmitBatch, err)
	}
	rec := batch.NewRecord(seq, prev, newRoot, proofBlob, caller, b.now().Unix())
	if err := b.commit(next, batch.Stage(rec)); err != nil {
		return nil, b.fail(opSubmitBatch, err)
	}

	b.metrics.batches.Inc()
	b.metrics.observe(next)
	b.log.WithFields(logrus.Fields{
		"batch":      seq,
		"root":       newRoot.String(),
		"commitment": rec.Commitment.Hex(),
	}).Info("Batch accepted")
	b.publish(Event{Kind: EventBatch, Batch: rec})
	return rec, nil
}

// Deposit moves amount from source into escrow and records the deposit for
// the sequencer to credit l2Address in a later batch. An empty source means
// the caller's main purse; any other source must be that purse.
func (b *Bridge) Deposit(ctx context.Context, amount *uint256.Int, source custody.AccountRef, l2Address string) (*state.DepositRecord, error) {
	if amount == nil || amount.IsZero() {
		return nil, b.fail(opDeposit, types.ErrZeroAmount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	snap, err := b.load(opDeposit)
	if err != nil {
		return nil, err
	}
	caller, err := b.oracle.CurrentCaller(ctx)
	if err != nil {
		return nil, b.fail(opDeposit, err)
	}
	owned := custody.PurseOf(caller)
	if source == "" {
		source = owned
	}
	if source != owned {
		return nil, b.fail(opDeposit, fmt.Errorf("%w: purse %s is not owned by %s", types.ErrTransferFailed, source, caller))
	}

	next := snap.Clone()
	if err := next.Escrow.Credit(amount); err != nil {
		return nil, b.fail(opDeposit, err)
	}
	nonce, err := next.NextDepositNonce()
	if err != nil {
		return nil, b.fail(opDeposit, err)
	}

	rec := &state.DepositRecord{
		Nonce:     nonce,
		ID:        depositID(caller, source, l2Address, amount, nonce),
		Caller:    caller,
		Source:    source,
		L2Address: l2Address,
		Amount:    amount.Clone(),
		Timestamp: b.now().Unix(),
	}
	if err := b.transferAndCommit(ctx, opDeposit, source, b.escrow, amount, next, state.StageDeposit(rec)); err != nil {
		return nil, err
	}

	b.metrics.deposits.Inc()
	b.metrics.observe(next)
	b.log.WithFields(logrus.Fields{
		"nonce":  nonce,
		"amount": amount.Dec(),
		"source": source,
		"l2":     l2Address,
	}).Info("Deposit recorded")
	b.publish(Event{Kind: EventDeposit, Deposit: rec})
	return rec, nil
}

// Withdraw pays amount out of escrow to recipient. The proof must certify
// the exit on L2, and the escrow balance is checked independently of it.
func (b *Bridge) Withdraw(ctx context.Context, amount *uint256.Int, proofBlob []byte, recipient custody.AccountRef) (*state.WithdrawalRecord, error) {
	if amount == nil || amount.IsZero() {
		return nil, b.fail(opWithdraw, types.ErrZeroAmount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	snap, err := b.load(opWithdraw)
	if err != nil {
		return nil, err
	}
	caller, err := b.oracle.CurrentCaller(ctx)
	if err != nil {
		return nil, b.fail(opWithdraw, err)
	}

	next := snap.Clone()
	nonce, err := next.NextWithdrawalNonce()
	if err != nil {
		return nil, b.fail(opWithdraw, err)
	}
	t := proof.Transition{
		Kind:         proof.KindWithdrawal,
		PreviousRoot: snap.Roots.CurrentRoot(),
		Sequence:     snap.Roots.Sequence(),
		Amount:       amount,
		Recipient:    string(recipient),
		Nonce:        nonce,
	}
	if err := b.checkProof(ctx, t, proofBlob); err != nil {
		return nil, b.fail(opWithdraw, err)
	}

	if err := next.Escrow.Debit(amount); err != nil {
		return nil, b.fail(opWithdraw, err)
	}

	rec := &state.WithdrawalRecord{
		Nonce:     nonce,
		ID:        withdrawalID(caller, recipient, amount, nonce),
		Caller:    caller,
		Recipient: recipient,
		Amount:    amount.Clone(),
		ProofHash: batch.ProofHash(proofBlob),
		Timestamp: b.now().Unix(),
	}
	if err := b.transferAndCommit(ctx, opWithdraw, b.escrow, recipient, amount, next, state.StageWithdrawal(rec)); err != nil {
		return nil, err
	}

	b.metrics.withdrawals.Inc()
	b.metrics.observe(next)
	b.log.WithFields(logrus.Fields{
		"nonce":     nonce,
		"amount":    amount.Dec(),
		"recipient": recipient,
	}).Info("Withdrawal paid")
	b.publish(Event{Kind: EventWithdrawal, Withdrawal: rec})
	return rec, nil
}

// State returns the current root, sequence and escrow figures.
func (b *Bridge) State(ctx context.Context) (types.BridgeState, error) {
	b.view.RLock()
	defer b.view.RUnlock()

	snap, err := b.store.Load()
	if err != nil {
		return types.BridgeState{}, &OpError{Op: "state", Err: err}
	}
	return snap.View(), nil
}

// Batch returns batch n, or nil if there is none.
func (b *Bridge) Batch(n uint64) (*batch.Record, error) {
	return batch.Load(b.store.DB(), n)
}

// LatestBatch returns the most recent batch, or nil before the first one.
func (b *Bridge) LatestBatch() (*batch.Record, error) {
	return batch.Latest(b.store.DB())
}

// DepositRecord returns the deposit with the given nonce, or nil.
func (b *Bridge) DepositRecord(nonce uint64) (*state.DepositRecord, error) {
	return b.store.Deposit(nonce)
}

// Deposits lists up to limit deposits starting at nonce from.
func (b *Bridge) Deposits(from uint64, limit int) ([]*state.DepositRecord, error) {
	return b.store.Deposits(from, limit)
}

// WithdrawalRecord returns the withdrawal with the given nonce, or nil.
func (b *Bridge) WithdrawalRecord(nonce uint64) (*state.WithdrawalRecord, error) {
	return b.store.Withdrawal(nonce)
}

func (b *Bridge) load(op string) (*state.Snapshot, error) {
	snap, err := b.store.Load()
	if err != nil {
		return nil, b.fail(op, err)
	}
	if !snap.Initialized() {
		return nil, b.fail(op, types.ErrNotInitialized)
	}
	return snap, nil
}

func (b *Bridge) commit(next *state.Snapshot, stages ...state.Stage) error {
	b.view.Lock()
	defer b.view.Unlock()
	return b.store.Commit(next, stages...)
}

// checkProof runs the proof gate within the proof timeout. A verifier error,
// including the deadline passing, rejects the proof.
func (b *Bridge) checkProof(ctx context.Context, t proof.Transition, proofBlob []byte) error {
	if b.proofTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.proofTimeout)
		defer cancel()
	}
	ok, err := b.verifier.Verify(ctx, t, proofBlob)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidProof, err)
	}
	if !ok {
		return types.ErrInvalidProof
	}
	return nil
}

// transferAndCommit moves the funds and then commits next. If the commit
// fails the transfer is reversed, so that custody and ledger stay in step.
func (b *Bridge) transferAndCommit(ctx context.Context, op string, from, to custody.AccountRef, amount *uint256.Int, next *state.Snapshot, stage state.Stage) error {
	if err := b.custodian.Transfer(ctx, from, to, amount); err != nil {
		return b.fail(op, fmt.Errorf("%w: %w", types.ErrTransferFailed, err))
	}
	if err := b.commit(next, stage); err != nil {
		if rerr := b.custodian.Transfer(context.WithoutCancel(ctx), to, from, amount); rerr != nil {
			b.log.WithFields(logrus.Fields{
				"op":     op,
				"from":   to,
				"to":     from,
				"amount": amount.Dec(),
			}).Errorf("Failed to reverse transfer after commit error %v: %v", err, rerr)
		}
		return b.fail(op, err)
	}
	return nil
}

func (b *Bridge) fail(op string, err error) error {
	kind := types.Kind(err)
	b.metrics.rejections.WithLabelValues(op, kind).Inc()
	if kind == "internal" {
		b.log.Errorf("Bridge %s failed: %v", op, err)
	} else {
		b.log.Debugf("Bridge %s rejected: %v", op, err)
	}
	return &OpError{Op: op, Err: err}
}

// depositID derives a deterministic deposit ID from its parameters.
func depositID(caller identity.Identity, source custody.AccountRef, l2Address string, amount *uint256.Int, nonce uint64) common.Hash {
	var data []byte
	data = append(data, caller[:]...)
	data = append(data, source...)
	data = append(data, 0)
	data = append(data, l2Address...)
	data = append(data, 0)
	amt := amount.Bytes32()
	data = append(data, amt[:]...)
	data = binary.BigEndian.AppendUint64(data, nonce)
	return crypto.Keccak256Hash(data)
}

// withdrawalID derives a deterministic withdrawal ID from its parameters.
func withdrawalID(caller identity.Identity, recipient custody.AccountRef, amount *uint256.Int, nonce uint64) common.Hash {
	var data []byte
	data = append(data, caller[:]...)
	data = append(data, recipient...)
	data = append(data, 0)
	amt := amount.Bytes32()
	data = append(data, amt[:]...)
	data = binary.BigEndian.AppendUint64(data, nonce)
	return crypto.Keccak256Hash(data)
}
