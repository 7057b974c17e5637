package state

import (
	"math"
	"testing"

	"github.com/airchains-network/settlement-bridge/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootLedgerInitializeOnce(t *testing.T) {
	var l RootLedger
	require.NoError(t, l.InitializeRoot(types.Root{0x00}))
	require.ErrorIs(t, l.InitializeRoot(types.Root{0x01}), types.ErrAlreadyInitialized)
	assert.Equal(t, types.Root{0x00}, l.CurrentRoot())
	assert.Zero(t, l.Sequence())
}

func TestRootLedgerCommit(t *testing.T) {
	var l RootLedger
	_, err := l.Commit(types.Root{0x01})
	require.ErrorIs(t, err, types.ErrNotInitialized)

	require.NoError(t, l.InitializeRoot(types.Root{0x00}))
	for i := uint64(1); i <= 3; i++ {
		seq, err := l.Commit(types.Root{byte(i)})
		require.NoError(t, err)
		assert.Equal(t, i, seq)
	}
	assert.Equal(t, types.Root{0x03}, l.CurrentRoot())
}

func TestRootLedgerSequenceOverflow(t *testing.T) {
	var l RootLedger
	require.NoError(t, l.InitializeRoot(types.Root{0x00}))
	l.sequence = math.MaxUint64

	_, err := l.Commit(types.Root{0x01})
	require.ErrorIs(t, err, types.ErrSequenceOverflow)
	assert.Equal(t, types.Root{0x00}, l.CurrentRoot())
	assert.Equal(t, uint64(math.MaxUint64), l.Sequence())
}

func TestRootLedgerCurrentRootIsACopy(t *testing.T) {
	var l RootLedger
	require.NoError(t, l.InitializeRoot(types.Root{0xaa}))
	r := l.CurrentRoot()
	r[0] = 0xbb
	assert.Equal(t, types.Root{0xaa}, l.CurrentRoot())
}

func TestEscrowCreditDebit(t *testing.T) {
	var e EscrowLedger
	require.NoError(t, e.Credit(uint256.NewInt(100)))
	require.NoError(t, e.Debit(uint256.NewInt(60)))

	assert.Equal(t, uint64(40), e.Balance().Uint64())
	assert.Equal(t, uint64(100), e.TotalDeposited().Uint64())
	assert.Equal(t, uint64(60), e.TotalWithdrawn().Uint64())
	assertEscrowInvariant(t, &e)
}

func TestEscrowDebitOverdraft(t *testing.T) {
	var e EscrowLedger
	require.NoError(t, e.Credit(uint256.NewInt(100)))

	require.ErrorIs(t, e.Debit(uint256.NewInt(150)), types.ErrInsufficientEscrow)
	assert.Equal(t, uint64(100), e.Balance().Uint64())
	assert.True(t, e.TotalWithdrawn().IsZero())
}

func TestEscrowCreditOverflow(t *testing.T) {
	var e EscrowLedger
	require.NoError(t, e.Credit(new(uint256.Int).SetAllOne()))

	require.ErrorIs(t, e.Credit(uint256.NewInt(1)), types.ErrAmountOverflow)
	assert.Equal(t, new(uint256.Int).SetAllOne(), e.Balance())
	assertEscrowInvariant(t, &e)
}

func TestEscrowInvariantAcrossSequence(t *testing.T) {
	var e EscrowLedger
	for i, step := range []struct {
		credit bool
		amount uint64
	}{
		{true, 5}, {true, 7}, {false, 3}, {false, 9}, {true, 1}, {false, 2},
	} {
		amount := uint256.NewInt(step.amount)
		if step.credit {
			require.NoError(t, e.Credit(amount), "step %d", i)
		} else {
			require.NoError(t, e.Debit(amount), "step %d", i)
		}
		assertEscrowInvariant(t, &e)
	}
	assert.True(t, e.Balance().IsZero())
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	snap := &Snapshot{}
	require.NoError(t, snap.Roots.InitializeRoot(types.Root{0x01}))
	require.NoError(t, snap.Escrow.Credit(uint256.NewInt(10)))

	clone := snap.Clone()
	_, err := clone.Roots.Commit(types.Root{0x02})
	require.NoError(t, err)
	require.NoError(t, clone.Escrow.Debit(uint256.NewInt(4)))

	assert.Equal(t, types.Root{0x01}, snap.Roots.CurrentRoot())
	assert.Zero(t, snap.Roots.Sequence())
	assert.Equal(t, uint64(10), snap.Escrow.Balance().Uint64())
}

func TestSnapshotNonces(t *testing.T) {
	snap := &Snapshot{}
	for i := uint64(0); i < 3; i++ {
		n, err := snap.NextDepositNonce()
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	n, err := snap.NextWithdrawalNonce()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, uint64(3), snap.DepositCount)
	assert.Equal(t, uint64(1), snap.WithdrawalCount)
}

func TestSnapshotNonceOverflow(t *testing.T) {
	snap := &Snapshot{DepositCount: math.MaxUint64, WithdrawalCount: math.MaxUint64}

	_, err := snap.NextDepositNonce()
	require.ErrorIs(t, err, types.ErrNonceOverflow)
	_, err = snap.NextWithdrawalNonce()
	require.ErrorIs(t, err, types.ErrNonceOverflow)
	assert.Equal(t, uint64(math.MaxUint64), snap.DepositCount)
	assert.Equal(t, uint64(math.MaxUint64), snap.WithdrawalCount)
}

func assertEscrowInvariant(t *testing.T, e *EscrowLedger) {
	t.Helper()
	diff := new(uint256.Int).Sub(e.TotalDeposited(), e.TotalWithdrawn())
	assert.Equal(t, diff, e.Balance())
}
