package custody

import (
	"context"
	"testing"

	"github.com/airchains-network/settlement-bridge/db"
	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewLedger(database, logrus.New())
}

func TestLedgerMintAndTransfer(t *testing.T) {
	l := newTestLedger(t)
	alice := PurseOf(identity.Identity{1})
	bob := PurseOf(identity.Identity{2})

	require.NoError(t, l.Mint(alice, uint256.NewInt(100)))
	require.NoError(t, l.Transfer(context.Background(), alice, bob, uint256.NewInt(30)))

	bal, err := l.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(70), bal.Uint64())

	bal, err = l.Balance(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(30), bal.Uint64())
}

func TestLedgerTransferInsufficientLeavesBalances(t *testing.T) {
	l := newTestLedger(t)
	alice := PurseOf(identity.Identity{1})
	bob := PurseOf(identity.Identity{2})
	require.NoError(t, l.Mint(alice, uint256.NewInt(10)))

	err := l.Transfer(context.Background(), alice, bob, uint256.NewInt(11))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	bal, err := l.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(10), bal.Uint64())
	bal, err = l.Balance(bob)
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}

func TestLedgerRejectsBadPurses(t *testing.T) {
	l := newTestLedger(t)
	alice := PurseOf(identity.Identity{1})

	require.ErrorIs(t, l.Transfer(context.Background(), alice, alice, uint256.NewInt(1)), ErrSamePurse)
	require.ErrorIs(t, l.Transfer(context.Background(), "", alice, uint256.NewInt(1)), ErrInvalidPurse)
	require.ErrorIs(t, l.Mint("", uint256.NewInt(1)), ErrInvalidPurse)
}

func TestLedgerMintOverflow(t *testing.T) {
	l := newTestLedger(t)
	alice := PurseOf(identity.Identity{1})
	max := new(uint256.Int).SetAllOne()

	require.NoError(t, l.Mint(alice, max))
	require.ErrorIs(t, l.Mint(alice, uint256.NewInt(1)), ErrBalanceOverflow)
}

func TestLedgerHonoursCancelledContext(t *testing.T) {
	l := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Transfer(ctx, PurseOf(identity.Identity{1}), PurseOf(identity.Identity{2}), uint256.NewInt(1))
	require.ErrorIs(t, err, context.Canceled)
}
