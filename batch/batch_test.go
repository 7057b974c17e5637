package batch

import (
	"testing"

	"github.com/airchains-network/settlement-bridge/db"
	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/airchains-network/settlement-bridge/state"
	"github.com/airchains-network/settlement-bridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCommitmentBindsEveryField(t *testing.T) {
	base := ComputeCommitment(types.Root{0x01}, types.Root{0x02}, 1)
	assert.Equal(t, base, ComputeCommitment(types.Root{0x01}, types.Root{0x02}, 1))
	assert.NotEqual(t, base, ComputeCommitment(types.Root{0x01}, types.Root{0x02}, 2))
	assert.NotEqual(t, base, ComputeCommitment(types.Root{0x01}, types.Root{0x03}, 1))
	assert.NotEqual(t, base, ComputeCommitment(types.Root{0x00}, types.Root{0x02}, 1))
}

func TestStageLoadLatest(t *testing.T) {
	database, err := db.NewMemLevelDB()
	require.NoError(t, err)
	defer database.Close()
	store := state.NewStore(database)

	latest, err := Latest(database)
	require.NoError(t, err)
	assert.Nil(t, latest)

	snap := &state.Snapshot{Sequencer: identity.Identity{7}}
	require.NoError(t, snap.Roots.InitializeRoot(types.Root{0x00}))

	prev := snap.Roots.CurrentRoot()
	for i, next := range []types.Root{{0x01}, {0x02}, {0x03}} {
		n, err := snap.Roots.Commit(next)
		require.NoError(t, err)
		rec := NewRecord(n, prev, next, []byte{byte(i + 1)}, snap.Sequencer, 1700000000+int64(i))
		require.NoError(t, store.Commit(snap, Stage(rec)))
		prev = next
	}

	rec, err := Load(database, 2)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.Root{0x01}, rec.PreviousStateRoot)
	assert.Equal(t, types.Root{0x02}, rec.CurrentStateRoot)
	assert.Equal(t, ProofHash([]byte{0x02}), rec.ProofHash)
	assert.Equal(t, ComputeCommitment(types.Root{0x01}, types.Root{0x02}, 2), rec.Commitment)
	assert.Equal(t, identity.Identity{7}, rec.Submitter)

	rec, err = Load(database, 9)
	require.NoError(t, err)
	assert.Nil(t, rec)

	latest, err = Latest(database)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, uint64(3), latest.BatchNo)
	assert.Equal(t, types.Root{0x03}, latest.CurrentStateRoot)
}
