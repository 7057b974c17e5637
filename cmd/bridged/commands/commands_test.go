package commands

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/airchains-network/settlement-bridge/bridge"
	"github.com/airchains-network/settlement-bridge/config"
	"github.com/airchains-network/settlement-bridge/custody"
	"github.com/airchains-network/settlement-bridge/db"
	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/airchains-network/settlement-bridge/proof"
	"github.com/airchains-network/settlement-bridge/proxy"
	"github.com/airchains-network/settlement-bridge/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func field(t *testing.T, out, name string) string {
	t.Helper()
	m := regexp.MustCompile(`(?m)^` + name + `: (\S+)$`).FindStringSubmatch(out)
	require.NotNil(t, m, "missing %q in output:\n%s", name, out)
	return m[1]
}

func TestInitWritesConfig(t *testing.T) {
	home := t.TempDir()
	seq := "account-hash-" + strings.Repeat("ab", 32)

	out, err := run(t, "init", "--home", home,
		"--chain-id", "bridge-devnet",
		"--bridge.sequencer", seq,
		"--bridge.initial-root", "0xaa",
		"--proof.policy", "merkle",
		"--proof.expression", "",
		"--proof.verifier-url", "",
		"--custody.faucet=false",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Proof Policy: merkle")

	cfg, err := config.LoadConfig(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, seq, cfg.Bridge.Sequencer)
	assert.Equal(t, "bridge-devnet", cfg.General.ChainID)
	assert.Equal(t, "0xaa", cfg.Bridge.InitialRoot)
	assert.Equal(t, proof.PolicyMerkle, cfg.Proof.Policy)
	assert.DirExists(t, cfg.General.KeysDir)
	assert.DirExists(t, cfg.Database.StatePath)
	assert.DirExists(t, cfg.Database.CustodyPath)
}

func TestInitRejectsInvalidSettings(t *testing.T) {
	home := t.TempDir()
	_, err := run(t, "init", "--home", home, "--bridge.sequencer", "nobody", "--proof.policy", "nonempty")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(home, "config.toml"))
}

func TestCreateAccountAndAccountHash(t *testing.T) {
	home := t.TempDir()

	out, err := run(t, "create-account", "alice", "--home", home)
	require.NoError(t, err)

	pub := field(t, out, "Public Key")
	hash := field(t, out, "Account Hash")
	assert.Equal(t, "main-purse-"+strings.TrimPrefix(hash, "account-hash-"), field(t, out, "Purse"))
	assert.FileExists(t, filepath.Join(home, "keys", "alice.key"))

	out, err = run(t, "account-hash", pub)
	require.NoError(t, err)
	assert.Equal(t, hash, strings.TrimSpace(out))

	_, err = run(t, "create-account", "alice", "--home", home)
	assert.ErrorContains(t, err, "already exists")
}

func TestAccountHashRejectsBadKey(t *testing.T) {
	_, err := run(t, "account-hash", "03abcd")
	assert.Error(t, err)
}

func TestSignRecoversToAccount(t *testing.T) {
	home := t.TempDir()
	out, err := run(t, "create-account", "bob", "--home", home)
	require.NoError(t, err)
	hash := field(t, out, "Account Hash")

	params := `["0x01","0x02"]`
	out, err = run(t, "sign", "bob", "bridge_submitBatch", params, "--home", home, "--nonce", "7", "--chain-id", "")
	require.NoError(t, err)

	sig, err := hexutil.Decode(strings.TrimSpace(out))
	require.NoError(t, err)
	digest := proxy.RequestHash(config.DefaultChainID, "bridge_submitBatch", []byte(params), 7)
	pub, err := crypto.SigToPub(digest[:], sig)
	require.NoError(t, err)
	assert.Equal(t, hash, identity.FromSecp256k1(pub).String())

	out, err = run(t, "sign", "bob", "bridge_submitBatch", params, "--home", home, "--nonce", "7", "--chain-id", "other")
	require.NoError(t, err)
	sig, err = hexutil.Decode(strings.TrimSpace(out))
	require.NoError(t, err)
	digest = proxy.RequestHash("other", "bridge_submitBatch", []byte(params), 7)
	pub, err = crypto.SigToPub(digest[:], sig)
	require.NoError(t, err)
	assert.Equal(t, hash, identity.FromSecp256k1(pub).String())

	_, err = run(t, "sign", "bob", "bridge_submitBatch", "{not json", "--home", home)
	assert.Error(t, err)
	_, err = run(t, "sign", "carol", "bridge_submitBatch", params, "--home", home)
	assert.Error(t, err)
}

func TestInitializeFromConfig(t *testing.T) {
	stateDB, err := db.NewMemLevelDB()
	require.NoError(t, err)
	custodyDB, err := db.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		stateDB.Close()
		custodyDB.Close()
	})
	log := logrus.New()
	log.SetOutput(io.Discard)

	b := bridge.New(state.NewStore(stateDB), proof.NonEmpty{}, custody.NewLedger(custodyDB, log), identity.ContextOracle{},
		bridge.WithLogger(log))
	ctx := context.Background()

	require.NoError(t, initializeFromConfig(ctx, b, config.BridgeConfig{}, log))
	st, err := b.State(ctx)
	require.NoError(t, err)
	assert.False(t, st.Initialized)

	cfg := config.BridgeConfig{
		Sequencer:   "account-hash-" + strings.Repeat("cd", 32),
		InitialRoot: "0x1234",
	}
	require.NoError(t, initializeFromConfig(ctx, b, cfg, log))
	st, err = b.State(ctx)
	require.NoError(t, err)
	assert.True(t, st.Initialized)
	assert.Equal(t, "0x1234", st.CurrentRoot.String())

	cfg.InitialRoot = "0x5678"
	require.NoError(t, initializeFromConfig(ctx, b, cfg, log))
	st, err = b.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x1234", st.CurrentRoot.String())
}
