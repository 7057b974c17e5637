package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/airchains-network/settlement-bridge/bridge"
	"github.com/airchains-network/settlement-bridge/config"
	"github.com/airchains-network/settlement-bridge/custody"
	"github.com/airchains-network/settlement-bridge/db"
	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/airchains-network/settlement-bridge/proof"
	"github.com/airchains-network/settlement-bridge/prover"
	"github.com/airchains-network/settlement-bridge/proxy"
	"github.com/airchains-network/settlement-bridge/state"
	"github.com/airchains-network/settlement-bridge/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// StartCmd represents the start command
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the settlement bridge",
	Long: `Start the settlement bridge with the configuration from <home>/config.toml.
On an empty state database the bridge is initialized from the [bridge] section.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startCommand(cmd)
	},
}

func startCommand(cmd *cobra.Command) error {
	home, err := homeDir(cmd)
	if err != nil {
		return fmt.Errorf("failed to get home directory: %v", err)
	}

	cfg, err := config.LoadConfig(filepath.Join(home, "config.toml"))
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	log := newLogger(cfg.General.LogLevel)

	stateDB, custodyDB, err := db.NewLevelDBs(cfg.Database.StatePath, cfg.Database.CustodyPath)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %v", err)
	}
	defer stateDB.Close()
	defer custodyDB.Close()

	verifier, err := newVerifier(cfg.Proof, log)
	if err != nil {
		return err
	}
	log.Infof("Using %s proof policy", cfg.Proof.Policy)

	purses := custody.NewLedger(custodyDB, log)
	b := bridge.New(state.NewStore(stateDB), verifier, purses, identity.ContextOracle{},
		bridge.WithLogger(log),
		bridge.WithRegisterer(prometheus.DefaultRegisterer),
		bridge.WithEscrowAccount(custody.AccountRef(cfg.Bridge.EscrowAccount)),
		bridge.WithProofTimeout(time.Duration(cfg.Proof.TimeoutSeconds)*time.Second),
	)

	if err := initializeFromConfig(context.Background(), b, cfg.Bridge, log); err != nil {
		return err
	}

	server := proxy.NewServer(b, purses, proxy.NewNonceStore(stateDB), proxy.ServerConfig{
		ChainID: cfg.General.ChainID,
		Faucet:  cfg.Custody.Faucet,
	}, prometheus.DefaultGatherer, log)
	if cfg.Custody.Faucet {
		log.Warn("Custody faucet is enabled")
	}
	return server.Start(cfg.General.RPCPort)
}

func newVerifier(cfg config.ProofConfig, log *logrus.Logger) (proof.Verifier, error) {
	if cfg.Policy == proof.PolicyRemote {
		log.Infof("Initialized verifier client with URL: %s", cfg.VerifierURL)
		v := prover.NewRemoteVerifier(cfg.VerifierURL, cfg.MaxAttempts, log)
		if cfg.AttemptTimeoutSeconds > 0 {
			v.SetTimeout(time.Duration(cfg.AttemptTimeoutSeconds) * time.Second)
		}
		return v, nil
	}
	return proof.New(cfg.Policy, cfg.Expression)
}

// initializeFromConfig initializes an empty bridge when the config names a
// sequencer. A bridge that is already initialized is left alone.
func initializeFromConfig(ctx context.Context, b *bridge.Bridge, cfg config.BridgeConfig, log *logrus.Logger) error {
	st, err := b.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to read bridge state: %v", err)
	}
	if st.Initialized {
		log.Infof("Bridge at batch %d with root %s", st.BatchSequence, st.CurrentRoot)
		return nil
	}
	if cfg.Sequencer == "" {
		log.Warn("Bridge is not initialized and no sequencer is configured; waiting for bridge_initialize")
		return nil
	}
	sequencer, err := identity.Parse(cfg.Sequencer)
	if err != nil {
		return fmt.Errorf("invalid sequencer: %v", err)
	}
	root := types.Root{}
	if cfg.InitialRoot != "" {
		if root, err = types.ParseRoot(cfg.InitialRoot); err != nil {
			return fmt.Errorf("invalid initial root: %v", err)
		}
	}
	return b.Initialize(ctx, root, sequencer)
}
