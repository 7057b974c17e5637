package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airchains-network/settlement-bridge/config"
	"github.com/spf13/cobra"
)

// InitCmd represents the init command
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the bridge home directory",
	Long: `Initialize the bridge with the required configuration.
This command creates the data and keys directories and writes config.toml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(cmd)
	},
}

func init() {
	InitCmd.Flags().String("rpc.port", ":11111", "RPC server port")
	InitCmd.Flags().String("chain-id", config.DefaultChainID, "Domain tag bound into request signatures")
	InitCmd.Flags().String("bridge.sequencer", "", "Sequencer account hash")
	InitCmd.Flags().String("bridge.initial-root", "0x00", "Initial state root")
	InitCmd.Flags().String("proof.policy", "nonempty", "Proof policy (nonempty/accept/reject/expr/merkle/remote)")
	InitCmd.Flags().String("proof.expression", "", "Proof expression for the expr and merkle policies")
	InitCmd.Flags().String("proof.verifier-url", "", "Verifier service URL for the remote policy")
	InitCmd.Flags().Bool("custody.faucet", false, "Serve custody_mint")
}

func initCommand(cmd *cobra.Command) error {
	rpcPort, _ := cmd.Flags().GetString("rpc.port")
	chainID, _ := cmd.Flags().GetString("chain-id")
	sequencer, _ := cmd.Flags().GetString("bridge.sequencer")
	initialRoot, _ := cmd.Flags().GetString("bridge.initial-root")
	policy, _ := cmd.Flags().GetString("proof.policy")
	expression, _ := cmd.Flags().GetString("proof.expression")
	verifierURL, _ := cmd.Flags().GetString("proof.verifier-url")
	faucet, _ := cmd.Flags().GetBool("custody.faucet")

	log := newLogger("info")

	home, err := homeDir(cmd)
	if err != nil {
		return fmt.Errorf("failed to get home directory: %v", err)
	}

	cfg := config.DefaultConfig(home)
	cfg.General.RPCPort = rpcPort
	cfg.General.ChainID = chainID
	cfg.Bridge.Sequencer = sequencer
	cfg.Bridge.InitialRoot = initialRoot
	cfg.Proof.Policy = policy
	cfg.Proof.Expression = expression
	cfg.Proof.VerifierURL = verifierURL
	cfg.Custody.Faucet = faucet
	if err := cfg.Validate(); err != nil {
		return err
	}

	dirs := []string{
		home,
		cfg.General.KeysDir,
		cfg.Database.StatePath,
		cfg.Database.CustodyPath,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}

	configPath := filepath.Join(home, "config.toml")
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %v", err)
	}
	log.Infof("Created config file at: %s", configPath)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Configuration Summary ===")
	fmt.Fprintf(out, "RPC Port: %s\n", cfg.General.RPCPort)
	fmt.Fprintf(out, "Chain ID: %s\n", cfg.General.ChainID)
	fmt.Fprintf(out, "Sequencer: %s\n", cfg.Bridge.Sequencer)
	fmt.Fprintf(out, "Initial Root: %s\n", cfg.Bridge.InitialRoot)
	fmt.Fprintf(out, "Proof Policy: %s\n", cfg.Proof.Policy)
	fmt.Fprintf(out, "Config File: %s\n", configPath)

	if cfg.Bridge.Sequencer == "" {
		log.Info("No sequencer configured; call bridge_initialize or set bridge.sequencer before starting")
	}
	log.Info("Start the bridge using: bridged start")
	return nil
}
