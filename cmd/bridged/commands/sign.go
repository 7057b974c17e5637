package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/airchains-network/settlement-bridge/config"
	"github.com/airchains-network/settlement-bridge/proxy"
	"github.com/spf13/cobra"
)

var SignCmd = &cobra.Command{
	Use:   "sign [name] [method] [params-json]",
	Short: "Sign a JSON-RPC call",
	Long: `Print the X-Bridge-Signature header value that authenticates a JSON-RPC call
as the named account. params-json must be sent byte for byte as the request's params,
and --nonce must be sent as X-Bridge-Nonce. bridge_getNonce returns the account's next nonce.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, method, params := args[0], args[1], args[2]
		if !json.Valid([]byte(params)) {
			return fmt.Errorf("params must be valid JSON")
		}
		nonce, _ := cmd.Flags().GetUint64("nonce")
		chainID, _ := cmd.Flags().GetString("chain-id")
		if chainID == "" {
			var err error
			if chainID, err = configuredChainID(cmd); err != nil {
				return err
			}
		}

		key, err := loadAccount(cmd, name)
		if err != nil {
			return err
		}
		sig, err := proxy.Sign(key, chainID, method, []byte(params), nonce)
		if err != nil {
			return fmt.Errorf("error signing request: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), sig)
		return nil
	},
}

func init() {
	SignCmd.Flags().Uint64("nonce", 0, "Request nonce of the account")
	SignCmd.Flags().String("chain-id", "", "Signature domain (default from config.toml)")
}

// configuredChainID reads general.chain_id, falling back to the default domain.
func configuredChainID(cmd *cobra.Command) (string, error) {
	home, err := homeDir(cmd)
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %v", err)
	}
	if cfg, err := config.LoadConfig(filepath.Join(home, "config.toml")); err == nil {
		return cfg.General.ChainID, nil
	}
	return config.DefaultChainID, nil
}
