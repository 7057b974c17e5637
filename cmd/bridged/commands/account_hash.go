package commands

import (
	"fmt"

	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/spf13/cobra"
)

var AccountHashCmd = &cobra.Command{
	Use:   "account-hash [public-key-hex]",
	Short: "Print the account hash of a public key",
	Long: `Print the account hash of a tagged public key: 01 followed by a 32-byte
ed25519 key, or 02 followed by a 33-byte compressed secp256k1 key.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := identity.FromPublicKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}
