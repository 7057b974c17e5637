package commands

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airchains-network/settlement-bridge/config"
	"github.com/airchains-network/settlement-bridge/custody"
	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var CreateAccountCmd = &cobra.Command{
	Use:   "create-account [name]",
	Short: "Create a new bridge account",
	Long:  `Create a new secp256k1 account with the specified name in the keys directory`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		keysDir, err := keysDir(cmd)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(keysDir, 0700); err != nil {
			return fmt.Errorf("error creating keys directory: %v", err)
		}

		keyPath := filepath.Join(keysDir, name+".key")
		if _, err := os.Stat(keyPath); err == nil {
			return fmt.Errorf("account %s already exists at %s", name, keyPath)
		}

		key, err := crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("error generating key: %v", err)
		}
		if err := crypto.SaveECDSA(keyPath, key); err != nil {
			return fmt.Errorf("error saving key: %v", err)
		}

		id := identity.FromSecp256k1(&key.PublicKey)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Account created successfully!\n")
		fmt.Fprintf(out, "Name: %s\n", name)
		fmt.Fprintf(out, "Public Key: %s\n", taggedPublicKey(&key.PublicKey))
		fmt.Fprintf(out, "Account Hash: %s\n", id)
		fmt.Fprintf(out, "Purse: %s\n", custody.PurseOf(id))
		fmt.Fprintf(out, "Key File: %s\n", keyPath)
		fmt.Fprintln(out, "\nIMPORTANT: Back up the key file in a secure place!")
		return nil
	},
}

// keysDir reads the keys directory from config.toml, falling back to <home>/keys.
func keysDir(cmd *cobra.Command) (string, error) {
	home, err := homeDir(cmd)
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %v", err)
	}
	if cfg, err := config.LoadConfig(filepath.Join(home, "config.toml")); err == nil && cfg.General.KeysDir != "" {
		return cfg.General.KeysDir, nil
	}
	return filepath.Join(home, "keys"), nil
}

func loadAccount(cmd *cobra.Command, name string) (*ecdsa.PrivateKey, error) {
	dir, err := keysDir(cmd)
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadECDSA(filepath.Join(dir, name+".key"))
	if err != nil {
		return nil, fmt.Errorf("error loading account %s: %v", name, err)
	}
	return key, nil
}

func taggedPublicKey(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(append([]byte{identity.TagSecp256k1}, crypto.CompressPubkey(pub)...))
}
