package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/airchains-network/settlement-bridge/proof"
	"github.com/airchains-network/settlement-bridge/types"
	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"
)

// Config holds the application configuration
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Database DatabaseConfig `toml:"database"`
	Bridge   BridgeConfig   `toml:"bridge"`
	Proof    ProofConfig    `toml:"proof"`
	Custody  CustodyConfig  `toml:"custody"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	RPCPort  string `toml:"rpc_port"`
	LogLevel string `toml:"log_level"`
	KeysDir  string `toml:"keys_dir"`
	ChainID  string `toml:"chain_id"` // domain tag bound into request signatures
}

// DatabaseConfig holds database paths
type DatabaseConfig struct {
	StatePath   string `toml:"state_path"`
	CustodyPath string `toml:"custody_path"`
}

// BridgeConfig seeds the bridge on first start. Sequencer and InitialRoot
// are only read while the state database is empty.
type BridgeConfig struct {
	Sequencer     string `toml:"sequencer"`
	InitialRoot   string `toml:"initial_root"`
	EscrowAccount string `toml:"escrow_account"`
}

// ProofConfig selects the proof policy
type ProofConfig struct {
	Policy      string `toml:"policy"` // nonempty, accept, reject, expr, merkle or remote
	Expression  string `toml:"expression"`
	VerifierURL string `toml:"verifier_url"`
	MaxAttempts int    `toml:"max_attempts"`

	TimeoutSeconds        int `toml:"timeout_seconds"`         // whole proof check
	AttemptTimeoutSeconds int `toml:"attempt_timeout_seconds"` // one remote request
}

// CustodyConfig controls the purse ledger
type CustodyConfig struct {
	Faucet bool `toml:"faucet"`
}

// DefaultChainID is the signature domain of a bridge that does not set one.
const DefaultChainID = "settlement-bridge"

// DefaultConfig returns the configuration rooted at home.
func DefaultConfig(home string) Config {
	dataDir := filepath.Join(home, "data")
	return Config{
		General: GeneralConfig{
			RPCPort:  ":11111",
			LogLevel: "info",
			KeysDir:  filepath.Join(home, "keys"),
			ChainID:  DefaultChainID,
		},
		Database: DatabaseConfig{
			StatePath:   filepath.Join(dataDir, "state_db"),
			CustodyPath: filepath.Join(dataDir, "custody_db"),
		},
		Bridge: BridgeConfig{
			InitialRoot:   "0x00",
			EscrowAccount: "bridge-escrow-purse",
		},
		Proof: ProofConfig{
			Policy:      proof.PolicyNonEmpty,
			MaxAttempts: 5,

			TimeoutSeconds:        120,
			AttemptTimeoutSeconds: 30,
		},
	}
}

// LoadConfig reads from config.toml and returns Config struct
func LoadConfig(path string) (Config, error) {
	var cfg Config
	file, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}

	err = toml.Unmarshal(file, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to path as TOML.
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}
	return nil
}

// Validate checks the values that would otherwise fail late at start.
func (c Config) Validate() error {
	if c.General.RPCPort == "" {
		return fmt.Errorf("general.rpc_port must be set")
	}
	if _, err := logrus.ParseLevel(c.General.LogLevel); err != nil {
		return fmt.Errorf("invalid general.log_level: %v", err)
	}
	if c.Database.StatePath == "" || c.Database.CustodyPath == "" {
		return fmt.Errorf("database.state_path and database.custody_path must be set")
	}
	if c.Bridge.Sequencer != "" {
		if _, err := identity.Parse(c.Bridge.Sequencer); err != nil {
			return fmt.Errorf("invalid bridge.sequencer: %v", err)
		}
	}
	if c.Bridge.InitialRoot != "" {
		if _, err := types.ParseRoot(c.Bridge.InitialRoot); err != nil {
			return fmt.Errorf("invalid bridge.initial_root: %v", err)
		}
	}
	if c.General.ChainID == "" {
		return fmt.Errorf("general.chain_id must be set")
	}
	if c.Proof.TimeoutSeconds < 0 || c.Proof.AttemptTimeoutSeconds < 0 {
		return fmt.Errorf("proof timeouts must not be negative")
	}
	switch c.Proof.Policy {
	case proof.PolicyRemote:
		if c.Proof.VerifierURL == "" {
			return fmt.Errorf("proof.verifier_url is required for the remote policy")
		}
	case proof.PolicyExpr:
		if c.Proof.Expression == "" {
			return fmt.Errorf("proof.expression is required for the expr policy")
		}
	case "", proof.PolicyNonEmpty, proof.PolicyAccept, proof.PolicyReject, proof.PolicyMerkle:
	default:
		return fmt.Errorf("unknown proof.policy %q", c.Proof.Policy)
	}
	return nil
}
