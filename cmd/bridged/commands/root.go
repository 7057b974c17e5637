package commands

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultHomeDir = ".settlement-bridge"

// NewRootCmd builds the bridged command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bridged",
		Short: "Settlement bridge for a sequenced rollup",
		Long: `Settlement bridge that keeps the authoritative state root of a rollup,
accepts proven batches from its sequencer and moves funds between the base ledger and L2.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("home", "", "Home directory (default ~/"+defaultHomeDir+")")

	rootCmd.AddCommand(InitCmd)
	rootCmd.AddCommand(StartCmd)
	rootCmd.AddCommand(CreateAccountCmd)
	rootCmd.AddCommand(AccountHashCmd)
	rootCmd.AddCommand(SignCmd)
	return rootCmd
}

func homeDir(cmd *cobra.Command) (string, error) {
	if f := cmd.Flag("home"); f != nil && f.Value.String() != "" {
		return f.Value.String(), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, defaultHomeDir), nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     true,
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
