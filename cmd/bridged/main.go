package main

import (
	"os"

	"github.com/airchains-network/settlement-bridge/cmd/bridged/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
