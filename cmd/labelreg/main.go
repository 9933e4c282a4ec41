package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "labelreg",
		Short:         "Deposit-gated label registry",
		Long:          `labelreg serves a registry where every account may hold one label, paid for by a reserved deposit.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newTokenCmd(),
		newInspectCmd(),
	)
	root.AddCommand(newClientCmds()...)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
