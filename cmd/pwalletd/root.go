package main

import (
	"github.com/spf13/cobra"

	"github.com/pushchain/push-wallet-signer/walletClient/constant"
)

const (
	flagHome       = "home"
	flagMockEngine = "mock-engine"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "pwalletd",
		Short:        "Push Wallet threshold signing daemon",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String(flagHome, constant.DefaultNodeHome, "node home directory")

	InitRootCmd(rootCmd) // add subcommands like `start` and `version`

	return rootCmd
}
