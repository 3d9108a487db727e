package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pushchain/push-wallet-signer/walletClient/constant"
	"github.com/pushchain/push-wallet-signer/walletClient/dispatcher"
)

func awaitAndPrint(cmd *cobra.Command, f *dispatcher.Future) error {
	value, err := f.Await(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func createAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-account [wallet-id] [protocol-id]",
		Short: "Run distributed key generation and print the signer handle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			self, _ := cmd.Flags().GetString("self")
			f, err := client.Coordinator().CreateAccount(args[0], args[1], self)
			if err != nil {
				return err
			}
			return awaitAndPrint(cmd, f)
		},
	}
	cmd.Flags().String("self", constant.PartyUser, "party identity to generate a share for")
	return cmd
}

func addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address [handle]",
		Short: "Print the address controlled by a signer handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			f, err := client.Coordinator().GetAddress(args[0])
			if err != nil {
				return err
			}
			return awaitAndPrint(cmd, f)
		},
	}
}

func signCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign [protocol-id] [handle] [base64-payload]",
		Short: "Run a threshold signing round and print the base64 result",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			f, err := client.Coordinator().SendTransaction(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return awaitAndPrint(cmd, f)
		},
	}
}
