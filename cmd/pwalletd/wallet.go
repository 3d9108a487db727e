package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/pushchain/push-wallet-signer/walletClient/descriptor"
)

func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen [user-id]",
		Short: "Create a wallet for a user and store the new keyshare",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, log, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			s, err := client.NewSigner(args[0], nil)
			if err != nil {
				return err
			}

			showRecovery, _ := cmd.Flags().GetBool("print-recovery")
			handle, err := s.GenerateKeyshare(cmd.Context(), func(recovery descriptor.Handle) {
				if showRecovery {
					fmt.Fprintf(cmd.OutOrStdout(), "recovery: %s\n", recovery)
					return
				}
				log.Warn().Msg("recovery keyshare discarded, pass --print-recovery to keep it")
			})
			if err != nil {
				return err
			}
			if err := s.LoadKeyshare(cmd.Context(), handle); err != nil {
				return err
			}
			account, err := s.NativeKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), account)
			return nil
		},
	}
	cmd.Flags().Bool("print-recovery", false, "print the recovery keyshare for offline backup")
	return cmd
}

func signMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign-message [user-id] [address] [hex-data]",
		Short: "Sign a personal message with a stored keyshare",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			data, err := hexutil.Decode(args[2])
			if err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
			s, err := client.NewSigner(args[0], nil)
			if err != nil {
				return err
			}
			if err := s.SetNativeKey(args[1]); err != nil {
				return err
			}
			sig, err := s.SignPersonalMessage(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(sig))
			return nil
		},
	}
}
