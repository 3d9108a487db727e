package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pushchain/push-wallet-signer/walletClient/config"
	"github.com/pushchain/push-wallet-signer/walletClient/core"
	"github.com/pushchain/push-wallet-signer/walletClient/engine/mock"
	"github.com/pushchain/push-wallet-signer/walletClient/logger"
)

// Set at build time with -ldflags.
var (
	Version = "dev"
	Commit  = ""
)

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(createAccountCmd())
	rootCmd.AddCommand(addressCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(signMessageCmd())
	rootCmd.AddCommand(versionCmd())
}

// loadConfig reads <home>/config/pwallet_config.json, falling back to the
// embedded defaults when no file has been written yet.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	home, _ := cmd.Flags().GetString(flagHome)

	cfg, err := config.Load(home)
	if err == nil {
		cfg.NodeHome = home
		return &cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	def, err := config.LoadDefaultConfig()
	if err != nil {
		return nil, err
	}
	def.NodeHome = home
	config.ApplyEnv(def, os.LookupEnv)
	if err := config.Validate(def); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return def, nil
}

// newClient builds the wallet client for one-shot commands against the
// configured engine. Logs go to stderr so results on stdout stay machine
// readable.
func newClient(cmd *cobra.Command) (*core.WalletClient, zerolog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)

	client, err := core.NewWalletClient(cmd.Context(), log, cfg)
	if err != nil {
		return nil, log, err
	}
	return client, log, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the home directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			cfg, err := config.LoadDefaultConfig()
			if err != nil {
				return err
			}
			cfg.NodeHome = home
			if err := config.Save(cfg, home); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", home)
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the wallet signer and its host API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []core.Option
			if useMock, _ := cmd.Flags().GetBool(flagMockEngine); useMock {
				opts = append(opts, core.WithEngine(mock.New()))
			}
			client, err := core.NewWalletClient(ctx, log, cfg, opts...)
			if err != nil {
				return err
			}
			return client.Start()
		},
	}
	// Key shares held by the in-process engine live only as long as the
	// daemon, so the flag is offered on start alone.
	cmd.Flags().Bool(flagMockEngine, false, "serve with an in-process signing engine whose key shares are lost on exit")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print pwalletd version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Name:       %s\n", "pwalletd")
			fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", Commit)
		},
	}
}
