package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/pushchain/push-wallet-signer/walletClient/accountstore"
	"github.com/pushchain/push-wallet-signer/walletClient/api"
	"github.com/pushchain/push-wallet-signer/walletClient/config"
	"github.com/pushchain/push-wallet-signer/walletClient/constant"
	"github.com/pushchain/push-wallet-signer/walletClient/coordinator"
	"github.com/pushchain/push-wallet-signer/walletClient/db"
	"github.com/pushchain/push-wallet-signer/walletClient/dispatcher"
	"github.com/pushchain/push-wallet-signer/walletClient/engine"
	"github.com/pushchain/push-wallet-signer/walletClient/engine/remote"
	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
	"github.com/pushchain/push-wallet-signer/walletClient/keyshare"
	"github.com/pushchain/push-wallet-signer/walletClient/signer"
	"github.com/pushchain/push-wallet-signer/walletClient/usermgmt"
)

// drainTimeout bounds how long shutdown waits for dispatched operations.
const drainTimeout = 10 * time.Second

// Option customizes a WalletClient.
type Option func(*options)

type options struct {
	engine   engine.Engine
	inMemory bool
}

// WithEngine replaces the remote engine, e.g. with the in-memory mock.
func WithEngine(e engine.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithInMemoryDB keeps the account registry in memory.
func WithInMemoryDB() Option {
	return func(o *options) { o.inMemory = true }
}

// WalletClient wires the signing stack for one process.
type WalletClient struct {
	ctx context.Context
	log zerolog.Logger
	cfg *config.Config

	db          *db.DB
	accounts    *accountstore.Store
	keyshares   *keyshare.Store
	registry    *prometheus.Registry
	dispatcher  *dispatcher.Dispatcher
	coordinator *coordinator.Coordinator
	server      *api.Server
}

// NewWalletClient builds every component from cfg. cfg must have passed
// config validation.
func NewWalletClient(ctx context.Context, log zerolog.Logger, cfg *config.Config, opts ...Option) (*WalletClient, error) {
	if cfg == nil {
		return nil, uerrors.NewConfigError("config is required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, uerrors.WrapSignerError(err, uerrors.ErrCodeConfig, "core.NewWalletClient", "invalid config")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	eng := o.engine
	if eng == nil {
		eng = remote.NewClient(cfg.EngineURL, cfg.EngineRequestTimeout(), log)
	}

	database, err := openDB(cfg, o.inMemory)
	if err != nil {
		return nil, err
	}

	var keyshares *keyshare.Store
	if cfg.KeysharePassword != "" {
		keyshares, err = keyshare.NewStore(cfg.NodeHome, cfg.KeysharePassword, log)
		if err != nil {
			_ = database.Close()
			return nil, errors.Wrap(err, "failed to open keyshare store")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	d := dispatcher.New(eng, dispatcher.Config{
		Timeout:    cfg.DispatchTimeout(),
		Registerer: registry,
	}, log)
	coord := coordinator.NewCoordinator(d, cfg.SigningServerURL, cfg.PartyIDs, cfg.Threshold, log)

	return &WalletClient{
		ctx:         ctx,
		log:         log,
		cfg:         cfg,
		db:          database,
		accounts:    accountstore.NewStore(database.Client(), log),
		keyshares:   keyshares,
		registry:    registry,
		dispatcher:  d,
		coordinator: coord,
		server:      api.NewServer(log, cfg.QueryServerPort, coord, registry),
	}, nil
}

func openDB(cfg *config.Config, inMemory bool) (*db.DB, error) {
	if inMemory {
		return db.OpenInMemoryDB(true)
	}
	return db.OpenFileDB(filepath.Join(cfg.NodeHome, constant.DatabasesSubdir), constant.AccountsDBName, true)
}

// Coordinator returns the signing coordinator.
func (wc *WalletClient) Coordinator() *coordinator.Coordinator {
	return wc.coordinator
}

// Server returns the API server.
func (wc *WalletClient) Server() *api.Server {
	return wc.server
}

// NewSigner creates a wallet signer for userID. It needs a user-management
// url and a keyshare password in the config.
func (wc *WalletClient) NewSigner(userID string, reauthenticate usermgmt.ReauthenticateFunc) (*signer.Signer, error) {
	if wc.keyshares == nil {
		return nil, uerrors.NewConfigError("keyshare_password is required to sign")
	}
	users, err := usermgmt.NewClient(wc.cfg.UserManagementURL, wc.cfg.EngineRequestTimeout(), &uerrors.RetryConfig{
		MaxAttempts:     wc.cfg.MaxRetries,
		InitialDelay:    wc.cfg.RetryBackoff(),
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RetryableErrors: []uerrors.ErrorCode{uerrors.ErrCodeNetwork},
	}, wc.log)
	if err != nil {
		return nil, err
	}
	return signer.New(signer.Config{
		UserID:          userID,
		SelfPartyID:     wc.cfg.SelfPartyID,
		RecoveryPartyID: wc.cfg.RecoveryPartyID,
		Coordinator:     wc.coordinator,
		Wallets:         users,
		Keyshares:       wc.keyshares,
		Accounts:        wc.accounts,
		Reauthenticate:  reauthenticate,
	}, wc.log)
}

// Start serves the host API until the context ends, then shuts down.
func (wc *WalletClient) Start() error {
	wc.log.Info().
		Str("signing_server", wc.cfg.SigningServerURL).
		Strs("party_ids", wc.cfg.PartyIDs).
		Int("threshold", wc.cfg.Threshold).
		Msg("🚀 Starting wallet signer...")

	if err := wc.server.Start(); err != nil {
		_ = wc.Close()
		return errors.Wrap(err, "failed to start API server")
	}
	wc.log.Info().Msg("✅ Initialization complete. Serving requests...")

	<-wc.ctx.Done()

	wc.log.Info().Msg("🛑 Shutting down wallet signer...")
	if err := wc.server.Stop(); err != nil {
		wc.log.Warn().Err(err).Msg("API server did not stop cleanly")
	}
	return wc.Close()
}

// Close waits briefly for in-flight operations and closes the database.
func (wc *WalletClient) Close() error {
	drained := make(chan struct{})
	go func() {
		wc.dispatcher.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		wc.log.Warn().Msg("in-flight operations still running at shutdown")
	}
	return wc.db.Close()
}
