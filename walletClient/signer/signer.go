// Package signer is the wallet-level signer for one user. It creates key
// shares through the coordinator, keeps the device's handle in the
// keyshare store, and signs Ethereum transactions, personal messages and
// EIP-712 typed data with threshold signatures.
package signer

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pushchain/push-wallet-signer/walletClient/accountstore"
	"github.com/pushchain/push-wallet-signer/walletClient/coordinator"
	"github.com/pushchain/push-wallet-signer/walletClient/descriptor"
	"github.com/pushchain/push-wallet-signer/walletClient/dispatcher"
	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
	"github.com/pushchain/push-wallet-signer/walletClient/keyshare"
	"github.com/pushchain/push-wallet-signer/walletClient/store"
	"github.com/pushchain/push-wallet-signer/walletClient/usermgmt"
)

// WalletService is the subset of the user-management client the signer uses.
type WalletService interface {
	CreateWallet(ctx context.Context, userID string) (*usermgmt.WalletInfo, error)
	FindWallet(ctx context.Context, userID, address string) (string, bool, error)
	PreSignMessage(ctx context.Context, userID, walletID, message string) (*usermgmt.PreSignInfo, error)
}

// Config holds the signer's identity and collaborators.
type Config struct {
	UserID          string
	SelfPartyID     string
	RecoveryPartyID string

	Coordinator *coordinator.Coordinator
	Wallets     WalletService
	Keyshares   *keyshare.Store
	Accounts    *accountstore.Store // optional cache of address -> wallet

	// Reauthenticate refreshes the user session when the service rejects it.
	Reauthenticate usermgmt.ReauthenticateFunc
}

// Signer signs on behalf of one user and one account at a time.
type Signer struct {
	userID          string
	selfPartyID     string
	recoveryPartyID string

	coordinator    *coordinator.Coordinator
	wallets        WalletService
	keyshares      *keyshare.Store
	accounts       *accountstore.Store
	reauthenticate usermgmt.ReauthenticateFunc
	logger         zerolog.Logger

	mu      sync.RWMutex
	account common.Address
	hasAcct bool
}

// New creates a signer.
func New(cfg Config, logger zerolog.Logger) (*Signer, error) {
	switch {
	case cfg.UserID == "":
		return nil, uerrors.NewConfigError("signer needs a user id")
	case cfg.Coordinator == nil || cfg.Wallets == nil || cfg.Keyshares == nil:
		return nil, uerrors.NewConfigError("signer needs a coordinator, a wallet service and a keyshare store")
	case cfg.SelfPartyID == "" || cfg.RecoveryPartyID == "":
		return nil, uerrors.NewConfigError("signer needs self and recovery party ids")
	}
	return &Signer{
		userID:          cfg.UserID,
		selfPartyID:     cfg.SelfPartyID,
		recoveryPartyID: cfg.RecoveryPartyID,
		coordinator:     cfg.Coordinator,
		wallets:         cfg.Wallets,
		keyshares:       cfg.Keyshares,
		accounts:        cfg.Accounts,
		reauthenticate:  cfg.Reauthenticate,
		logger:          logger.With().Str("component", "signer").Str("user_id", cfg.UserID).Logger(),
	}, nil
}

// GenerateKeyshare registers a new wallet and runs key generation for the
// self party and the recovery party in parallel. The recovery handle goes
// to onRecovery; the self handle is returned. Neither is stored here; call
// LoadKeyshare with the returned handle to make it the active account.
func (s *Signer) GenerateKeyshare(ctx context.Context, onRecovery func(descriptor.Handle)) (descriptor.Handle, error) {
	info, err := usermgmt.RequestAndReauthenticate(ctx,
		func(ctx context.Context) (*usermgmt.WalletInfo, error) {
			return s.wallets.CreateWallet(ctx, s.userID)
		},
		s.reauthenticate,
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to create wallet")
	}

	log := s.logger.With().Str("wallet_id", info.WalletID).Logger()
	log.Info().Msg("starting key generation")

	parties := []string{s.selfPartyID, s.recoveryPartyID}
	handles := make([]descriptor.Handle, len(parties))

	g, gctx := errgroup.WithContext(ctx)
	for i, party := range parties {
		i, party := i, party
		f, err := s.coordinator.CreateAccount(info.WalletID, info.ProtocolID, party)
		if err != nil {
			return "", err
		}
		g.Go(func() error {
			raw, err := f.Await(gctx)
			if err != nil {
				return errors.Wrapf(err, "key generation for %s", party)
			}
			h, err := descriptor.ParseHandleString(raw)
			if err != nil {
				return err
			}
			handles[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if onRecovery != nil {
		onRecovery(handles[1])
	}

	if s.accounts != nil {
		if addr, err := s.deriveAddress(ctx, handles[0]); err != nil {
			log.Warn().Err(err).Msg("could not record new account")
		} else if err := s.accounts.Upsert(store.Account{
			Address:    addr.Hex(),
			WalletID:   info.WalletID,
			UserID:     s.userID,
			ProtocolID: info.ProtocolID,
		}); err != nil {
			log.Warn().Err(err).Msg("could not record new account")
		}
	}

	log.Info().Msg("key generation completed")
	return handles[0], nil
}

// SetAccount derives the address of handle and makes it the active account.
func (s *Signer) SetAccount(ctx context.Context, handle descriptor.Handle) error {
	addr, err := s.deriveAddress(ctx, handle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.account = addr
	s.hasAcct = true
	s.mu.Unlock()
	return nil
}

// LoadKeyshare activates handle's account and stores the handle for it.
func (s *Signer) LoadKeyshare(ctx context.Context, handle descriptor.Handle) error {
	if err := s.SetAccount(ctx, handle); err != nil {
		return err
	}
	addr, _ := s.NativeKey()
	if err := s.keyshares.Store(handle, addr); err != nil {
		return errors.Wrap(err, "failed to store signer handle")
	}
	s.logger.Info().Str("account", addr).Msg("keyshare loaded")
	return nil
}

// SetNativeKey selects an account whose handle was stored earlier.
func (s *Signer) SetNativeKey(address string) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.account = addr
	s.hasAcct = true
	s.mu.Unlock()
	return nil
}

// NativeKey returns the active account as a checksummed address.
func (s *Signer) NativeKey() (string, error) {
	addr, ok := s.activeAccount()
	if !ok {
		return "", uerrors.NewValidationError("signer.NativeKey", "native key not set")
	}
	return addr.Hex(), nil
}

// Keyshare returns the stored handle of the active account.
func (s *Signer) Keyshare() (descriptor.Handle, error) {
	addr, ok := s.activeAccount()
	if !ok {
		return "", uerrors.NewValidationError("signer.Keyshare", "native key not set")
	}
	return s.keyshares.Get(addr.Hex())
}

func (s *Signer) activeAccount() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.hasAcct
}

func (s *Signer) deriveAddress(ctx context.Context, handle descriptor.Handle) (common.Address, error) {
	f, err := s.coordinator.GetAddress(handle.String())
	if err != nil {
		return common.Address{}, err
	}
	raw, err := f.Await(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return NormalizeAddress(raw)
}

// NormalizeAddress accepts an address with or without 0x, in any case, and
// returns it as a common.Address.
func NormalizeAddress(address string) (common.Address, error) {
	a := strings.TrimSpace(address)
	if !strings.HasPrefix(a, "0x") && !strings.HasPrefix(a, "0X") {
		a = "0x" + a
	}
	if !common.IsHexAddress(a) {
		return common.Address{}, uerrors.NewValidationError("signer.NormalizeAddress", "not a hex address: "+address)
	}
	return common.HexToAddress(a), nil
}

// walletFor returns the wallet id that owns address, consulting the local
// registry before the user-management service.
func (s *Signer) walletFor(ctx context.Context, address common.Address) (string, error) {
	const op = "signer.walletFor"

	if s.accounts != nil {
		acct, err := s.accounts.GetByAddress(address.Hex())
		if err == nil {
			return acct.WalletID, nil
		}
		if !errors.Is(err, accountstore.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("account registry lookup failed")
		}
	}

	type found struct {
		id string
		ok bool
	}
	res, err := usermgmt.RequestAndReauthenticate(ctx,
		func(ctx context.Context) (found, error) {
			id, ok, err := s.wallets.FindWallet(ctx, s.userID, address.Hex())
			return found{id, ok}, err
		},
		s.reauthenticate,
	)
	if err != nil {
		return "", err
	}
	if !res.ok {
		return "", uerrors.NewValidationError(op, "no wallet found for account "+address.Hex())
	}

	if s.accounts != nil {
		if err := s.accounts.Upsert(store.Account{Address: address.Hex(), WalletID: res.id, UserID: s.userID}); err != nil {
			s.logger.Warn().Err(err).Msg("could not cache wallet id")
		}
	}
	return res.id, nil
}

// thresholdSign obtains a protocol id for message from the service and runs
// a signing round over payload. It returns the decoded engine result.
func (s *Signer) thresholdSign(ctx context.Context, address common.Address, message string, payload []byte) ([]byte, error) {
	walletID, err := s.walletFor(ctx, address)
	if err != nil {
		return nil, err
	}

	pre, err := usermgmt.RequestAndReauthenticate(ctx,
		func(ctx context.Context) (*usermgmt.PreSignInfo, error) {
			return s.wallets.PreSignMessage(ctx, s.userID, walletID, message)
		},
		s.reauthenticate,
	)
	if err != nil {
		return nil, errors.Wrap(err, "pre-sign request failed")
	}

	handle, err := s.keyshares.Get(address.Hex())
	if err != nil {
		return nil, errors.Wrap(err, "no signer handle for account")
	}

	f, err := s.coordinator.SendTransaction(pre.ProtocolID, handle.String(), base64.StdEncoding.EncodeToString(payload))
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("wallet_id", walletID).
		Str("session_id", f.SessionID()).
		Msg("threshold signature requested")

	return awaitBase64(ctx, f)
}

func awaitBase64(ctx context.Context, f *dispatcher.Future) ([]byte, error) {
	raw, err := f.Await(ctx)
	if err != nil {
		return nil, err
	}
	out, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, uerrors.NewEngineError(string(f.Operation()), "engine result is not base64", err)
	}
	return out, nil
}
