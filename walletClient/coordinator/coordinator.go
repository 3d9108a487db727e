// Package coordinator is the façade the host calls for wallet operations.
// Inputs are checked synchronously; work that needs the signing engine is
// handed to the dispatcher and comes back as a future.
package coordinator

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pushchain/push-wallet-signer/walletClient/descriptor"
	"github.com/pushchain/push-wallet-signer/walletClient/dispatcher"
	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

// Coordinator turns wallet operations into dispatched engine calls. It keeps
// no per-wallet state; handles are the caller's to persist.
type Coordinator struct {
	dispatcher *dispatcher.Dispatcher
	partyIDs   []string
	threshold  int
	logger     zerolog.Logger

	// serverURL has a single writer (SetServerURL); every call takes a snapshot.
	mu        sync.RWMutex
	serverURL string
}

// NewCoordinator creates a coordinator for the given roster and threshold.
// The roster is copied.
func NewCoordinator(
	d *dispatcher.Dispatcher,
	serverURL string,
	partyIDs []string,
	threshold int,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		dispatcher: d,
		serverURL:  serverURL,
		partyIDs:   append([]string(nil), partyIDs...),
		threshold:  threshold,
		logger:     logger.With().Str("component", "coordinator").Logger(),
	}
}

// SetServerURL points later calls at a different signing server. Calls
// already dispatched keep the URL they started with.
func (c *Coordinator) SetServerURL(serverURL string) {
	c.mu.Lock()
	c.serverURL = serverURL
	c.mu.Unlock()
	c.logger.Info().Str("server_url", serverURL).Msg("signing server updated")
}

// ServerURL returns the current signing server.
func (c *Coordinator) ServerURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverURL
}

// CreateAccount runs key generation for selfID in walletID. An invalid
// descriptor is reported here and nothing is dispatched; the future
// resolves with the new handle.
func (c *Coordinator) CreateAccount(walletID, protocolID, selfID string) (*dispatcher.Future, error) {
	serverURL := c.ServerURL()

	d, err := descriptor.Build(serverURL, walletID, selfID, c.partyIDs, c.threshold)
	if err != nil {
		return nil, err
	}
	descriptorJSON, err := d.JSON()
	if err != nil {
		return nil, err
	}

	f := c.dispatcher.Dispatch(dispatcher.Request{
		Operation:  dispatcher.OpCreateAccount,
		ServerURL:  serverURL,
		Descriptor: descriptorJSON,
		ProtocolID: protocolID,
		WalletID:   walletID,
	})
	c.logger.Debug().
		Str("wallet_id", walletID).
		Str("self_id", selfID).
		Str("session_id", f.SessionID()).
		Msg("account creation dispatched")
	return f, nil
}

// GetAddress derives the address for handle. The handle is not modified.
func (c *Coordinator) GetAddress(handle string) (*dispatcher.Future, error) {
	h, err := descriptor.ParseHandleString(handle)
	if err != nil {
		return nil, err
	}
	return c.dispatcher.Dispatch(dispatcher.Request{
		Operation: dispatcher.OpGetAddress,
		Handle:    h.String(),
	}), nil
}

// SendTransaction runs a threshold signing round over transaction, which is
// forwarded untouched. The future resolves with the engine's result.
func (c *Coordinator) SendTransaction(protocolID, handle, transaction string) (*dispatcher.Future, error) {
	const op = "coordinator.SendTransaction"

	h, err := descriptor.ParseHandleString(handle)
	if err != nil {
		return nil, err
	}
	serverURL := c.ServerURL()
	if strings.TrimSpace(serverURL) == "" {
		return nil, uerrors.NewInvalidDescriptorError(op, "server url is not configured")
	}

	f := c.dispatcher.Dispatch(dispatcher.Request{
		Operation:   dispatcher.OpSignTransaction,
		ServerURL:   serverURL,
		Handle:      h.String(),
		Transaction: transaction,
		ProtocolID:  protocolID,
	})
	c.logger.Debug().Str("session_id", f.SessionID()).Msg("signing dispatched")
	return f, nil
}
