// Package mock provides an in-memory signing engine used by tests and local
// demos. It simulates a party roster with per-party reachability, latency and
// injected failures, and signs with real secp256k1 keys so signatures can be
// verified end to end.
package mock

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pushchain/push-wallet-signer/walletClient/descriptor"
	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

// Operation names used for call counting and failure injection.
const (
	OpCreateAccount   = "CreateAccount"
	OpGetAddress      = "GetAddress"
	OpSignTransaction = "SignTransaction"
)

const handleVersion = 1

// handleEnvelope is the mock's own handle format. Real engines use their
// own; nothing outside this package reads it.
type handleEnvelope struct {
	Version   int      `json:"v"`
	ServerURL string   `json:"server_url"`
	WalletID  string   `json:"wallet_id"`
	PartyID   string   `json:"party_id"`
	PartyIDs  []string `json:"party_ids"`
	Threshold int      `json:"threshold"`
}

type wallet struct {
	key *ecdsa.PrivateKey
	// keygen is the descriptor of the wallet's first key generation; its
	// roster binds every later round.
	keygen descriptor.Descriptor
}

// Engine is a simple in-memory implementation of engine.Engine.
type Engine struct {
	mu          sync.RWMutex
	wallets     map[string]*wallet
	unreachable map[string]bool // party -> unreachable
	failures    map[string]error
	calls       map[string]int
	latency     time.Duration
	offline     bool
	gate        chan struct{}
}

// New creates a mock engine with every party reachable.
func New() *Engine {
	return &Engine{
		wallets:     make(map[string]*wallet),
		unreachable: make(map[string]bool),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

// SetPartyReachable marks a single party reachable or not.
func (e *Engine) SetPartyReachable(partyID string, reachable bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if reachable {
		delete(e.unreachable, partyID)
	} else {
		e.unreachable[partyID] = true
	}
}

// SetUnreachableParties marks every listed party unreachable.
func (e *Engine) SetUnreachableParties(partyIDs ...string) {
	for _, id := range partyIDs {
		e.SetPartyReachable(id, false)
	}
}

// SetLatency delays every call by d.
func (e *Engine) SetLatency(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latency = d
}

// SetOffline makes every call fail as if the engine could not be reached.
func (e *Engine) SetOffline(offline bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offline = offline
}

// SetFailure makes op fail with err until cleared with a nil err.
func (e *Engine) SetFailure(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failures, op)
		return
	}
	e.failures[op] = err
}

// Hold blocks every call until the returned release func runs or the call's
// context ends. Calling release more than once is safe.
func (e *Engine) Hold() (release func()) {
	gate := make(chan struct{})
	e.mu.Lock()
	e.gate = gate
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			if e.gate == gate {
				e.gate = nil
			}
			e.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times op was invoked.
func (e *Engine) Calls(op string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calls[op]
}

// TotalCalls returns the number of invocations across all operations.
func (e *Engine) TotalCalls() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	total := 0
	for _, n := range e.calls {
		total += n
	}
	return total
}

// AddressOf returns the checksummed address for a wallet, or "" if unknown.
func (e *Engine) AddressOf(walletID string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	w, ok := e.wallets[walletID]
	if !ok {
		return ""
	}
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

// CreateAccount implements engine.Engine.
func (e *Engine) CreateAccount(ctx context.Context, serverURL, descriptorJSON, protocolID string) (string, error) {
	if err := e.enter(ctx, OpCreateAccount); err != nil {
		return "", err
	}

	d, err := descriptor.Parse([]byte(descriptorJSON))
	if err != nil {
		return "", uerrors.NewEngineError(OpCreateAccount, "rejected descriptor", err)
	}
	if d.ServerURL != serverURL {
		return "", uerrors.NewEngineError(OpCreateAccount,
			fmt.Sprintf("descriptor server %s does not match %s", d.ServerURL, serverURL), nil)
	}
	if protocolID == "" {
		return "", uerrors.NewEngineError(OpCreateAccount, "protocol id is required", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if reachable := e.reachableLocked(d.PartyIDs); reachable < d.Threshold || e.unreachable[d.SelfID] {
		return "", uerrors.NewProtocolAbortedError(OpCreateAccount,
			fmt.Sprintf("key generation needs %d parties, %d reachable", d.Threshold, reachable))
	}

	w, ok := e.wallets[d.WalletID]
	if !ok {
		key, err := crypto.GenerateKey()
		if err != nil {
			return "", uerrors.NewEngineError(OpCreateAccount, "key generation failed", err)
		}
		w = &wallet{key: key, keygen: d}
		e.wallets[d.WalletID] = w
	} else if !w.keygen.SameRoster(d) {
		return "", uerrors.NewProtocolAbortedError(OpCreateAccount, "roster or threshold differs from the wallet's key generation")
	}

	return encodeHandle(handleEnvelope{
		Version:   handleVersion,
		ServerURL: d.ServerURL,
		WalletID:  d.WalletID,
		PartyID:   d.SelfID,
		PartyIDs:  d.PartyIDs,
		Threshold: d.Threshold,
	})
}

// GetAddress implements engine.Engine. Addresses come back lower-case.
func (e *Engine) GetAddress(ctx context.Context, handle string) (string, error) {
	if err := e.enter(ctx, OpGetAddress); err != nil {
		return "", err
	}
	env, err := decodeHandle(handle)
	if err != nil {
		return "", uerrors.NewEngineError(OpGetAddress, "unrecognized handle", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	w, ok := e.wallets[env.WalletID]
	if !ok {
		return "", uerrors.NewEngineError(OpGetAddress, "unknown key share", nil)
	}
	return strings.ToLower(crypto.PubkeyToAddress(w.key.PublicKey).Hex()), nil
}

// SignTransaction implements engine.Engine. The transaction is base64; a
// 32-byte payload is signed as a digest, anything else is hashed with
// Keccak-256 first. The result is base64 of R || S || V with V in {0, 1}.
func (e *Engine) SignTransaction(ctx context.Context, serverURL, handle, transaction, protocolID string) (string, error) {
	if err := e.enter(ctx, OpSignTransaction); err != nil {
		return "", err
	}
	env, err := decodeHandle(handle)
	if err != nil {
		return "", uerrors.NewEngineError(OpSignTransaction, "unrecognized handle", err)
	}
	if protocolID == "" {
		return "", uerrors.NewEngineError(OpSignTransaction, "protocol id is required", nil)
	}
	payload, err := base64.StdEncoding.DecodeString(transaction)
	if err != nil || len(payload) == 0 {
		return "", uerrors.NewEngineError(OpSignTransaction, "transaction is not base64", err)
	}

	e.mu.RLock()
	w, ok := e.wallets[env.WalletID]
	reachable := e.reachableLocked(env.PartyIDs)
	e.mu.RUnlock()

	if !ok {
		return "", uerrors.NewEngineError(OpSignTransaction, "unknown key share", nil)
	}
	if !w.keygen.SameRoster(descriptor.Descriptor{PartyIDs: env.PartyIDs, Threshold: env.Threshold}) {
		return "", uerrors.NewProtocolAbortedError(OpSignTransaction, "roster or threshold differs from the wallet's key generation")
	}
	if reachable < env.Threshold {
		return "", uerrors.NewProtocolAbortedError(OpSignTransaction,
			fmt.Sprintf("%d of %d parties reachable, threshold %d", reachable, len(env.PartyIDs), env.Threshold))
	}

	digest := payload
	if len(digest) != 32 {
		digest = crypto.Keccak256(payload)
	}
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return "", uerrors.NewEngineError(OpSignTransaction, "signing failed", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// enter records the call and applies gate, latency, offline and injected failures.
func (e *Engine) enter(ctx context.Context, op string) error {
	e.mu.Lock()
	e.calls[op]++
	gate := e.gate
	latency := e.latency
	offline := e.offline
	injected := e.failures[op]
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return uerrors.NewNetworkError(op, "engine did not respond", ctx.Err())
		}
	}
	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return uerrors.NewNetworkError(op, "engine did not respond", ctx.Err())
		}
	}
	if offline {
		return uerrors.NewNetworkError(op, "engine unreachable", nil)
	}
	return injected
}

func (e *Engine) reachableLocked(partyIDs []string) int {
	n := 0
	for _, id := range partyIDs {
		if !e.unreachable[id] {
			n++
		}
	}
	return n
}

func encodeHandle(env handleEnvelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", uerrors.NewEngineError(OpCreateAccount, "failed to encode handle", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodeHandle(handle string) (handleEnvelope, error) {
	var env handleEnvelope
	data, err := base64.StdEncoding.DecodeString(handle)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, err
	}
	if env.Version != handleVersion {
		return env, fmt.Errorf("unsupported handle version %d", env.Version)
	}
	return env, nil
}
