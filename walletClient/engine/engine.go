// Package engine defines the boundary to the external threshold-signing
// engine. The engine runs key generation and signing rounds with the other
// parties; callers only see the three operations below.
//
// Implementations report failures as *errors.SignerError with one of
// ErrCodeNetwork, ErrCodeProtocolAborted or ErrCodeEngine. Any other error
// is treated as ErrCodeEngine by the dispatcher.
package engine

import "context"

// Engine is the signing engine contract. All values are UTF-8 text and
// opaque to the caller.
type Engine interface {
	// CreateAccount runs a distributed key generation round for the party
	// described by descriptorJSON and returns this party's handle.
	CreateAccount(ctx context.Context, serverURL, descriptorJSON, protocolID string) (string, error)

	// GetAddress derives the account address from a handle.
	GetAddress(ctx context.Context, handle string) (string, error)

	// SignTransaction runs a threshold signing round over transaction and
	// returns the engine's result artifact.
	SignTransaction(ctx context.Context, serverURL, handle, transaction, protocolID string) (string, error)
}
