package usermgmt

import (
	"context"

	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

// ReauthenticateFunc refreshes the user session.
type ReauthenticateFunc func(ctx context.Context) error

// RequestAndReauthenticate runs request and, if the session was rejected,
// reauthenticates once and runs it again. Any other failure is returned
// unchanged.
func RequestAndReauthenticate[T any](ctx context.Context, request func(context.Context) (T, error), reauthenticate ReauthenticateFunc) (T, error) {
	res, err := request(ctx)
	if err == nil || !uerrors.IsCode(err, uerrors.ErrCodeAuth) || reauthenticate == nil {
		return res, err
	}
	if rerr := reauthenticate(ctx); rerr != nil {
		var zero T
		return zero, uerrors.Wrap(rerr, "reauthentication failed")
	}
	return request(ctx)
}
