package mock

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-wallet-signer/walletClient/descriptor"
	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

const serverURL = "https://signer.example.com"

var roster = []string{"USER", "CAPSULE", "RECOVERY"}

func descriptorJSON(t *testing.T, walletID, self string, threshold int) string {
	t.Helper()
	d, err := descriptor.Build(serverURL, walletID, self, roster, threshold)
	require.NoError(t, err)
	s, err := d.JSON()
	require.NoError(t, err)
	return s
}

func TestEngine_CreateAndAddress(t *testing.T) {
	e := New()
	ctx := context.Background()

	user, err := e.CreateAccount(ctx, serverURL, descriptorJSON(t, "wallet-1", "USER", 1), "proto-ecdsa")
	require.NoError(t, err)
	recovery, err := e.CreateAccount(ctx, serverURL, descriptorJSON(t, "wallet-1", "RECOVERY", 1), "proto-ecdsa")
	require.NoError(t, err)
	assert.NotEqual(t, user, recovery)

	a1, err := e.GetAddress(ctx, user)
	require.NoError(t, err)
	a2, err := e.GetAddress(ctx, recovery)
	require.NoError(t, err)

	assert.Equal(t, a1, a2, "shares of one wallet derive the same address")
	assert.True(t, common.IsHexAddress(a1))
	assert.Equal(t, e.AddressOf("wallet-1"), common.HexToAddress(a1).Hex())
	assert.Equal(t, 2, e.Calls(OpCreateAccount))
	assert.Equal(t, 2, e.Calls(OpGetAddress))
	assert.Equal(t, 4, e.TotalCalls())
}

func TestEngine_SignVerifies(t *testing.T) {
	e := New()
	ctx := context.Background()
	handle, err := e.CreateAccount(ctx, serverURL, descriptorJSON(t, "wallet-1", "USER", 1), "proto-ecdsa")
	require.NoError(t, err)

	payload := []byte("raw transaction bytes")
	res, err := e.SignTransaction(ctx, serverURL, handle, base64.StdEncoding.EncodeToString(payload), "proto-ecdsa")
	require.NoError(t, err)

	sig, err := base64.StdEncoding.DecodeString(res)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	pub, err := crypto.SigToPub(crypto.Keccak256(payload), sig)
	require.NoError(t, err)
	assert.Equal(t, e.AddressOf("wallet-1"), crypto.PubkeyToAddress(*pub).Hex())
}

func TestEngine_ThresholdNotMet(t *testing.T) {
	e := New()
	ctx := context.Background()
	handle, err := e.CreateAccount(ctx, serverURL, descriptorJSON(t, "wallet-1", "USER", 2), "proto-ecdsa")
	require.NoError(t, err)

	e.SetUnreachableParties("CAPSULE", "RECOVERY")
	_, err = e.SignTransaction(ctx, serverURL, handle, base64.StdEncoding.EncodeToString([]byte("tx")), "proto-ecdsa")
	require.Error(t, err)
	assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeProtocolAborted))
	assert.Contains(t, err.Error(), "1 of 3 parties reachable, threshold 2")

	e.SetPartyReachable("CAPSULE", true)
	_, err = e.SignTransaction(ctx, serverURL, handle, base64.StdEncoding.EncodeToString([]byte("tx")), "proto-ecdsa")
	require.NoError(t, err)
}

func TestEngine_RosterMismatch(t *testing.T) {
	e := New()
	ctx := context.Background()
	_, err := e.CreateAccount(ctx, serverURL, descriptorJSON(t, "wallet-1", "USER", 1), "proto-ecdsa")
	require.NoError(t, err)

	_, err = e.CreateAccount(ctx, serverURL, descriptorJSON(t, "wallet-1", "RECOVERY", 2), "proto-ecdsa")
	require.Error(t, err)
	assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeProtocolAborted))
}

func TestEngine_FailureModes(t *testing.T) {
	ctx := context.Background()

	t.Run("offline", func(t *testing.T) {
		e := New()
		e.SetOffline(true)
		_, err := e.GetAddress(ctx, "anything")
		assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeNetwork))
	})

	t.Run("injected failure", func(t *testing.T) {
		e := New()
		injected := uerrors.NewEngineError(OpGetAddress, "hsm offline", nil)
		e.SetFailure(OpGetAddress, injected)
		_, err := e.GetAddress(ctx, "anything")
		assert.Same(t, injected, err)

		e.SetFailure(OpGetAddress, nil)
		_, err = e.GetAddress(ctx, "anything")
		assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeEngine))
		assert.Contains(t, err.Error(), "unrecognized handle")
	})

	t.Run("latency honours context", func(t *testing.T) {
		e := New()
		e.SetLatency(time.Hour)
		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := e.GetAddress(cctx, "anything")
		assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeNetwork))
		assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	})

	t.Run("hold blocks until release", func(t *testing.T) {
		e := New()
		dj := descriptorJSON(t, "w", "USER", 1)
		release := e.Hold()
		done := make(chan error, 1)
		go func() {
			_, err := e.CreateAccount(ctx, serverURL, dj, "p")
			done <- err
		}()

		select {
		case <-done:
			t.Fatal("call returned while held")
		case <-time.After(20 * time.Millisecond):
		}
		release()
		release()
		require.NoError(t, <-done)
	})

	t.Run("server mismatch", func(t *testing.T) {
		e := New()
		_, err := e.CreateAccount(ctx, "https://other", descriptorJSON(t, "w", "USER", 1), "p")
		assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeEngine))
	})
}
