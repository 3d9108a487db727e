package usermgmt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

func fastRetry() *uerrors.RetryConfig {
	return &uerrors.RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		Multiplier:      2,
		RetryableErrors: []uerrors.ErrorCode{uerrors.ErrCodeNetwork},
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c, err := NewClient(server.URL, time.Second, fastRetry(), zerolog.Nop())
	require.NoError(t, err)
	return c, server
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(" ", time.Second, nil, zerolog.Nop())
	assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeConfig))
}

func TestClient_CreateWallet(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/user-1/wallets", r.URL.Path)
		_ = json.NewEncoder(w).Encode(WalletInfo{WalletID: "wallet-1", ProtocolID: "proto-1"})
	})

	info, err := c.CreateWallet(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, &WalletInfo{WalletID: "wallet-1", ProtocolID: "proto-1"}, info)

	_, err = c.CreateWallet(context.Background(), "")
	assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeValidation))
}

func TestClient_CreateWalletIncompleteResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"walletId":"wallet-1"}`))
	})
	_, err := c.CreateWallet(context.Background(), "user-1")
	assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeInternal))
}

func TestClient_GetWalletsAndFind(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"wallets":[{"id":"w0"},{"id":"w1","address":"0xAbC"},{"id":"w2","address":"0xdef"}]}`))
	})

	wallets, err := c.GetWallets(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, wallets, 3)

	id, ok, err := c.FindWallet(context.Background(), "user-1", "0xabc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "w1", id)

	_, ok, err = c.FindWallet(context.Background(), "user-1", "0x999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_PreSignMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/user-1/wallets/wallet%2F1/messages/sign", r.URL.EscapedPath())
		var req preSignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0xdeadbeef", req.Message)
		_, _ = w.Write([]byte(`{"protocolId":"proto-sign"}`))
	})

	info, err := c.PreSignMessage(context.Background(), "user-1", "wallet/1", "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, "proto-sign", info.ProtocolID)
}

func TestClient_Classification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   uerrors.ErrorCode
	}{
		{"user not matching", http.StatusForbidden, UserNotMatching, uerrors.ErrCodeAuth},
		{"user not authenticated json string", http.StatusForbidden, `"USER_NOT_AUTHENTICATED"`, uerrors.ErrCodeAuth},
		{"unauthorized", http.StatusUnauthorized, "expired", uerrors.ErrCodeAuth},
		{"bad request", http.StatusBadRequest, "bad wallet", uerrors.ErrCodeValidation},
		{"server error", http.StatusInternalServerError, "oops", uerrors.ErrCodeInternal},
		{"unavailable", http.StatusServiceUnavailable, "maintenance", uerrors.ErrCodeNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.GetWallets(context.Background(), "user-1")
			assert.Equal(t, tt.code, uerrors.CodeOf(err))
		})
	}
}

func TestClient_RetriesNetworkFailures(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"wallets":[]}`))
	})

	_, err := c.GetWallets(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_RetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.GetWallets(context.Background(), "user-1")
	assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeNetwork))
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_AuthNotRetried(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(UserNotMatching))
	})

	_, err := c.GetWallets(context.Background(), "user-1")
	assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeAuth))
	assert.Equal(t, int32(1), hits.Load())
}

func TestRequestAndReauthenticate(t *testing.T) {
	authErr := uerrors.NewAuthError("op", UserNotAuthenticated)

	t.Run("success without reauth", func(t *testing.T) {
		reauths := 0
		v, err := RequestAndReauthenticate(context.Background(),
			func(context.Context) (string, error) { return "ok", nil },
			func(context.Context) error { reauths++; return nil })
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Zero(t, reauths)
	})

	t.Run("reauth then retry once", func(t *testing.T) {
		calls, reauths := 0, 0
		v, err := RequestAndReauthenticate(context.Background(),
			func(context.Context) (int, error) {
				calls++
				if calls == 1 {
					return 0, authErr
				}
				return 42, nil
			},
			func(context.Context) error { reauths++; return nil })
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 2, calls)
		assert.Equal(t, 1, reauths)
	})

	t.Run("still rejected after reauth", func(t *testing.T) {
		calls := 0
		_, err := RequestAndReauthenticate(context.Background(),
			func(context.Context) (int, error) { calls++; return 0, authErr },
			func(context.Context) error { return nil })
		assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeAuth))
		assert.Equal(t, 2, calls)
	})

	t.Run("reauth fails", func(t *testing.T) {
		_, err := RequestAndReauthenticate(context.Background(),
			func(context.Context) (int, error) { return 0, authErr },
			func(context.Context) error { return errors.New("login expired") })
		assert.ErrorContains(t, err, "login expired")
	})

	t.Run("other errors pass through", func(t *testing.T) {
		reauths := 0
		netErr := uerrors.NewNetworkError("op", "down", nil)
		_, err := RequestAndReauthenticate(context.Background(),
			func(context.Context) (int, error) { return 0, netErr },
			func(context.Context) error { reauths++; return nil })
		assert.Equal(t, netErr, err)
		assert.Zero(t, reauths)
	})
}

func TestClient_ReauthenticateWithCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "fresh", Path: "/"})
	})
	mux.HandleFunc("/users/user-1/wallets", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err != nil || ck.Value != "fresh" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(UserNotAuthenticated))
			return
		}
		_, _ = w.Write([]byte(`{"wallets":[{"id":"w1","address":"0x1"}]}`))
	})
	c, server := newTestClient(t, mux.ServeHTTP)

	login := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL+"/login", nil)
		if err != nil {
			return err
		}
		resp, err := c.HTTPClient().Do(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}

	wallets, err := RequestAndReauthenticate(context.Background(),
		func(ctx context.Context) ([]Wallet, error) { return c.GetWallets(ctx, "user-1") },
		login)
	require.NoError(t, err)
	assert.Equal(t, []Wallet{{ID: "w1", Address: "0x1"}}, wallets)
}
