package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-wallet-signer/walletClient/config"
	"github.com/pushchain/push-wallet-signer/walletClient/constant"
	"github.com/pushchain/push-wallet-signer/walletClient/engine/mock"
	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	cfg.NodeHome = t.TempDir()
	cfg.QueryServerPort = freePort(t)
	return cfg
}

func TestNewWalletClient(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewWalletClient(context.Background(), zerolog.Nop(), nil)
		assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeConfig))
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Threshold = 9
		_, err := NewWalletClient(context.Background(), zerolog.Nop(), cfg)
		assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeConfig))
	})

	t.Run("file database under node home", func(t *testing.T) {
		cfg := testConfig(t)
		wc, err := NewWalletClient(context.Background(), zerolog.Nop(), cfg)
		require.NoError(t, err)
		defer wc.Close()

		assert.FileExists(t, filepath.Join(cfg.NodeHome, constant.DatabasesSubdir, constant.AccountsDBName))
		assert.Equal(t, cfg.SigningServerURL, wc.Coordinator().ServerURL())
	})

	t.Run("signer needs keyshare password", func(t *testing.T) {
		wc, err := NewWalletClient(context.Background(), zerolog.Nop(), testConfig(t), WithInMemoryDB())
		require.NoError(t, err)
		defer wc.Close()

		_, err = wc.NewSigner("user-1", nil)
		assert.True(t, uerrors.IsCode(err, uerrors.ErrCodeConfig))
	})

	t.Run("signer with keyshare password", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.KeysharePassword = "pw"
		wc, err := NewWalletClient(context.Background(), zerolog.Nop(), cfg, WithInMemoryDB())
		require.NoError(t, err)
		defer wc.Close()

		s, err := wc.NewSigner("user-1", nil)
		require.NoError(t, err)
		assert.NotNil(t, s)
	})
}

func TestWalletClient_StartServesAndStops(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	wc, err := NewWalletClient(ctx, zerolog.Nop(), cfg, WithEngine(mock.New()), WithInMemoryDB())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- wc.Start() }()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.QueryServerPort)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/api/v1/accounts", "application/json",
		strings.NewReader(`{"walletId":"wallet-1","protocolId":"proto-ecdsa","selfId":"USER"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"handle"`)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "pwallet_dispatcher_inflight_operations")
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
