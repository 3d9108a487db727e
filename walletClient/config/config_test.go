package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-wallet-signer/walletClient/constant"
)

func validBase() *Config {
	return &Config{
		LogLevel:         1,
		LogFormat:        "json",
		NodeHome:         "/tmp/pwallet",
		SigningServerURL: "https://signer.example.com",
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults are filled",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, constant.DefaultRoster, cfg.PartyIDs)
				assert.Equal(t, 1, cfg.Threshold)
				assert.Equal(t, "USER", cfg.SelfPartyID)
				assert.Equal(t, "RECOVERY", cfg.RecoveryPartyID)
				assert.Equal(t, 120, cfg.DispatchTimeoutSeconds)
				assert.Equal(t, 60, cfg.EngineRequestTimeoutSeconds)
				assert.Equal(t, 3, cfg.MaxRetries)
				assert.Equal(t, 1, cfg.RetryBackoffSeconds)
				assert.Equal(t, 8090, cfg.QueryServerPort)
				assert.Equal(t, cfg.SigningServerURL, cfg.EngineURL)
			},
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.LogLevel = 9 },
			expectError: true,
			errorMsg:    "log level must be between 0 and 5",
		},
		{
			name:        "invalid log format",
			mutate:      func(c *Config) { c.LogFormat = "xml" },
			expectError: true,
			errorMsg:    "log format must be 'json' or 'console'",
		},
		{
			name:        "missing server url",
			mutate:      func(c *Config) { c.SigningServerURL = "  " },
			expectError: true,
			errorMsg:    "signing_server_url is required",
		},
		{
			name: "threshold above roster size",
			mutate: func(c *Config) {
				c.PartyIDs = []string{"USER", "RECOVERY"}
				c.Threshold = 3
			},
			expectError: true,
			errorMsg:    "threshold must be between 1 and 2",
		},
		{
			name:        "duplicate party",
			mutate:      func(c *Config) { c.PartyIDs = []string{"USER", "USER", "RECOVERY"} },
			expectError: true,
			errorMsg:    "duplicate identity",
		},
		{
			name:        "self not in roster",
			mutate:      func(c *Config) { c.SelfPartyID = "GHOST" },
			expectError: true,
			errorMsg:    "self_party_id",
		},
		{
			name:        "negative max retries",
			mutate:      func(c *Config) { c.MaxRetries = -1 },
			expectError: true,
			errorMsg:    "must not be negative",
		},
		{
			name:        "negative retry backoff",
			mutate:      func(c *Config) { c.RetryBackoffSeconds = -2 },
			expectError: true,
			errorMsg:    "must not be negative",
		},
		{
			name: "custom roster",
			mutate: func(c *Config) {
				c.PartyIDs = []string{"A", "B", "C", "D", "E"}
				c.Threshold = 3
				c.SelfPartyID = "A"
				c.RecoveryPartyID = "E"
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3, cfg.Threshold)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := validateConfig(cfg)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	home := t.TempDir()
	cfg := validBase()
	cfg.NodeHome = home
	cfg.KeysharePassword = "secret"

	require.NoError(t, Save(cfg, home))

	info, err := os.Stat(filepath.Join(home, constant.ConfigSubdir, constant.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(home)
	require.NoError(t, err)
	assert.Equal(t, *cfg, loaded)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	require.NoError(t, validateConfig(cfg))

	assert.Equal(t, []string{"USER", "CAPSULE", "RECOVERY"}, cfg.PartyIDs)
	assert.Equal(t, 1, cfg.Threshold)
	assert.NotEmpty(t, cfg.SigningServerURL)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PWALLET_SIGNING_SERVER_URL":       "https://override.example.com",
		"PWALLET_THRESHOLD":                "2",
		"PWALLET_PARTY_IDS":                "USER,CAPSULE, RECOVERY",
		"PWALLET_LOG_SAMPLER":              "true",
		"PWALLET_QUERY_SERVER_PORT":        "not-a-number",
		"PWALLET_DISPATCH_TIMEOUT_SECONDS": "30",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := validBase()
	cfg.QueryServerPort = 9000
	ApplyEnv(cfg, lookup)

	assert.Equal(t, "https://override.example.com", cfg.SigningServerURL)
	assert.Equal(t, 2, cfg.Threshold)
	assert.Equal(t, []string{"USER", "CAPSULE", "RECOVERY"}, cfg.PartyIDs)
	assert.True(t, cfg.LogSampler)
	assert.Equal(t, 9000, cfg.QueryServerPort)
	assert.Equal(t, 30, cfg.DispatchTimeoutSeconds)
}
