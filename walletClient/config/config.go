package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"

	"github.com/pushchain/push-wallet-signer/walletClient/constant"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.NodeHome == "" {
		cfg.NodeHome = constant.DefaultNodeHome
	}

	if strings.TrimSpace(cfg.SigningServerURL) == "" {
		return fmt.Errorf("signing_server_url is required")
	}
	if cfg.EngineURL == "" {
		cfg.EngineURL = cfg.SigningServerURL
	}

	// Roster defaults
	if len(cfg.PartyIDs) == 0 {
		cfg.PartyIDs = append([]string(nil), constant.DefaultRoster...)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = constant.DefaultThreshold
	}
	if cfg.SelfPartyID == "" {
		cfg.SelfPartyID = constant.PartyUser
	}
	if cfg.RecoveryPartyID == "" {
		cfg.RecoveryPartyID = constant.PartyRecovery
	}

	// Validate roster
	seen := make(map[string]struct{}, len(cfg.PartyIDs))
	for _, id := range cfg.PartyIDs {
		if id == "" {
			return fmt.Errorf("party_ids must not contain empty identities")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("party_ids contains duplicate identity %q", id)
		}
		seen[id] = struct{}{}
	}
	if cfg.Threshold < 1 || cfg.Threshold > len(cfg.PartyIDs) {
		return fmt.Errorf("threshold must be between 1 and %d", len(cfg.PartyIDs))
	}
	if _, ok := seen[cfg.SelfPartyID]; !ok {
		return fmt.Errorf("self_party_id %q is not in party_ids", cfg.SelfPartyID)
	}
	if _, ok := seen[cfg.RecoveryPartyID]; !ok {
		return fmt.Errorf("recovery_party_id %q is not in party_ids", cfg.RecoveryPartyID)
	}

	// Set defaults for dispatch config
	if cfg.DispatchTimeoutSeconds == 0 {
		cfg.DispatchTimeoutSeconds = 120
	}
	if cfg.EngineRequestTimeoutSeconds == 0 {
		cfg.EngineRequestTimeoutSeconds = 60
	}
	if cfg.DispatchTimeoutSeconds < 0 || cfg.EngineRequestTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	// Set defaults for user management config
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoffSeconds == 0 {
		cfg.RetryBackoffSeconds = 1
	}
	if cfg.MaxRetries < 0 || cfg.RetryBackoffSeconds < 0 {
		return fmt.Errorf("max_retries and retry_backoff_seconds must not be negative")
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8090
	}

	return nil
}

// Validate fills defaults and checks the config.
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

// Save writes the given config to <NodeHome>/config/pwallet_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads the config from <basePath>/config/pwallet_config.json, applies
// environment overrides, and validates the result.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyEnv(&cfg, os.LookupEnv)
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

// LookupFunc resolves an environment variable; os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides config fields from PWALLET_* variables.
// Unparseable numeric values are ignored and the file value is kept.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	str := func(name string, dst *string) {
		if v, ok := lookup(constant.EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(constant.EnvPrefix + name); ok && v != "" {
			if n, err := cast.ToIntE(v); err == nil {
				*dst = n
			}
		}
	}

	num("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	if v, ok := lookup(constant.EnvPrefix + "LOG_SAMPLER"); ok && v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			cfg.LogSampler = b
		}
	}
	str("NODE_HOME", &cfg.NodeHome)
	str("SIGNING_SERVER_URL", &cfg.SigningServerURL)
	str("ENGINE_URL", &cfg.EngineURL)
	if v, ok := lookup(constant.EnvPrefix + "PARTY_IDS"); ok && v != "" {
		cfg.PartyIDs = cast.ToStringSlice(strings.ReplaceAll(v, ",", " "))
	}
	num("THRESHOLD", &cfg.Threshold)
	str("SELF_PARTY_ID", &cfg.SelfPartyID)
	str("RECOVERY_PARTY_ID", &cfg.RecoveryPartyID)
	num("DISPATCH_TIMEOUT_SECONDS", &cfg.DispatchTimeoutSeconds)
	num("ENGINE_REQUEST_TIMEOUT_SECONDS", &cfg.EngineRequestTimeoutSeconds)
	str("USER_MANAGEMENT_URL", &cfg.UserManagementURL)
	num("MAX_RETRIES", &cfg.MaxRetries)
	num("RETRY_BACKOFF_SECONDS", &cfg.RetryBackoffSeconds)
	num("QUERY_SERVER_PORT", &cfg.QueryServerPort)
	str("KEYSHARE_PASSWORD", &cfg.KeysharePassword)
}
