package config

import "time"

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home"` // Home directory (default: ~/.pwallet)

	// Signing engine configuration
	SigningServerURL string `json:"signing_server_url"` // Coordinating signing server, carried in every descriptor
	EngineURL        string `json:"engine_url"`         // Engine endpoint for address derivation (default: signing_server_url)

	// Party roster
	PartyIDs        []string `json:"party_ids"`         // Ordered roster (default: ["USER","CAPSULE","RECOVERY"])
	Threshold       int      `json:"threshold"`         // Minimum parties for a signature (default: 1)
	SelfPartyID     string   `json:"self_party_id"`     // This device's party (default: USER)
	RecoveryPartyID string   `json:"recovery_party_id"` // Party whose share is handed back for backup (default: RECOVERY)

	// Dispatch configuration
	DispatchTimeoutSeconds      int `json:"dispatch_timeout_seconds"`       // Upper bound on one dispatched operation (default: 120)
	EngineRequestTimeoutSeconds int `json:"engine_request_timeout_seconds"` // HTTP timeout for one engine request (default: 60)

	// User management service
	UserManagementURL   string `json:"user_management_url"`
	MaxRetries          int    `json:"max_retries"`           // Max attempts for user management calls (default: 3)
	RetryBackoffSeconds int    `json:"retry_backoff_seconds"` // Initial backoff (default: 1)

	// Query Server Config
	QueryServerPort int `json:"query_server_port"` // Port for the host API server (default: 8090)

	// Keyshare storage
	KeysharePassword string `json:"keyshare_password"` // Encryption password for stored handles
}

// DispatchTimeout returns the dispatcher bound as a duration.
func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSeconds) * time.Second
}

// EngineRequestTimeout returns the per-request engine timeout as a duration.
func (c *Config) EngineRequestTimeout() time.Duration {
	return time.Duration(c.EngineRequestTimeoutSeconds) * time.Second
}

// RetryBackoff returns the initial user management backoff as a duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSeconds) * time.Second
}
