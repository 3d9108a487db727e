package constant

import "os"

// <NodeDir>/                    (e.g., /home/wallet/.pwallet)
// └── config/
//	└── pwallet_config.json
// └── databases/
//	└── accounts.db
// └── keyshares/
//	└── 0xAbC...

const (
	NodeDir = ".pwallet"

	ConfigSubdir   = "config"
	ConfigFileName = "pwallet_config.json"

	DatabasesSubdir = "databases"
	AccountsDBName  = "accounts.db"

	// EnvPrefix prefixes every environment override, e.g. PWALLET_SIGNING_SERVER_URL.
	EnvPrefix = "PWALLET_"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir

// Party identities of the fixed roster.
const (
	PartyUser     = "USER"
	PartyCapsule  = "CAPSULE"
	PartyRecovery = "RECOVERY"
)

// DefaultRoster is the deployment's three-party roster.
var DefaultRoster = []string{PartyUser, PartyCapsule, PartyRecovery}

// DefaultThreshold is the engine policy for DefaultRoster.
const DefaultThreshold = 1
