// Package store contains GORM-backed SQLite models used by the wallet signer.
//
// Database Structure (database file: accounts.db):
//
//	databases/
//	└── accounts.db
//	    └── accounts
package store

import (
	"gorm.io/gorm"
)

// Account maps an on-chain address to the wallet that owns its key shares.
// It lets the signer resolve a wallet id without asking the user-management
// service on every message signature.
type Account struct {
	gorm.Model
	Address    string `gorm:"uniqueIndex;not null"` // Checksummed 0x address
	WalletID   string `gorm:"index;not null"`
	UserID     string `gorm:"index"`
	ProtocolID string // Protocol id of the key generation round that created the wallet
}

// TableName specifies the table name for Account.
func (Account) TableName() string {
	return "accounts"
}
