// Package accountstore is the local registry of accounts created on this
// device. The signer uses it as a cache in front of the user-management
// service when it needs the wallet behind an address.
package accountstore

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pushchain/push-wallet-signer/walletClient/store"
)

// ErrNotFound is returned when no account matches.
var ErrNotFound = errors.New("account not found")

// Store provides database access for accounts.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates an account store on an already migrated database.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "account_store").Logger(),
	}
}

// Upsert records account, replacing the wallet, user and protocol of an
// existing row with the same address. Addresses compare case-insensitively.
func (s *Store) Upsert(account store.Account) error {
	if strings.TrimSpace(account.Address) == "" {
		return errors.New("account address is required")
	}
	if strings.TrimSpace(account.WalletID) == "" {
		return errors.New("account wallet id is required")
	}
	account.Address = normalize(account.Address)

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"wallet_id", "user_id", "protocol_id", "updated_at"}),
	}).Create(&account).Error
	if err != nil {
		return errors.Wrapf(err, "failed to upsert account %s", account.Address)
	}

	s.logger.Debug().Str("address", account.Address).Str("wallet_id", account.WalletID).Msg("account recorded")
	return nil
}

// GetByAddress returns the account for address.
func (s *Store) GetByAddress(address string) (*store.Account, error) {
	var account store.Account
	err := s.db.Where("address = ?", normalize(address)).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to query account")
	}
	return &account, nil
}

// ListByUser returns every account of userID, oldest first.
func (s *Store) ListByUser(userID string) ([]store.Account, error) {
	var accounts []store.Account
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&accounts).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list accounts")
	}
	return accounts, nil
}

// Delete removes the account for address.
func (s *Store) Delete(address string) error {
	result := s.db.Unscoped().Where("address = ?", normalize(address)).Delete(&store.Account{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete account")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Addresses are stored lower-case so lookups ignore EIP-55 checksum casing.
func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
