// Package db provides a lightweight GORM-based SQLite wrapper for the
// wallet signer's local state.
package db

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pushchain/push-wallet-signer/walletClient/store"
)

const (
	// InMemorySQLiteDSN is a special DSN to create an ephemeral in-memory SQLite database.
	InMemorySQLiteDSN = ":memory:"

	// dbDirPermissions sets directory permissions to 750 (rwxr-x---).
	dbDirPermissions = 0o750

	fileDSNParams = "?_journal_mode=WAL&_busy_timeout=5000&mode=rwc"
)

var (
	gormConfig = &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	// schemaModels lists the structs to be auto-migrated into the database.
	schemaModels = []any{
		&store.Account{},
	}
)

// DB wraps a GORM client.
type DB struct {
	client *gorm.DB
}

// OpenFileDB opens (or creates) a file-backed SQLite database in dir.
func OpenFileDB(dir, filename string, migrateSchema bool) (*DB, error) {
	dsn, err := prepareFilePath(dir, filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare database path")
	}
	return openSQLite(dsn+fileDSNParams, migrateSchema)
}

// OpenInMemoryDB opens a non-persistent SQLite database, for tests and
// runs without a home directory.
func OpenInMemoryDB(migrateSchema bool) (*DB, error) {
	return openSQLite(InMemorySQLiteDSN, migrateSchema)
}

func openSQLite(dsn string, migrateSchema bool) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}

	// One connection: WAL prefers a single writer and an in-memory
	// database exists per connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if migrateSchema {
		if err := db.AutoMigrate(schemaModels...); err != nil {
			_ = sqlDB.Close()
			return nil, errors.Wrap(err, "failed to auto-migrate database schema")
		}
	}

	return &DB{client: db}, nil
}

// Client returns the internal *gorm.DB instance.
func (d *DB) Client() *gorm.DB {
	return d.client
}

// Close closes the underlying connection. Closing twice is harmless.
func (d *DB) Close() error {
	sqlDB, err := d.client.DB()
	if err != nil {
		return errors.Wrap(err, "failed to retrieve native sql.DB")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrap(err, "failed to close database connection")
	}
	return nil
}

func prepareFilePath(dir, filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", errors.New("database filename is empty")
	}
	if err := os.MkdirAll(dir, dbDirPermissions); err != nil {
		return "", errors.Wrapf(err, "failed to create directory: %s", dir)
	}
	return filepath.Join(dir, filename), nil
}
