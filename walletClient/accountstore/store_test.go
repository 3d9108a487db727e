package accountstore

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pushchain/push-wallet-signer/walletClient/store"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&store.Account{}))
	return db
}

func TestStore_UpsertAndGet(t *testing.T) {
	s := NewStore(setupTestDB(t), zerolog.Nop())

	require.NoError(t, s.Upsert(store.Account{
		Address:    "0xAbC0000000000000000000000000000000000001",
		WalletID:   "wallet-1",
		UserID:     "user-1",
		ProtocolID: "proto-1",
	}))

	got, err := s.GetByAddress("0xabc0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "wallet-1", got.WalletID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "proto-1", got.ProtocolID)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", got.Address)

	t.Run("upsert replaces wallet", func(t *testing.T) {
		require.NoError(t, s.Upsert(store.Account{
			Address:  "0xABC0000000000000000000000000000000000001",
			WalletID: "wallet-2",
			UserID:   "user-1",
		}))
		got, err := s.GetByAddress("0xAbC0000000000000000000000000000000000001")
		require.NoError(t, err)
		assert.Equal(t, "wallet-2", got.WalletID)

		var count int64
		require.NoError(t, s.db.Model(&store.Account{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore(setupTestDB(t), zerolog.Nop())
	_, err := s.GetByAddress("0x1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpsertValidation(t *testing.T) {
	s := NewStore(setupTestDB(t), zerolog.Nop())
	assert.Error(t, s.Upsert(store.Account{WalletID: "w"}))
	assert.Error(t, s.Upsert(store.Account{Address: "0x1"}))
}

func TestStore_ListByUser(t *testing.T) {
	s := NewStore(setupTestDB(t), zerolog.Nop())

	require.NoError(t, s.Upsert(store.Account{Address: "0x1", WalletID: "w1", UserID: "alice"}))
	require.NoError(t, s.Upsert(store.Account{Address: "0x2", WalletID: "w2", UserID: "bob"}))
	require.NoError(t, s.Upsert(store.Account{Address: "0x3", WalletID: "w3", UserID: "alice"}))

	accounts, err := s.ListByUser("alice")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "w1", accounts[0].WalletID)
	assert.Equal(t, "w3", accounts[1].WalletID)

	accounts, err = s.ListByUser("carol")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(setupTestDB(t), zerolog.Nop())
	require.NoError(t, s.Upsert(store.Account{Address: "0x1", WalletID: "w1"}))

	require.NoError(t, s.Delete("0X1"))
	assert.ErrorIs(t, s.Delete("0x1"), ErrNotFound)

	_, err := s.GetByAddress("0x1")
	assert.ErrorIs(t, err, ErrNotFound)

	// address can be reused after delete
	require.NoError(t, s.Upsert(store.Account{Address: "0x1", WalletID: "w2"}))
}
