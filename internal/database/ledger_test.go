package database

import (
	"fmt"
	"testing"

	"creator-ledger/internal/config"
	"creator-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(&config.Config{
		DatabaseDriver: "sqlite",
		SQLitePath:     fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel:       "error",
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func testTransaction(id string) *models.LedgerTransaction {
	return &models.LedgerTransaction{
		ID:             uuid.NewString(),
		TransactionID:  id,
		SenderHash:     "s",
		ReceiverHash:   "r",
		ProductType:    models.ProductTip,
		TokenAmount:    decimal.NewFromInt(10),
		ConversionRate: decimal.RequireFromString("0.01"),
		USDEquivalent:  decimal.RequireFromString("0.10"),
		PlatformShare:  decimal.RequireFromString("3.50"),
		CreatorShare:   decimal.RequireFromString("6.50"),
		RegionTag:      "EU",
		Status:         models.StatusPending,
		BlockchainHash: "h",
		Version:        1,
	}
}

func TestAmendLedgerTransactionChecksVersion(t *testing.T) {
	db := openTestDB(t)
	row := testTransaction("tx-1")
	require.NoError(t, CreateLedgerTransaction(db, row))

	changed, err := AmendLedgerTransaction(db, row.ID, 1, map[string]interface{}{"status": models.StatusDisputed, "version": 2})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = AmendLedgerTransaction(db, row.ID, 1, map[string]interface{}{"status": models.StatusCancelled, "version": 2})
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := LockLedgerTransaction(db, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisputed, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestDuplicateTransactionIDIsDuplicateKey(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, CreateLedgerTransaction(db, testTransaction("tx-dup")))

	err := CreateLedgerTransaction(db, testTransaction("tx-dup"))
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
	assert.False(t, IsDuplicateKey(gorm.ErrRecordNotFound))
	assert.False(t, IsDuplicateKey(nil))
}

func TestChainQueries(t *testing.T) {
	db := openTestDB(t)

	tail, err := GetChainTail(db)
	require.NoError(t, err)
	assert.Nil(t, tail)

	previous := models.GenesisHash
	for i := int64(1); i <= 3; i++ {
		hash := fmt.Sprintf("%064d", i)
		require.NoError(t, CreateChainBlock(db, &models.ChainBlock{
			ID:            uuid.NewString(),
			Sequence:      i,
			BlockHash:     hash,
			PreviousHash:  previous,
			LedgerID:      "ledger-1",
			TransactionID: "tx-1",
			Event:         models.EventRecord,
			Data:          []byte(`{}`),
			Timestamp:     i,
		}))
		previous = hash
	}

	tail, err = GetChainTail(db)
	require.NoError(t, err)
	assert.Equal(t, int64(3), tail.Sequence)

	page, err := ListChainBlocks(db, 2, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].Sequence)

	// a second block on the same predecessor is a fork and must be refused
	err = CreateChainBlock(db, &models.ChainBlock{
		ID:            uuid.NewString(),
		Sequence:      4,
		BlockHash:     fmt.Sprintf("%064d", 99),
		PreviousHash:  fmt.Sprintf("%064d", 2),
		LedgerID:      "ledger-2",
		TransactionID: "tx-2",
		Event:         models.EventRecord,
		Data:          []byte(`{}`),
	})
	assert.True(t, IsDuplicateKey(err))

	byHash, err := GetChainBlockByHash(db, tail.BlockHash)
	require.NoError(t, err)
	assert.Equal(t, tail.ID, byHash.ID)
}
