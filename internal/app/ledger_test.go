package app

import (
	"context"
	"fmt"
	"os"
	"testing"

	"creator-ledger/internal/config"
	"creator-ledger/internal/database"
	"creator-ledger/internal/services"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertNotifierChannels(t *testing.T) {
	assert.Nil(t, AlertNotifier(&config.Config{}))

	n := AlertNotifier(&config.Config{
		BrevoAPIKey:     "key",
		AlertEmail:      "ops@example.com",
		AlertWebhookURL: "https://hooks.example.com/ledger",
	})
	multi, ok := n.(services.MultiNotifier)
	require.True(t, ok)
	assert.Len(t, multi, 2)
}

func TestNewLedgerWiresServices(t *testing.T) {
	cfg := &config.Config{
		DatabaseDriver:   "sqlite",
		SQLitePath:       fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		AppendMaxRetries: 3,
		VerifyPageSize:   10,
		VerifyMaxBlocks:  100,
		LogLevel:         "error",
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	ledger := NewLedger(cfg, db, nil)
	ctx := context.Background()

	result, err := ledger.Recorder.Record(ctx, services.RecordRequest{
		TransactionID:  "tx-wired",
		SenderID:       "fan",
		ReceiverID:     services.PlatformSentinel,
		ProductType:    "ad",
		TokenAmount:    decimal.NewFromInt(20),
		ConversionRate: decimal.RequireFromString("0.5"),
		RegionTag:      "APAC",
	})
	require.NoError(t, err)

	verified, err := ledger.Verifier.VerifyTransaction(ctx, "tx-wired")
	require.NoError(t, err)
	assert.True(t, verified.IsValid)
	assert.Equal(t, result.LedgerID, verified.LedgerID)

	row, err := ledger.Lifecycle.GetTransaction(ctx, "tx-wired")
	require.NoError(t, err)
	assert.Equal(t, services.PlatformSentinel, row.ReceiverHash)
}

func sqliteConfig() *config.Config {
	return &config.Config{
		DatabaseDriver:   "sqlite",
		SQLitePath:       fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		AppendMaxRetries: 3,
		VerifyPageSize:   10,
		VerifyMaxBlocks:  100,
		AuditStream:      "ledger:audit:" + uuid.NewString(),
		LogLevel:         "error",
	}
}

func TestOpenLedgerWithoutRedis(t *testing.T) {
	ledger, closeLedger, err := OpenLedger(sqliteConfig())
	require.NoError(t, err)
	defer closeLedger()

	run, result, err := ledger.Verifier.RunScan(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, run.IsValid)
	assert.Zero(t, result.CheckedCount)
}

func TestOpenLedgerRejectsBadRedisURL(t *testing.T) {
	cfg := sqliteConfig()
	cfg.RedisURL = "not-a-redis-url"

	ledger, closeLedger, err := OpenLedger(cfg)
	require.Error(t, err)
	assert.Nil(t, ledger)
	assert.Nil(t, closeLedger)
}

// Needs a live Redis: LEDGER_TEST_REDIS_URL=redis://localhost:6379/15
func TestOpenLedgerPublishesScansToRedis(t *testing.T) {
	url := os.Getenv("LEDGER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_REDIS_URL not set")
	}
	cfg := sqliteConfig()
	cfg.RedisURL = url

	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	ctx := context.Background()
	t.Cleanup(func() {
		client.Del(ctx, cfg.AuditStream)
		_ = client.Close()
	})

	ledger, closeLedger, err := OpenLedger(cfg)
	require.NoError(t, err)
	defer closeLedger()

	_, _, err = ledger.Verifier.RunScan(ctx, "")
	require.NoError(t, err)

	entries, err := client.XRange(ctx, cfg.AuditStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
