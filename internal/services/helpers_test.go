package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"creator-ledger/internal/database"
	"creator-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory SQLite database with the ledger schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type testLedger struct {
	db        *gorm.DB
	chain     *ChainAppender
	recorder  *LedgerRecorder
	lifecycle *LifecycleService
	verifier  *IntegrityVerifier
	events    *memoryPublisher
	alerts    *memoryNotifier
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	db := newTestDB(t)
	events := &memoryPublisher{}
	alerts := &memoryNotifier{}
	chain := NewChainAppender(db, 3)
	return &testLedger{
		db:        db,
		chain:     chain,
		recorder:  NewLedgerRecorder(chain, NewPrivacyHasher("pepper"), nil, events),
		lifecycle: NewLifecycleService(db, chain, events),
		verifier:  NewIntegrityVerifier(db, 4, 1000, "summary-key", alerts, events),
		events:    events,
		alerts:    alerts,
	}
}

func recordRequest(transactionID string) RecordRequest {
	return RecordRequest{
		TransactionID:  transactionID,
		SenderID:       "fan-42",
		ReceiverID:     "creator-7",
		ProductType:    models.ProductChat,
		TokenAmount:    decimal.NewFromInt(1000),
		ConversionRate: decimal.RequireFromString("0.01"),
		RegionTag:      "EU",
	}
}

func (l *testLedger) record(t *testing.T, req RecordRequest) *RecordResult {
	t.Helper()
	result, err := l.recorder.Record(context.Background(), req)
	require.NoError(t, err)
	return result
}

func (l *testLedger) blocks(t *testing.T) []models.ChainBlock {
	t.Helper()
	blocks, err := database.ListChainBlocks(l.db, 0, 10000)
	require.NoError(t, err)
	return blocks
}

type memoryPublisher struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (p *memoryPublisher) Publish(_ context.Context, event AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *memoryPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

type memoryNotifier struct {
	mu     sync.Mutex
	alerts []IntegrityAlert
}

func (n *memoryNotifier) NotifyIntegrityFailure(_ context.Context, alert IntegrityAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

type memoryCache struct {
	mu      sync.Mutex
	results map[string]RecordResult
}

func (c *memoryCache) Get(_ context.Context, transactionID string) (*RecordResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[transactionID]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *memoryCache) Put(_ context.Context, transactionID string, result *RecordResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = map[string]RecordResult{}
	}
	c.results[transactionID] = *result
	return nil
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
