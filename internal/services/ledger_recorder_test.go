package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"creator-ledger/internal/database"
	"creator-ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCompletedTransaction(t *testing.T) {
	l := newTestLedger(t)

	result := l.record(t, recordRequest("tx-1000"))
	assert.False(t, result.Duplicate)
	assert.NotEmpty(t, result.LedgerID)

	row, err := database.GetLedgerTransaction(l.db, "tx-1000")
	require.NoError(t, err)
	assert.Equal(t, result.LedgerID, row.ID)
	assert.Equal(t, models.StatusCompleted, row.Status)
	assert.True(t, row.PayoutEligible)
	assert.Equal(t, "350.00", row.PlatformShare.StringFixed(2))
	assert.Equal(t, "650.00", row.CreatorShare.StringFixed(2))
	assert.Equal(t, "10.00", row.USDEquivalent.StringFixed(2))
	assert.Equal(t, int64(1), row.Version)
	assert.Equal(t, result.BlockchainHash, row.BlockchainHash)

	blocks := l.blocks(t)
	require.Len(t, blocks, 1)
	assert.Equal(t, models.GenesisHash, blocks[0].PreviousHash)
	assert.Equal(t, result.BlockchainHash, blocks[0].BlockHash)
	assert.True(t, l.verifier.VerifyBlock(&blocks[0]))

	assert.Equal(t, []string{"transaction.recorded"}, l.events.actions())
	var audits int64
	require.NoError(t, l.db.Model(&models.AuditLog{}).Where("action = ?", "transaction.recorded").Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestRecordIsIdempotent(t *testing.T) {
	l := newTestLedger(t)

	first := l.record(t, recordRequest("tx-retry"))
	second := l.record(t, recordRequest("tx-retry"))

	assert.Equal(t, first.LedgerID, second.LedgerID)
	assert.Equal(t, first.BlockchainHash, second.BlockchainHash)
	assert.True(t, second.Duplicate)
	assert.Len(t, l.blocks(t), 1)

	var rows int64
	require.NoError(t, l.db.Model(&models.LedgerTransaction{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestRecordUsesIdempotencyCache(t *testing.T) {
	l := newTestLedger(t)
	cache := &memoryCache{}
	l.recorder = NewLedgerRecorder(l.chain, NewPrivacyHasher(""), cache, nil)

	first := l.record(t, recordRequest("tx-cached"))
	cached, ok, err := cache.Get(context.Background(), "tx-cached")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.LedgerID, cached.LedgerID)
	assert.False(t, cached.Duplicate)

	second := l.record(t, recordRequest("tx-cached"))
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.BlockchainHash, second.BlockchainHash)
}

func TestRecordEscrowedTransaction(t *testing.T) {
	l := newTestLedger(t)
	escrowID := "escrow-9"
	req := recordRequest("tx-escrow")
	req.EscrowID = &escrowID

	l.record(t, req)

	row, err := database.GetLedgerTransaction(l.db, "tx-escrow")
	require.NoError(t, err)
	assert.Equal(t, models.StatusEscrowed, row.Status)
	assert.False(t, row.PayoutEligible)

	data, err := DecodeBlockData(&l.blocks(t)[0])
	require.NoError(t, err)
	assert.Equal(t, EscrowOutcomeHeld, data.EscrowOutcome)
	assert.False(t, data.PayoutEligible)
}

func TestRecordPendingTransaction(t *testing.T) {
	l := newTestLedger(t)
	req := recordRequest("tx-pending")
	req.Pending = true

	l.record(t, req)

	row, err := database.GetLedgerTransaction(l.db, "tx-pending")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, row.Status)
	assert.False(t, row.PayoutEligible)
}

func TestRecordKeepsRawIdentitiesOutOfBlocks(t *testing.T) {
	l := newTestLedger(t)
	req := recordRequest("tx-private")
	req.ProductType = models.ProductCall
	req.Details = &models.ProductDetails{Call: &models.CallDetails{CallRef: "call-1", DurationSeconds: 300, Video: true}}

	l.record(t, req)

	block := l.blocks(t)[0]
	assert.NotContains(t, string(block.Data), "fan-42")
	assert.NotContains(t, string(block.Data), "creator-7")

	data, err := DecodeBlockData(&block)
	require.NoError(t, err)
	assert.Equal(t, NewPrivacyHasher("pepper").Hash("fan-42"), data.SenderHash)
	require.NotNil(t, data.Details)
	require.NotNil(t, data.Details.Call)
	assert.Equal(t, 300, data.Details.Call.DurationSeconds)
}

func TestRecordRejectsInvalidRequests(t *testing.T) {
	escrowID := "escrow-1"
	blank := "  "
	tests := map[string]func(r *RecordRequest){
		"zero amount":      func(r *RecordRequest) { r.TokenAmount = decimal.Zero },
		"negative amount":  func(r *RecordRequest) { r.TokenAmount = decimal.NewFromInt(-5) },
		"three decimals":   func(r *RecordRequest) { r.TokenAmount = decimal.RequireFromString("1.005") },
		"zero rate":        func(r *RecordRequest) { r.ConversionRate = decimal.Zero },
		"missing sender":   func(r *RecordRequest) { r.SenderID = "" },
		"missing receiver": func(r *RecordRequest) { r.ReceiverID = " " },
		"missing tx id":    func(r *RecordRequest) { r.TransactionID = "" },
		"missing region":   func(r *RecordRequest) { r.RegionTag = "" },
		"unknown product":  func(r *RecordRequest) { r.ProductType = "lottery" },
		"blank escrow":     func(r *RecordRequest) { r.EscrowID = &blank },
		"pending escrow": func(r *RecordRequest) {
			r.Pending = true
			r.EscrowID = &escrowID
		},
		"details mismatch": func(r *RecordRequest) {
			r.Details = &models.ProductDetails{Gift: &models.GiftDetails{GiftCode: "rose"}}
		},
	}

	l := newTestLedger(t)
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := recordRequest("tx-invalid")
			mutate(&req)

			_, err := l.recorder.Record(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation), err.Error())
		})
	}

	assert.Empty(t, l.blocks(t))
	var rows int64
	require.NoError(t, l.db.Model(&models.LedgerTransaction{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestConcurrentRecordsNeverFork(t *testing.T) {
	l := newTestLedger(t)
	const writers = 12

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.recorder.Record(context.Background(), recordRequest(fmt.Sprintf("tx-par-%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	blocks := l.blocks(t)
	require.Len(t, blocks, writers)
	seen := map[string]bool{}
	for i, b := range blocks {
		assert.False(t, seen[b.PreviousHash], "two blocks share previous hash %s", b.PreviousHash)
		seen[b.PreviousHash] = true
		assert.Equal(t, int64(i+1), b.Sequence)
	}

	result, err := l.verifier.VerifyChainSegment(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, writers, result.CheckedCount)
}

func TestConcurrentRecordsWithSameIDCreateOneTransaction(t *testing.T) {
	l := newTestLedger(t)
	const callers = 8

	var wg sync.WaitGroup
	results := make(chan *RecordResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := l.recorder.Record(context.Background(), recordRequest("tx-race"))
			if assert.NoError(t, err) {
				results <- r
			}
		}()
	}
	wg.Wait()
	close(results)

	var ledgerIDs = map[string]bool{}
	fresh := 0
	for r := range results {
		ledgerIDs[r.LedgerID] = true
		if !r.Duplicate {
			fresh++
		}
	}
	assert.Len(t, ledgerIDs, 1)
	assert.Equal(t, 1, fresh)
	assert.Len(t, l.blocks(t), 1)
}

func TestChainAppenderRespectsContext(t *testing.T) {
	l := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// occupy the slot so Within has to wait
	l.chain.slot <- struct{}{}
	defer func() { <-l.chain.slot }()

	err := l.chain.Within(ctx, func(context.Context, *ChainTx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
