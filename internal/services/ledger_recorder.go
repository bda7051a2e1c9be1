package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"creator-ledger/internal/database"
	"creator-ledger/internal/models"
	"creator-ledger/pkg/logging"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RecordRequest is the input of Record. Every revenue-producing feature uses it.
type RecordRequest struct {
	TransactionID  string
	SenderID       string
	ReceiverID     string
	ProductType    models.ProductType
	TokenAmount    decimal.Decimal
	ConversionRate decimal.Decimal
	EscrowID       *string
	RegionTag      string
	Details        *models.ProductDetails
	// Pending records the transaction before settlement is known
	Pending bool
}

// RecordResult identifies a recorded transaction
type RecordResult struct {
	LedgerID       string `json:"ledger_id"`
	BlockchainHash string `json:"blockchain_hash"`
	Duplicate      bool   `json:"duplicate"`
}

// LedgerRecorder writes new ledger transactions
type LedgerRecorder struct {
	chain     *ChainAppender
	hasher    *PrivacyHasher
	cache     IdempotencyCache
	publisher AuditPublisher
	now       func() time.Time
}

// NewLedgerRecorder creates a recorder. cache and publisher may be nil.
func NewLedgerRecorder(chain *ChainAppender, hasher *PrivacyHasher, cache IdempotencyCache, publisher AuditPublisher) *LedgerRecorder {
	return &LedgerRecorder{
		chain:     chain,
		hasher:    hasher,
		cache:     cache,
		publisher: publisher,
		now:       time.Now,
	}
}

// Record writes a transaction and its first block. A repeated transaction id
// returns the stored result and writes nothing.
func (s *LedgerRecorder) Record(ctx context.Context, req RecordRequest) (*RecordResult, error) {
	if err := validateRecordRequest(&req); err != nil {
		return nil, err
	}

	if cached := s.lookupCache(ctx, req.TransactionID); cached != nil {
		return cached, nil
	}

	var (
		result *RecordResult
		row    *models.LedgerTransaction
	)
	err := s.chain.Within(ctx, func(ctx context.Context, chain *ChainTx) error {
		result, row = nil, nil

		existing, err := database.GetLedgerTransaction(chain.DB, req.TransactionID)
		if err == nil {
			result = &RecordResult{LedgerID: existing.ID, BlockchainHash: existing.BlockchainHash, Duplicate: true}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up transaction %s: %w", req.TransactionID, err)
		}

		now := s.now()
		row = s.buildTransaction(req, now)
		block, err := chain.Append(row.ID, recordBlockData(row, req.Details, now), now)
		if err != nil {
			return err
		}
		row.BlockchainHash = block.BlockHash

		if err := database.CreateLedgerTransaction(chain.DB, row); err != nil {
			return fmt.Errorf("failed to persist transaction %s: %w", req.TransactionID, err)
		}
		if err := database.CreateAuditLog(chain.DB, &models.AuditLog{
			Action:        "transaction.recorded",
			LedgerID:      row.ID,
			TransactionID: row.TransactionID,
			BlockHash:     block.BlockHash,
			Detail:        fmt.Sprintf("status=%s amount=%s product=%s", row.Status, formatMoney(row.TokenAmount), row.ProductType),
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		result = &RecordResult{LedgerID: row.ID, BlockchainHash: block.BlockHash}
		return nil
	})
	if err != nil {
		logging.Errorf("Failed to record transaction - transaction_id: %s, error: %v", req.TransactionID, err)
		return nil, err
	}

	if result.Duplicate {
		logging.Infof("Duplicate record ignored - transaction_id: %s, ledger_id: %s", req.TransactionID, result.LedgerID)
	} else {
		logging.Infof("Transaction recorded - transaction_id: %s, ledger_id: %s, block: %s", req.TransactionID, result.LedgerID, result.BlockchainHash)
		s.publish(ctx, AuditEvent{
			Action:        "transaction.recorded",
			LedgerID:      row.ID,
			TransactionID: row.TransactionID,
			BlockHash:     row.BlockchainHash,
			Detail:        string(row.Status),
			At:            row.CreatedAt,
		})
	}
	s.storeCache(ctx, req.TransactionID, result)
	return result, nil
}

func (s *LedgerRecorder) buildTransaction(req RecordRequest, now time.Time) *models.LedgerTransaction {
	split := SplitRevenue(req.TokenAmount)

	status := models.StatusCompleted
	payoutEligible := req.EscrowID == nil
	switch {
	case req.Pending:
		status = models.StatusPending
		payoutEligible = false
	case req.EscrowID != nil:
		status = models.StatusEscrowed
	}

	return &models.LedgerTransaction{
		ID:             uuid.NewString(),
		TransactionID:  req.TransactionID,
		SenderHash:     s.hasher.Hash(req.SenderID),
		ReceiverHash:   s.hasher.Hash(req.ReceiverID),
		ProductType:    req.ProductType,
		TokenAmount:    roundMoney(req.TokenAmount),
		ConversionRate: req.ConversionRate,
		USDEquivalent:  USDEquivalent(req.TokenAmount, req.ConversionRate),
		PlatformShare:  split.PlatformShare,
		CreatorShare:   split.CreatorShare,
		EscrowID:       req.EscrowID,
		RegionTag:      req.RegionTag,
		Status:         status,
		PayoutEligible: payoutEligible,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// recordBlockData describes the state of row as a block payload
func recordBlockData(row *models.LedgerTransaction, details *models.ProductDetails, at time.Time) models.BlockData {
	data := snapshotBlockData(row, models.EventRecord, at)
	if row.Status == models.StatusEscrowed {
		data.EscrowOutcome = EscrowOutcomeHeld
	}
	data.Details = details
	return data
}

// snapshotBlockData copies the hashed fields of row. Raw identities never reach it.
func snapshotBlockData(row *models.LedgerTransaction, event models.BlockEvent, at time.Time) models.BlockData {
	return models.BlockData{
		TransactionID:  row.TransactionID,
		Event:          event,
		SenderHash:     row.SenderHash,
		ReceiverHash:   row.ReceiverHash,
		ProductType:    row.ProductType,
		TokenAmount:    formatMoney(row.TokenAmount),
		PlatformShare:  formatMoney(row.PlatformShare),
		CreatorShare:   formatMoney(row.CreatorShare),
		Status:         row.Status,
		PayoutEligible: row.PayoutEligible,
		RegionTag:      row.RegionTag,
		Version:        row.Version,
		OccurredAt:     at.UnixMilli(),
	}
}

func validateRecordRequest(req *RecordRequest) error {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.RegionTag = strings.TrimSpace(req.RegionTag)

	switch {
	case req.TransactionID == "":
		return validationError("transaction_id is required")
	case strings.TrimSpace(req.SenderID) == "":
		return validationError("sender_id is required")
	case strings.TrimSpace(req.ReceiverID) == "":
		return validationError("receiver_id is required")
	case req.RegionTag == "":
		return validationError("region_tag is required")
	case !req.ProductType.Valid():
		return validationError("unknown product_type %q", req.ProductType)
	case !req.TokenAmount.IsPositive():
		return validationError("token_amount must be positive, got %s", req.TokenAmount)
	case !req.ConversionRate.IsPositive():
		return validationError("conversion_rate must be positive, got %s", req.ConversionRate)
	case req.EscrowID != nil && strings.TrimSpace(*req.EscrowID) == "":
		return validationError("escrow_id must not be blank when present")
	case req.Pending && req.EscrowID != nil:
		return validationError("a pending transaction cannot carry an escrow_id")
	}
	if !req.TokenAmount.Equal(roundMoney(req.TokenAmount)) {
		return validationError("token_amount supports at most %d decimal places", moneyPlaces)
	}

	variant, err := req.Details.Variant()
	if err != nil {
		return validationError("%v", err)
	}
	if variant != "" && variant != req.ProductType {
		return validationError("details variant %q does not match product_type %q", variant, req.ProductType)
	}
	return nil
}

func (s *LedgerRecorder) lookupCache(ctx context.Context, transactionID string) *RecordResult {
	if s.cache == nil {
		return nil
	}
	cached, ok, err := s.cache.Get(ctx, transactionID)
	if err != nil {
		logging.Warnf("Idempotency cache lookup failed - transaction_id: %s, error: %v", transactionID, err)
		return nil
	}
	if !ok {
		return nil
	}
	cached.Duplicate = true
	return cached
}

func (s *LedgerRecorder) storeCache(ctx context.Context, transactionID string, result *RecordResult) {
	if s.cache == nil {
		return
	}
	stored := *result
	stored.Duplicate = false
	if err := s.cache.Put(ctx, transactionID, &stored); err != nil {
		logging.Warnf("Idempotency cache store failed - transaction_id: %s, error: %v", transactionID, err)
	}
}

func (s *LedgerRecorder) publish(ctx context.Context, event AuditEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logging.Warnf("Audit stream publish failed - action: %s, transaction_id: %s, error: %v", event.Action, event.TransactionID, err)
	}
}
