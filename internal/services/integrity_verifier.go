package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"creator-ledger/internal/database"
	"creator-ledger/internal/models"
	"creator-ledger/pkg/logging"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BrokenLink is the first block whose previous hash does not match its predecessor
type BrokenLink struct {
	BlockID              string `json:"block_id"`
	Sequence             int64  `json:"sequence"`
	ExpectedPreviousHash string `json:"expected_previous_hash"`
	ActualPreviousHash   string `json:"actual_previous_hash"`
}

// ChainVerification is the result of one bounded chain walk
type ChainVerification struct {
	IsValid         bool        `json:"is_valid"`
	CheckedCount    int         `json:"checked_count"`
	InvalidBlockIDs []string    `json:"invalid_block_ids"`
	BrokenChainAt   *BrokenLink `json:"broken_chain_at,omitempty"`
	FromBlockID     string      `json:"from_block_id,omitempty"`
	LastBlockID     string      `json:"last_block_id,omitempty"`
	// NextFromBlockID is set when the walk stopped at the per-run bound
	NextFromBlockID string `json:"next_from_block_id,omitempty"`
}

// VerificationResult is the evidence for one transaction
type VerificationResult struct {
	TransactionID     string   `json:"transaction_id"`
	LedgerID          string   `json:"ledger_id"`
	BlockID           string   `json:"block_id,omitempty"`
	BlockSequence     int64    `json:"block_sequence,omitempty"`
	StoredHash        string   `json:"stored_hash"`
	ChainHash         string   `json:"chain_hash,omitempty"`
	RecomputedHash    string   `json:"recomputed_hash,omitempty"`
	HashMatches       bool     `json:"hash_matches"`
	BlockValid        bool     `json:"block_valid"`
	DataMatches       bool     `json:"data_matches"`
	Mismatches        []string `json:"mismatches,omitempty"`
	HistoryConsistent bool     `json:"history_consistent"`
	IsValid           bool     `json:"is_valid"`
}

// IntegrityVerifier recomputes block hashes and checks chain linkage. It only
// reads; nothing it finds is repaired.
type IntegrityVerifier struct {
	db         *gorm.DB
	pageSize   int
	maxBlocks  int
	signingKey []byte
	notifier   AlertNotifier
	publisher  AuditPublisher
	now        func() time.Time
}

// NewIntegrityVerifier creates a verifier. notifier and publisher may be nil.
func NewIntegrityVerifier(db *gorm.DB, pageSize, maxBlocks int, signingKey string, notifier AlertNotifier, publisher AuditPublisher) *IntegrityVerifier {
	if pageSize <= 0 {
		pageSize = 500
	}
	if maxBlocks <= 0 {
		maxBlocks = pageSize
	}
	return &IntegrityVerifier{
		db:         db,
		pageSize:   pageSize,
		maxBlocks:  maxBlocks,
		signingKey: []byte(signingKey),
		notifier:   notifier,
		publisher:  publisher,
		now:        time.Now,
	}
}

// VerifyBlock recomputes the hash of block from its own content
func (v *IntegrityVerifier) VerifyBlock(block *models.ChainBlock) bool {
	hash, err := ComputeBlockHash(block)
	if err != nil {
		logging.Warnf("Block could not be rehashed - block_id: %s, error: %v", block.ID, err)
		return false
	}
	return hash == block.BlockHash
}

// VerifyBlockByID loads a block and verifies it
func (v *IntegrityVerifier) VerifyBlockByID(ctx context.Context, blockID string) (*models.ChainBlock, bool, error) {
	block, err := database.GetChainBlock(v.db.WithContext(ctx), blockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, notFoundError("block %s does not exist", blockID)
		}
		return nil, false, err
	}
	return block, v.VerifyBlock(block), nil
}

// VerifyChainSegment walks the chain in order starting at fromBlockID, or at
// the first block when it is empty. The walk stops at the first broken link or
// after maxBlocks blocks.
func (v *IntegrityVerifier) VerifyChainSegment(ctx context.Context, fromBlockID string) (*ChainVerification, error) {
	db := v.db.WithContext(ctx)
	result := &ChainVerification{FromBlockID: fromBlockID, InvalidBlockIDs: []string{}}

	var (
		nextSequence int64
		prev         *models.ChainBlock
	)
	if fromBlockID != "" {
		from, err := database.GetChainBlock(db, fromBlockID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, notFoundError("block %s does not exist", fromBlockID)
			}
			return nil, err
		}
		nextSequence = from.Sequence
		if from.Sequence > 1 {
			prev, err = database.GetChainBlockBySequence(db, from.Sequence-1)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			if prev == nil {
				// a missing predecessor shows up as a broken link below
				prev = &models.ChainBlock{Sequence: from.Sequence - 1}
			}
		}
	}

walk:
	for result.CheckedCount < v.maxBlocks {
		limit := v.pageSize
		if remaining := v.maxBlocks - result.CheckedCount; remaining < limit {
			limit = remaining
		}
		blocks, err := database.ListChainBlocks(db, nextSequence, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to page chain blocks: %w", err)
		}
		if len(blocks) == 0 {
			break
		}

		for i := range blocks {
			block := &blocks[i]
			result.CheckedCount++
			result.LastBlockID = block.ID
			if !v.VerifyBlock(block) {
				result.InvalidBlockIDs = append(result.InvalidBlockIDs, block.ID)
			}

			expected := models.GenesisHash
			if prev != nil {
				expected = prev.BlockHash
			}
			if block.PreviousHash != expected || (prev != nil && block.Sequence != prev.Sequence+1) {
				result.BrokenChainAt = &BrokenLink{
					BlockID:              block.ID,
					Sequence:             block.Sequence,
					ExpectedPreviousHash: expected,
					ActualPreviousHash:   block.PreviousHash,
				}
				break walk
			}
			prev = block
			nextSequence = block.Sequence + 1
		}
		if len(blocks) < limit {
			break
		}
	}

	if result.BrokenChainAt == nil && result.CheckedCount >= v.maxBlocks {
		rest, err := database.ListChainBlocks(db, nextSequence, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to page chain blocks: %w", err)
		}
		if len(rest) > 0 {
			result.NextFromBlockID = rest[0].ID
		}
	}

	result.IsValid = len(result.InvalidBlockIDs) == 0 && result.BrokenChainAt == nil
	return result, nil
}

// VerifyTransaction checks a transaction row against its latest chain block
func (v *IntegrityVerifier) VerifyTransaction(ctx context.Context, transactionID string) (*VerificationResult, error) {
	db := v.db.WithContext(ctx)
	row, err := database.GetLedgerTransaction(db, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("transaction %s does not exist", transactionID)
		}
		return nil, err
	}
	blocks, err := database.ListLedgerBlocks(db, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks of %s: %w", transactionID, err)
	}

	result := &VerificationResult{
		TransactionID: row.TransactionID,
		LedgerID:      row.ID,
		StoredHash:    row.BlockchainHash,
	}
	if len(blocks) == 0 {
		result.Mismatches = []string{"block"}
		return result, nil
	}

	latest := &blocks[len(blocks)-1]
	result.BlockID = latest.ID
	result.BlockSequence = latest.Sequence
	result.ChainHash = latest.BlockHash
	result.HashMatches = row.BlockchainHash == latest.BlockHash
	if recomputed, err := ComputeBlockHash(latest); err == nil {
		result.RecomputedHash = recomputed
		result.BlockValid = recomputed == latest.BlockHash
	}

	if data, err := DecodeBlockData(latest); err == nil {
		result.Mismatches = diffBlockData(row, data)
		result.DataMatches = len(result.Mismatches) == 0
	} else {
		result.Mismatches = []string{"data"}
	}

	if state, err := foldLedgerBlocks(row.ID, blocks); err == nil {
		result.HistoryConsistent = state.Consistent && state.Status == row.Status && state.Version == row.Version
	}

	result.IsValid = result.HashMatches && result.BlockValid && result.DataMatches
	return result, nil
}

// diffBlockData names the fields where row and data disagree
func diffBlockData(row *models.LedgerTransaction, data models.BlockData) []string {
	var diff []string
	check := func(field string, equal bool) {
		if !equal {
			diff = append(diff, field)
		}
	}
	check("transaction_id", row.TransactionID == data.TransactionID)
	check("sender_hash", row.SenderHash == data.SenderHash)
	check("receiver_hash", row.ReceiverHash == data.ReceiverHash)
	check("product_type", row.ProductType == data.ProductType)
	check("token_amount", formatMoney(row.TokenAmount) == data.TokenAmount)
	check("platform_share", formatMoney(row.PlatformShare) == data.PlatformShare)
	check("creator_share", formatMoney(row.CreatorShare) == data.CreatorShare)
	check("status", row.Status == data.Status)
	check("payout_eligible", row.PayoutEligible == data.PayoutEligible)
	check("region_tag", row.RegionTag == data.RegionTag)
	check("version", row.Version == data.Version)
	return diff
}

// RunScan verifies a segment, stores a signed summary and alerts on failure
func (v *IntegrityVerifier) RunScan(ctx context.Context, fromBlockID string) (*models.VerificationRun, *ChainVerification, error) {
	started := v.now()
	segment, err := v.VerifyChainSegment(ctx, fromBlockID)
	if err != nil {
		return nil, nil, err
	}

	invalid, err := json.Marshal(segment.InvalidBlockIDs)
	if err != nil {
		return nil, nil, err
	}
	run := &models.VerificationRun{
		ID:              uuid.NewString(),
		FromBlockID:     segment.FromBlockID,
		LastBlockID:     segment.LastBlockID,
		NextFromBlockID: segment.NextFromBlockID,
		CheckedCount:    segment.CheckedCount,
		IsValid:         segment.IsValid,
		InvalidBlockIDs: invalid,
		StartedAt:       started,
		FinishedAt:      v.now(),
	}
	if segment.BrokenChainAt != nil {
		run.BrokenChainAt = segment.BrokenChainAt.BlockID
	}
	run.Signature = v.SignRun(run, segment.InvalidBlockIDs)

	err = v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.CreateVerificationRun(tx, run); err != nil {
			return err
		}
		return database.CreateAuditLog(tx, &models.AuditLog{
			Action: "chain.scanned",
			Detail: fmt.Sprintf("run=%s checked=%d valid=%t invalid=%d broken=%s",
				run.ID, run.CheckedCount, run.IsValid, len(segment.InvalidBlockIDs), run.BrokenChainAt),
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store verification run: %w", err)
	}

	if segment.IsValid {
		logging.Infof("Chain scan passed - run: %s, checked: %d, next_from: %s", run.ID, run.CheckedCount, run.NextFromBlockID)
	} else {
		v.raiseAlert(ctx, run, segment)
	}
	if v.publisher != nil {
		if err := v.publisher.Publish(ctx, AuditEvent{
			Action: "chain.scanned",
			Detail: fmt.Sprintf("run=%s valid=%t", run.ID, run.IsValid),
			At:     run.FinishedAt,
		}); err != nil {
			logging.Warnf("Audit stream publish failed - run: %s, error: %v", run.ID, err)
		}
	}
	return run, segment, nil
}

func (v *IntegrityVerifier) raiseAlert(ctx context.Context, run *models.VerificationRun, segment *ChainVerification) {
	alert := IntegrityAlert{
		RunID:           run.ID,
		CheckedCount:    segment.CheckedCount,
		InvalidBlockIDs: segment.InvalidBlockIDs,
		DetectedAt:      run.FinishedAt,
	}
	if segment.BrokenChainAt != nil {
		alert.BrokenChainAt = segment.BrokenChainAt.BlockID
		alert.BrokenSequence = segment.BrokenChainAt.Sequence
	}

	// CRITICAL: broken chain or invalid block, operator must investigate
	logging.Errorf("CRITICAL ledger integrity failure - %s", alert.Summary())
	if v.notifier == nil {
		return
	}
	if err := v.notifier.NotifyIntegrityFailure(ctx, alert); err != nil {
		logging.Errorf("Failed to deliver integrity alert - run: %s, error: %v", run.ID, err)
	}
}

// ListRuns returns the latest verification runs, newest first
func (v *IntegrityVerifier) ListRuns(ctx context.Context, limit int) ([]models.VerificationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return database.ListVerificationRuns(v.db.WithContext(ctx), limit)
}

// SignRun returns the hex HMAC-SHA256 over the summary fields of run
func (v *IntegrityVerifier) SignRun(run *models.VerificationRun, invalidBlockIDs []string) string {
	mac := hmac.New(sha256.New, v.signingKey)
	mac.Write([]byte(strings.Join([]string{
		run.ID,
		run.FromBlockID,
		run.LastBlockID,
		run.NextFromBlockID,
		strconv.Itoa(run.CheckedCount),
		strconv.FormatBool(run.IsValid),
		strings.Join(invalidBlockIDs, ","),
		run.BrokenChainAt,
		strconv.FormatInt(run.StartedAt.UnixMilli(), 10),
		strconv.FormatInt(run.FinishedAt.UnixMilli(), 10),
	}, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyRunSignature checks a stored run against its signature
func (v *IntegrityVerifier) VerifyRunSignature(run *models.VerificationRun) bool {
	var invalid []string
	if len(run.InvalidBlockIDs) > 0 {
		if err := json.Unmarshal(run.InvalidBlockIDs, &invalid); err != nil {
			return false
		}
	}
	return hmac.Equal([]byte(v.SignRun(run, invalid)), []byte(run.Signature))
}
