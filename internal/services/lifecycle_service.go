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

	"gorm.io/gorm"
)

// Escrow outcomes written into block data
const (
	EscrowOutcomeHeld     = "held"
	EscrowOutcomeReleased = "released"
	EscrowOutcomeRefunded = "refunded"
)

type transitionRule struct {
	from           []models.TransactionStatus
	to             models.TransactionStatus
	payoutEligible bool
	escrowOutcome  string
}

// transitionRules is the lifecycle graph. Statuses only move forward along it.
var transitionRules = map[models.BlockEvent]transitionRule{
	models.EventEscrowHold: {
		from:          []models.TransactionStatus{models.StatusPending},
		to:            models.StatusEscrowed,
		escrowOutcome: EscrowOutcomeHeld,
	},
	models.EventEscrowRelease: {
		from:           []models.TransactionStatus{models.StatusEscrowed},
		to:             models.StatusCompleted,
		payoutEligible: true,
		escrowOutcome:  EscrowOutcomeReleased,
	},
	models.EventEscrowRefund: {
		from:          []models.TransactionStatus{models.StatusEscrowed},
		to:            models.StatusRefunded,
		escrowOutcome: EscrowOutcomeRefunded,
	},
	// A dispute freezes payout whatever the escrow did; resolution is external.
	models.EventDispute: {
		from: []models.TransactionStatus{models.StatusPending, models.StatusEscrowed},
		to:   models.StatusDisputed,
	},
	models.EventCancel: {
		from: []models.TransactionStatus{models.StatusPending},
		to:   models.StatusCancelled,
	},
}

// CanTransition reports whether the lifecycle graph has an edge from -> to
func CanTransition(from, to models.TransactionStatus) bool {
	for _, rule := range transitionRules {
		if rule.to == to && rule.allows(from) {
			return true
		}
	}
	return false
}

func (r transitionRule) allows(from models.TransactionStatus) bool {
	for _, s := range r.from {
		if s == from {
			return true
		}
	}
	return false
}

// TransitionRequest amends one transaction
type TransitionRequest struct {
	TransactionID   string
	ExpectedVersion int64
	Event           models.BlockEvent
	EscrowID        *string // required for escrow_hold
	Reason          string
}

// TransitionResult is the state after a successful amendment
type TransitionResult struct {
	LedgerID       string                   `json:"ledger_id"`
	TransactionID  string                   `json:"transaction_id"`
	Status         models.TransactionStatus `json:"status"`
	PayoutEligible bool                     `json:"payout_eligible"`
	Version        int64                    `json:"version"`
	BlockchainHash string                   `json:"blockchain_hash"`
}

// LedgerState is the state of a transaction folded from its blocks
type LedgerState struct {
	LedgerID       string                   `json:"ledger_id"`
	TransactionID  string                   `json:"transaction_id"`
	Status         models.TransactionStatus `json:"status"`
	PayoutEligible bool                     `json:"payout_eligible"`
	Version        int64                    `json:"version"`
	BlockchainHash string                   `json:"blockchain_hash"`
	Events         []models.BlockEvent      `json:"events"`
	// Consistent is false when the block history contains an illegal step
	Consistent bool `json:"consistent"`
}

// LifecycleService applies escrow, dispute and cancel events to recorded transactions
type LifecycleService struct {
	db        *gorm.DB
	chain     *ChainAppender
	publisher AuditPublisher
	now       func() time.Time
}

// NewLifecycleService creates a lifecycle service. publisher may be nil.
func NewLifecycleService(db *gorm.DB, chain *ChainAppender, publisher AuditPublisher) *LifecycleService {
	return &LifecycleService{
		db:        db,
		chain:     chain,
		publisher: publisher,
		now:       time.Now,
	}
}

// HoldEscrow moves a pending transaction into escrow
func (s *LifecycleService) HoldEscrow(ctx context.Context, transactionID string, expectedVersion int64, escrowID string) (*TransitionResult, error) {
	return s.Transition(ctx, TransitionRequest{
		TransactionID:   transactionID,
		ExpectedVersion: expectedVersion,
		Event:           models.EventEscrowHold,
		EscrowID:        &escrowID,
	})
}

// ReleaseEscrow completes an escrowed transaction and makes it payable
func (s *LifecycleService) ReleaseEscrow(ctx context.Context, transactionID string, expectedVersion int64) (*TransitionResult, error) {
	return s.Transition(ctx, TransitionRequest{TransactionID: transactionID, ExpectedVersion: expectedVersion, Event: models.EventEscrowRelease})
}

// RefundEscrow refunds an escrowed transaction
func (s *LifecycleService) RefundEscrow(ctx context.Context, transactionID string, expectedVersion int64, reason string) (*TransitionResult, error) {
	return s.Transition(ctx, TransitionRequest{TransactionID: transactionID, ExpectedVersion: expectedVersion, Event: models.EventEscrowRefund, Reason: reason})
}

// Dispute freezes payout of a pending or escrowed transaction
func (s *LifecycleService) Dispute(ctx context.Context, transactionID string, expectedVersion int64, reason string) (*TransitionResult, error) {
	return s.Transition(ctx, TransitionRequest{TransactionID: transactionID, ExpectedVersion: expectedVersion, Event: models.EventDispute, Reason: reason})
}

// Cancel cancels a pending transaction
func (s *LifecycleService) Cancel(ctx context.Context, transactionID string, expectedVersion int64, reason string) (*TransitionResult, error) {
	return s.Transition(ctx, TransitionRequest{TransactionID: transactionID, ExpectedVersion: expectedVersion, Event: models.EventCancel, Reason: reason})
}

// Transition applies one lifecycle event. The stored version must equal
// ExpectedVersion; otherwise ErrConflict is returned and nothing is written.
func (s *LifecycleService) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	rule, ok := transitionRules[req.Event]
	if !ok {
		return nil, validationError("unknown lifecycle event %q", req.Event)
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, validationError("transaction_id is required")
	}
	if req.Event == models.EventEscrowHold && (req.EscrowID == nil || strings.TrimSpace(*req.EscrowID) == "") {
		return nil, validationError("escrow_id is required to hold escrow")
	}

	var (
		result    *TransitionResult
		blockHash string
	)
	err := s.chain.Within(ctx, func(ctx context.Context, chain *ChainTx) error {
		row, err := database.LockLedgerTransaction(chain.DB, req.TransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("transaction %s does not exist", req.TransactionID)
			}
			return fmt.Errorf("failed to load transaction %s: %w", req.TransactionID, err)
		}
		if row.Version != req.ExpectedVersion {
			return &LedgerError{
				Code:    CodeConflict,
				Message: "version conflict",
				Detail:  fmt.Sprintf("transaction %s is at version %d, expected %d", row.TransactionID, row.Version, req.ExpectedVersion),
			}
		}
		if !rule.allows(row.Status) {
			return &LedgerError{
				Code:    CodeInvalidTransition,
				Message: "transition not allowed",
				Detail:  fmt.Sprintf("%s cannot move %s to %s", req.Event, row.Status, rule.to),
			}
		}

		now := s.now()
		amended := *row
		amended.Status = rule.to
		amended.PayoutEligible = rule.payoutEligible
		amended.Version = row.Version + 1
		if req.Event == models.EventEscrowHold {
			amended.EscrowID = req.EscrowID
		}

		data := snapshotBlockData(&amended, req.Event, now)
		data.EscrowOutcome = rule.escrowOutcome
		data.Reason = req.Reason
		block, err := chain.Append(row.ID, data, now)
		if err != nil {
			return err
		}

		changed, err := database.AmendLedgerTransaction(chain.DB, row.ID, req.ExpectedVersion, map[string]interface{}{
			"status":          amended.Status,
			"payout_eligible": amended.PayoutEligible,
			"escrow_id":       amended.EscrowID,
			"blockchain_hash": block.BlockHash,
			"version":         amended.Version,
			"updated_at":      now,
		})
		if err != nil {
			return fmt.Errorf("failed to amend transaction %s: %w", req.TransactionID, err)
		}
		if !changed {
			return &LedgerError{Code: CodeConflict, Message: "version conflict", Detail: fmt.Sprintf("transaction %s changed concurrently", req.TransactionID)}
		}

		if err := database.CreateAuditLog(chain.DB, &models.AuditLog{
			Action:        "transaction." + string(req.Event),
			LedgerID:      row.ID,
			TransactionID: row.TransactionID,
			BlockHash:     block.BlockHash,
			Detail:        fmt.Sprintf("%s -> %s version=%d reason=%s", row.Status, amended.Status, amended.Version, req.Reason),
		}); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		blockHash = block.BlockHash
		result = &TransitionResult{
			LedgerID:       row.ID,
			TransactionID:  row.TransactionID,
			Status:         amended.Status,
			PayoutEligible: amended.PayoutEligible,
			Version:        amended.Version,
			BlockchainHash: block.BlockHash,
		}
		return nil
	})
	if err != nil {
		var ledgerErr *LedgerError
		if errors.As(err, &ledgerErr) {
			logging.Warnf("Lifecycle transition rejected - transaction_id: %s, event: %s, error: %v", req.TransactionID, req.Event, err)
		} else {
			logging.Errorf("Lifecycle transition failed - transaction_id: %s, event: %s, error: %v", req.TransactionID, req.Event, err)
		}
		return nil, err
	}

	logging.Infof("Lifecycle transition applied - transaction_id: %s, event: %s, status: %s, version: %d",
		result.TransactionID, req.Event, result.Status, result.Version)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, AuditEvent{
			Action:        "transaction." + string(req.Event),
			LedgerID:      result.LedgerID,
			TransactionID: result.TransactionID,
			BlockHash:     blockHash,
			Detail:        string(result.Status),
			At:            s.now(),
		}); err != nil {
			logging.Warnf("Audit stream publish failed - transaction_id: %s, error: %v", result.TransactionID, err)
		}
	}
	return result, nil
}

// GetTransaction returns the stored transaction row
func (s *LifecycleService) GetTransaction(ctx context.Context, transactionID string) (*models.LedgerTransaction, error) {
	row, err := database.GetLedgerTransaction(s.db.WithContext(ctx), transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("transaction %s does not exist", transactionID)
		}
		return nil, err
	}
	return row, nil
}

// CurrentState folds the transaction's blocks to derive its state. The status
// column on the row is a cached projection of this.
func (s *LifecycleService) CurrentState(ctx context.Context, transactionID string) (*LedgerState, error) {
	row, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	blocks, err := database.ListLedgerBlocks(s.db.WithContext(ctx), row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks of %s: %w", transactionID, err)
	}
	return foldLedgerBlocks(row.ID, blocks)
}

// foldLedgerBlocks replays blocks in chain order
func foldLedgerBlocks(ledgerID string, blocks []models.ChainBlock) (*LedgerState, error) {
	if len(blocks) == 0 {
		return nil, notFoundError("no blocks for ledger %s", ledgerID)
	}

	state := &LedgerState{LedgerID: ledgerID, Consistent: true}
	for i := range blocks {
		data, err := DecodeBlockData(&blocks[i])
		if err != nil {
			return nil, err
		}
		if i == 0 {
			state.Consistent = data.Event == models.EventRecord
		} else if rule, ok := transitionRules[data.Event]; !ok || !rule.allows(state.Status) || rule.to != data.Status {
			state.Consistent = false
		}
		if i > 0 && data.Version != state.Version+1 {
			state.Consistent = false
		}

		state.TransactionID = data.TransactionID
		state.Status = data.Status
		state.PayoutEligible = data.PayoutEligible
		state.Version = data.Version
		state.BlockchainHash = blocks[i].BlockHash
		state.Events = append(state.Events, data.Event)
	}
	return state, nil
}
