package services

import (
	"context"
	"fmt"
	"time"

	"creator-ledger/internal/database"
	"creator-ledger/internal/models"
	"creator-ledger/pkg/logging"

	"gorm.io/gorm"
)

// ChainAppender owns the global chain tail. Every write that appends a block
// goes through Within, which serializes appends in this process and runs them
// in one database transaction. The unique indexes on sequence and
// previous_hash reject a second writer from another process; that writer's
// transaction is rolled back and retried against the new tail.
type ChainAppender struct {
	db         *gorm.DB
	slot       chan struct{}
	maxRetries int
}

// NewChainAppender creates a chain appender. maxRetries bounds the optimistic
// retries after a unique-key collision.
func NewChainAppender(db *gorm.DB, maxRetries int) *ChainAppender {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &ChainAppender{
		db:         db,
		slot:       make(chan struct{}, 1),
		maxRetries: maxRetries,
	}
}

// ChainTx is the handle given to a critical section
type ChainTx struct {
	DB *gorm.DB
}

// Within runs fn in a transaction while holding the single-writer slot
func (a *ChainAppender) Within(ctx context.Context, fn func(ctx context.Context, chain *ChainTx) error) error {
	select {
	case a.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-a.slot }()

	var err error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, &ChainTx{DB: tx})
		})
		if err == nil || !database.IsDuplicateKey(err) {
			return err
		}
		logging.Warnf("Chain append collided with a concurrent writer - attempt: %d, error: %v", attempt, err)
	}
	return fmt.Errorf("chain append failed after %d attempts: %w", a.maxRetries, err)
}

// Append builds a block for data on top of the current tail and inserts it
func (c *ChainTx) Append(ledgerID string, data models.BlockData, at time.Time) (*models.ChainBlock, error) {
	tail, err := database.GetChainTail(c.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain tail: %w", err)
	}

	previousHash := models.GenesisHash
	var sequence int64 = 1
	if tail != nil {
		previousHash = tail.BlockHash
		sequence = tail.Sequence + 1
	}

	block, err := BuildBlock(data, previousHash, at)
	if err != nil {
		return nil, err
	}
	block.Sequence = sequence
	block.LedgerID = ledgerID

	if err := database.CreateChainBlock(c.DB, block); err != nil {
		return nil, fmt.Errorf("failed to append block: %w", err)
	}
	return block, nil
}
