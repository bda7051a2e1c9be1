package database

import (
	"errors"
	"strings"

	"creator-ledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The functions below take the *gorm.DB to run on so callers can pass either
// the pool or an open transaction.

// GetLedgerTransaction 通过外部交易ID获取账本交易
func GetLedgerTransaction(db *gorm.DB, transactionID string) (*models.LedgerTransaction, error) {
	var row models.LedgerTransaction
	err := db.Where("transaction_id = ?", transactionID).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// LockLedgerTransaction reads the row with SELECT ... FOR UPDATE where the
// dialect supports it.
func LockLedgerTransaction(db *gorm.DB, transactionID string) (*models.LedgerTransaction, error) {
	var row models.LedgerTransaction
	q := db
	if db.Dialector.Name() != "sqlite" {
		q = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("transaction_id = ?", transactionID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateLedgerTransaction 创建账本交易
func CreateLedgerTransaction(db *gorm.DB, row *models.LedgerTransaction) error {
	return db.Create(row).Error
}

// AmendLedgerTransaction applies updates only if the stored version still equals
// expectedVersion. It reports whether a row was changed.
func AmendLedgerTransaction(db *gorm.DB, ledgerID string, expectedVersion int64, updates map[string]interface{}) (bool, error) {
	result := db.Model(&models.LedgerTransaction{}).
		Where("id = ? AND version = ?", ledgerID, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetChainTail returns the most recently appended block, or nil for an empty chain
func GetChainTail(db *gorm.DB) (*models.ChainBlock, error) {
	var block models.ChainBlock
	err := db.Order("sequence DESC").Limit(1).Take(&block).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &block, nil
}

// CreateChainBlock 追加区块
func CreateChainBlock(db *gorm.DB, block *models.ChainBlock) error {
	return db.Create(block).Error
}

// GetChainBlock 通过区块ID获取区块
func GetChainBlock(db *gorm.DB, blockID string) (*models.ChainBlock, error) {
	var block models.ChainBlock
	if err := db.Where("id = ?", blockID).First(&block).Error; err != nil {
		return nil, err
	}
	return &block, nil
}

// GetChainBlockByHash 通过区块哈希获取区块
func GetChainBlockByHash(db *gorm.DB, blockHash string) (*models.ChainBlock, error) {
	var block models.ChainBlock
	if err := db.Where("block_hash = ?", blockHash).First(&block).Error; err != nil {
		return nil, err
	}
	return &block, nil
}

// GetChainBlockBySequence 通过序号获取区块
func GetChainBlockBySequence(db *gorm.DB, sequence int64) (*models.ChainBlock, error) {
	var block models.ChainBlock
	if err := db.Where("sequence = ?", sequence).First(&block).Error; err != nil {
		return nil, err
	}
	return &block, nil
}

// ListChainBlocks returns up to limit blocks with sequence >= fromSequence in chain order
func ListChainBlocks(db *gorm.DB, fromSequence int64, limit int) ([]models.ChainBlock, error) {
	var blocks []models.ChainBlock
	err := db.Where("sequence >= ?", fromSequence).
		Order("sequence ASC").
		Limit(limit).
		Find(&blocks).Error
	return blocks, err
}

// ListLedgerBlocks returns every block of one ledger transaction in chain order
func ListLedgerBlocks(db *gorm.DB, ledgerID string) ([]models.ChainBlock, error) {
	var blocks []models.ChainBlock
	err := db.Where("ledger_id = ?", ledgerID).Order("sequence ASC").Find(&blocks).Error
	return blocks, err
}

// CreateAuditLog 写审计日志
func CreateAuditLog(db *gorm.DB, entry *models.AuditLog) error {
	return db.Create(entry).Error
}

// CreateVerificationRun 保存校验记录
func CreateVerificationRun(db *gorm.DB, run *models.VerificationRun) error {
	return db.Create(run).Error
}

// ListVerificationRuns returns the latest runs, newest first
func ListVerificationRuns(db *gorm.DB, limit int) ([]models.VerificationRun, error) {
	var runs []models.VerificationRun
	err := db.Order("finished_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// IsDuplicateKey reports whether err is a unique constraint violation. gorm
// translates most driver errors to ErrDuplicatedKey; the string checks cover
// drivers that do not.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
