package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 审计日志
// Written in the same database transaction as the ledger change it describes.
type AuditLog struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Action        string    `json:"action" gorm:"not null;size:40;index"`
	LedgerID      string    `json:"ledger_id,omitempty" gorm:"size:36;index"`
	TransactionID string    `json:"transaction_id,omitempty" gorm:"size:100;index"`
	BlockHash     string    `json:"block_hash,omitempty" gorm:"size:64"`
	Detail        string    `json:"detail" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName 指定表名
func (AuditLog) TableName() string {
	return "audit_logs"
}

// VerificationRun 校验记录
// Signed summary of one bounded chain scan.
type VerificationRun struct {
	ID              string         `json:"run_id" gorm:"primaryKey;size:36"`
	FromBlockID     string         `json:"from_block_id,omitempty" gorm:"size:36"`
	LastBlockID     string         `json:"last_block_id,omitempty" gorm:"size:36"`
	NextFromBlockID string         `json:"next_from_block_id,omitempty" gorm:"size:36"`
	CheckedCount    int            `json:"checked_count"`
	IsValid         bool           `json:"is_valid" gorm:"index"`
	InvalidBlockIDs datatypes.JSON `json:"invalid_block_ids"`
	BrokenChainAt   string         `json:"broken_chain_at,omitempty" gorm:"size:36"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at" gorm:"index"`
	Signature       string         `json:"signature" gorm:"size:64"` // HMAC-SHA256 over the summary fields
}

// TableName 指定表名
func (VerificationRun) TableName() string {
	return "verification_runs"
}
