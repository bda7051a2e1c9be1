package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a ledger transaction
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusEscrowed  TransactionStatus = "escrowed"
	StatusCompleted TransactionStatus = "completed"
	StatusRefunded  TransactionStatus = "refunded"
	StatusDisputed  TransactionStatus = "disputed"
	StatusCancelled TransactionStatus = "cancelled"
)

// ProductType identifies the revenue-generating activity behind a transaction
type ProductType string

const (
	ProductChat         ProductType = "chat"
	ProductCall         ProductType = "call"
	ProductDigital      ProductType = "product"
	ProductEvent        ProductType = "event"
	ProductSubscription ProductType = "subscription"
	ProductGift         ProductType = "gift"
	ProductAd           ProductType = "ad"
	ProductTip          ProductType = "tip"
)

// Valid reports whether p is one of the known product types
func (p ProductType) Valid() bool {
	switch p {
	case ProductChat, ProductCall, ProductDigital, ProductEvent,
		ProductSubscription, ProductGift, ProductAd, ProductTip:
		return true
	}
	return false
}

// LedgerTransaction 账本交易表
// One row per external transaction id. Rows are amended through the lifecycle
// service and never deleted, so there is no soft-delete column.
type LedgerTransaction struct {
	ID string `json:"ledger_id" gorm:"primaryKey;size:36"` // ledger id (UUID)

	// 交易标识
	TransactionID string `json:"transaction_id" gorm:"not null;size:100;uniqueIndex"` // caller supplied, idempotency key

	// 参与方（仅存哈希）
	SenderHash   string `json:"sender_hash" gorm:"not null;size:64;index"`
	ReceiverHash string `json:"receiver_hash" gorm:"not null;size:64;index"`

	ProductType ProductType `json:"product_type" gorm:"not null;size:20;index"`

	// 金额
	TokenAmount    decimal.Decimal `json:"token_amount" gorm:"type:decimal(20,2);not null"`
	ConversionRate decimal.Decimal `json:"conversion_rate" gorm:"type:decimal(20,8);not null"`
	USDEquivalent  decimal.Decimal `json:"usd_equivalent" gorm:"type:decimal(20,2);not null"` // reporting only
	PlatformShare  decimal.Decimal `json:"platform_share" gorm:"type:decimal(20,2);not null"`
	CreatorShare   decimal.Decimal `json:"creator_share" gorm:"type:decimal(20,2);not null"`

	EscrowID  *string `json:"escrow_id,omitempty" gorm:"size:100;index"`
	RegionTag string  `json:"region_tag" gorm:"not null;size:20"`

	// 状态
	Status         TransactionStatus `json:"status" gorm:"not null;size:20;index"`
	PayoutEligible bool              `json:"payout_eligible"`

	// 区块链
	BlockchainHash string `json:"blockchain_hash" gorm:"not null;size:64;index"` // hash of the latest block for this row
	Version        int64  `json:"version" gorm:"not null"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}
