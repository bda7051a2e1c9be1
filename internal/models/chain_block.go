package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// GenesisHash is the previous hash of the very first block in the ledger
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// BlockEvent names the ledger event a block describes
type BlockEvent string

const (
	EventRecord        BlockEvent = "record"
	EventEscrowHold    BlockEvent = "escrow_hold"
	EventEscrowRelease BlockEvent = "escrow_release"
	EventEscrowRefund  BlockEvent = "escrow_refund"
	EventDispute       BlockEvent = "dispute"
	EventCancel        BlockEvent = "cancel"
)

// ChainBlock 区块表
// Strictly append-only. Sequence gives the global chain order; the unique index
// on previous_hash means two blocks can never claim the same predecessor.
type ChainBlock struct {
	ID            string         `json:"block_id" gorm:"primaryKey;size:36"`
	Sequence      int64          `json:"sequence" gorm:"not null;uniqueIndex"`
	BlockHash     string         `json:"block_hash" gorm:"not null;size:64;uniqueIndex"`
	PreviousHash  string         `json:"previous_hash" gorm:"not null;size:64;uniqueIndex"`
	LedgerID      string         `json:"ledger_id" gorm:"not null;size:36;index"`
	TransactionID string         `json:"transaction_id" gorm:"not null;size:100;index"`
	Event         BlockEvent     `json:"event" gorm:"not null;size:20"`
	Data          datatypes.JSON `json:"data" gorm:"not null"`
	Nonce         int64          `json:"nonce" gorm:"not null"`
	Timestamp     int64          `json:"timestamp" gorm:"not null"` // unix milliseconds, part of the hash input
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (ChainBlock) TableName() string {
	return "chain_blocks"
}

// BlockData is the hashed payload of a block. Field order is the canonical
// serialization order; money values are fixed two-decimal strings and times are
// unix milliseconds so any implementation can reproduce the bytes.
type BlockData struct {
	TransactionID  string            `json:"transactionId"`
	Event          BlockEvent        `json:"event"`
	SenderHash     string            `json:"senderHash"`
	ReceiverHash   string            `json:"receiverHash"`
	ProductType    ProductType       `json:"productType"`
	TokenAmount    string            `json:"tokenAmount"`
	PlatformShare  string            `json:"platformShare"`
	CreatorShare   string            `json:"creatorShare"`
	Status         TransactionStatus `json:"status"`
	EscrowOutcome  string            `json:"escrowOutcome,omitempty"`
	PayoutEligible bool              `json:"payoutEligible"`
	RegionTag      string            `json:"regionTag"`
	Version        int64             `json:"version"`
	OccurredAt     int64             `json:"occurredAt"`
	Reason         string            `json:"reason,omitempty"`
	Details        *ProductDetails   `json:"details,omitempty"`
}

// ProductDetails carries per-product metadata as a tagged union keyed by the
// transaction's product type. At most one variant is set.
type ProductDetails struct {
	Chat         *ChatDetails         `json:"chat,omitempty"`
	Call         *CallDetails         `json:"call,omitempty"`
	Product      *DigitalDetails      `json:"product,omitempty"`
	Event        *EventDetails        `json:"event,omitempty"`
	Subscription *SubscriptionDetails `json:"subscription,omitempty"`
	Gift         *GiftDetails         `json:"gift,omitempty"`
	Ad           *AdDetails           `json:"ad,omitempty"`
}

type ChatDetails struct {
	ConversationRef string `json:"conversationRef"`
	MessageCount    int    `json:"messageCount"`
}

type CallDetails struct {
	CallRef         string `json:"callRef"`
	DurationSeconds int    `json:"durationSeconds"`
	Video           bool   `json:"video"`
}

type DigitalDetails struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type EventDetails struct {
	EventRef string `json:"eventRef"`
	Seats    int    `json:"seats"`
}

type SubscriptionDetails struct {
	PlanRef    string `json:"planRef"`
	PeriodDays int    `json:"periodDays"`
}

type GiftDetails struct {
	GiftCode string `json:"giftCode"`
}

type AdDetails struct {
	CampaignRef string `json:"campaignRef"`
	Impressions int64  `json:"impressions"`
}

// Variant returns the product type of the populated variant, or "" when empty.
// An error is returned when more than one variant is populated.
func (d *ProductDetails) Variant() (ProductType, error) {
	if d == nil {
		return "", nil
	}
	var found []ProductType
	if d.Chat != nil {
		found = append(found, ProductChat)
	}
	if d.Call != nil {
		found = append(found, ProductCall)
	}
	if d.Product != nil {
		found = append(found, ProductDigital)
	}
	if d.Event != nil {
		found = append(found, ProductEvent)
	}
	if d.Subscription != nil {
		found = append(found, ProductSubscription)
	}
	if d.Gift != nil {
		found = append(found, ProductGift)
	}
	if d.Ad != nil {
		found = append(found, ProductAd)
	}
	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("product details carry %d variants %v, expected one", len(found), found)
	}
}
