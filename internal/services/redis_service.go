package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AuditEvent is one entry of the audit stream consumed by observability tooling
type AuditEvent struct {
	Action        string    `json:"action"`
	LedgerID      string    `json:"ledger_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	BlockHash     string    `json:"block_hash,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	At            time.Time `json:"at"`
}

// AuditPublisher publishes audit events outside the database
type AuditPublisher interface {
	Publish(ctx context.Context, event AuditEvent) error
}

// IdempotencyCache remembers record results by external transaction id
type IdempotencyCache interface {
	Get(ctx context.Context, transactionID string) (*RecordResult, bool, error)
	Put(ctx context.Context, transactionID string, result *RecordResult) error
}

// RedisService provides the Redis-backed audit stream and idempotency cache
type RedisService struct {
	client    *redis.Client
	stream    string
	streamCap int64
	ttl       time.Duration
}

// NewRedisService creates a new Redis service instance
func NewRedisService(client *redis.Client, stream string, ttl time.Duration) *RedisService {
	return &RedisService{
		client:    client,
		stream:    stream,
		streamCap: 100000,
		ttl:       ttl,
	}
}

// Publish appends the event to the audit stream
func (r *RedisService) Publish(ctx context.Context, event AuditEvent) error {
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.streamCap,
		Approx: true,
		Values: map[string]interface{}{
			"action":         event.Action,
			"ledger_id":      event.LedgerID,
			"transaction_id": event.TransactionID,
			"block_hash":     event.BlockHash,
			"detail":         event.Detail,
			"at":             event.At.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}

// Get looks up a cached record result
func (r *RedisService) Get(ctx context.Context, transactionID string) (*RecordResult, bool, error) {
	raw, err := r.client.Get(ctx, idempotencyKey(transactionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}

	var result RecordResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached record result: %w", err)
	}
	return &result, true, nil
}

// Put caches a record result
func (r *RedisService) Put(ctx context.Context, transactionID string, result *RecordResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, idempotencyKey(transactionID), raw, r.ttl).Err()
}

func idempotencyKey(transactionID string) string {
	return fmt.Sprintf("ledger:record:%s", transactionID)
}
