package app

import (
	"fmt"
	"time"

	"creator-ledger/internal/config"
	"creator-ledger/internal/database"
	"creator-ledger/internal/services"
	"creator-ledger/pkg/logging"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Ledger holds the wired ledger services
type Ledger struct {
	Chain     *services.ChainAppender
	Recorder  *services.LedgerRecorder
	Lifecycle *services.LifecycleService
	Verifier  *services.IntegrityVerifier
}

// NewLedger wires the ledger services. redisClient may be nil.
func NewLedger(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Ledger {
	var (
		cache     services.IdempotencyCache
		publisher services.AuditPublisher
	)
	if redisClient != nil {
		redisService := services.NewRedisService(redisClient, cfg.AuditStream, time.Duration(cfg.IdempotencyTTL)*time.Hour)
		cache = redisService
		publisher = redisService
	}

	chain := services.NewChainAppender(db, cfg.AppendMaxRetries)
	hasher := services.NewPrivacyHasher(cfg.HashPepper)
	verifier := services.NewIntegrityVerifier(db, cfg.VerifyPageSize, cfg.VerifyMaxBlocks,
		cfg.SummarySigningKey, AlertNotifier(cfg), publisher)

	return &Ledger{
		Chain:     chain,
		Recorder:  services.NewLedgerRecorder(chain, hasher, cache, publisher),
		Lifecycle: services.NewLifecycleService(db, chain, publisher),
		Verifier:  verifier,
	}
}

// OpenLedger connects the SQL database, and Redis when cfg.RedisURL is set,
// then wires the ledger on top. The returned func closes both connections.
func OpenLedger(cfg *config.Config) (*Ledger, func(), error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	closeSQL := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := database.Migrate(db); err != nil {
		closeSQL()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.OpenRedis(cfg.RedisURL)
		if err != nil {
			closeSQL()
			return nil, nil, fmt.Errorf("failed to open Redis: %w", err)
		}
	}

	closeAll := func() {
		closeSQL()
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}
	return NewLedger(cfg, db, redisClient), closeAll, nil
}

// AlertNotifier builds the operator alert channels that cfg enables, or nil
func AlertNotifier(cfg *config.Config) services.AlertNotifier {
	var notifiers services.MultiNotifier
	if cfg.BrevoAPIKey != "" && cfg.AlertEmail != "" {
		notifiers = append(notifiers, services.NewBrevoService(cfg.BrevoAPIKey, cfg.BrevoFromEmail, cfg.BrevoFromName, cfg.AlertEmail))
	}
	if cfg.AlertWebhookURL != "" {
		notifiers = append(notifiers, services.NewWebhookNotifier(cfg.AlertWebhookURL, cfg.AlertWebhookToken))
	}
	if len(notifiers) == 0 {
		logging.Warnf("No alert channel configured, integrity failures are only logged")
		return nil
	}
	return notifiers
}
