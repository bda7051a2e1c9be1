package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Server configuration
	Port        string
	Mode        string
	ServiceKeys []string

	// Database configuration
	DatabaseDriver string // postgres, mysql or sqlite; empty picks from DatabaseURL
	DatabaseURL    string
	SQLitePath     string

	// Redis configuration (idempotency cache and audit stream)
	RedisURL       string
	AuditStream    string
	IdempotencyTTL int // hours

	// Ledger configuration
	HashPepper         string
	SummarySigningKey  string
	AppendMaxRetries   int
	VerifyPageSize     int
	VerifyMaxBlocks    int
	RequestTimeoutSecs int

	// Operator alerting
	BrevoAPIKey       string
	BrevoFromEmail    string
	BrevoFromName     string
	AlertEmail        string
	AlertWebhookURL   string
	AlertWebhookToken string

	// Logging
	LogLevel string
}

var AppConfig *Config

// InitConfig loads configuration into AppConfig.
func InitConfig() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Load resolves configuration from the environment, an optional .env file and an
// optional YAML file named by LEDGER_CONFIG_FILE.
func Load() (*Config, error) {
	// A missing .env file is fine outside development
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("LEDGER_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Mode:        v.GetString("GIN_MODE"),
		ServiceKeys: splitCSV(v.GetString("LEDGER_SERVICE_KEYS")),

		DatabaseDriver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		SQLitePath:     v.GetString("SQLITE_PATH"),

		RedisURL:       v.GetString("REDIS_URL"),
		AuditStream:    v.GetString("LEDGER_AUDIT_STREAM"),
		IdempotencyTTL: v.GetInt("LEDGER_IDEMPOTENCY_TTL_HOURS"),

		HashPepper:         v.GetString("LEDGER_HASH_PEPPER"),
		SummarySigningKey:  v.GetString("LEDGER_SUMMARY_SIGNING_KEY"),
		AppendMaxRetries:   v.GetInt("LEDGER_APPEND_MAX_RETRIES"),
		VerifyPageSize:     v.GetInt("LEDGER_VERIFY_PAGE_SIZE"),
		VerifyMaxBlocks:    v.GetInt("LEDGER_VERIFY_MAX_BLOCKS"),
		RequestTimeoutSecs: v.GetInt("LEDGER_REQUEST_TIMEOUT_SECONDS"),

		BrevoAPIKey:       v.GetString("BREVO_API_KEY"),
		BrevoFromEmail:    v.GetString("BREVO_FROM_EMAIL"),
		BrevoFromName:     v.GetString("BREVO_FROM_NAME"),
		AlertEmail:        v.GetString("LEDGER_ALERT_EMAIL"),
		AlertWebhookURL:   v.GetString("LEDGER_ALERT_WEBHOOK_URL"),
		AlertWebhookToken: v.GetString("LEDGER_ALERT_WEBHOOK_SECRET"),

		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SQLITE_PATH", "creator-ledger.db")
	v.SetDefault("LEDGER_AUDIT_STREAM", "ledger:audit")
	v.SetDefault("LEDGER_IDEMPOTENCY_TTL_HOURS", 24)
	v.SetDefault("LEDGER_APPEND_MAX_RETRIES", 5)
	v.SetDefault("LEDGER_VERIFY_PAGE_SIZE", 500)
	v.SetDefault("LEDGER_VERIFY_MAX_BLOCKS", 50000)
	v.SetDefault("LEDGER_REQUEST_TIMEOUT_SECONDS", 15)
	v.SetDefault("BREVO_FROM_NAME", "Creator Ledger")
	v.SetDefault("LOG_LEVEL", "info")
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "", "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.AppendMaxRetries <= 0 {
		return fmt.Errorf("LEDGER_APPEND_MAX_RETRIES must be positive, got %d", c.AppendMaxRetries)
	}
	if c.VerifyPageSize <= 0 || c.VerifyMaxBlocks <= 0 {
		return fmt.Errorf("verification page size and block bound must be positive")
	}
	return nil
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
