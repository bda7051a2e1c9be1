package main

import (
	"log"
	"time"

	"creator-ledger/internal/api"
	"creator-ledger/internal/app"
	"creator-ledger/internal/config"
	"creator-ledger/internal/database"
	"creator-ledger/pkg/logging"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatal("Failed to initialize config:", err)
	}
	cfg := config.AppConfig

	// Initialize logging
	logging.InitLogging(cfg.LogLevel)

	// Initialize database
	if err := database.InitDatabase(cfg); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.CloseDatabase()

	ledger := app.NewLedger(cfg, database.GetDB(), database.GetRedis())

	// Set Gin mode
	gin.SetMode(cfg.Mode)

	// Create Gin engine
	r := gin.Default()

	// Setup routes
	api.SetupRoutes(r, api.NewLedgerHandler(ledger.Recorder, ledger.Lifecycle, ledger.Verifier), api.RouterOptions{
		ServiceKeys:    cfg.ServiceKeys,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSecs) * time.Second,
	})

	// Start server
	logging.Infof("Starting server on port %s", cfg.Port)

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
