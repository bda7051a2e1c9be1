package api

import (
	"time"

	"creator-ledger/internal/middleware"
	"creator-ledger/internal/models"

	"github.com/gin-gonic/gin"
)

// RouterOptions configures the API surface
type RouterOptions struct {
	ServiceKeys    []string
	RequestTimeout time.Duration
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, h *LedgerHandler, opts RouterOptions) {
	api := r.Group("/api")
	{
		// Ledger routes (require a service key)
		ledger := api.Group("/ledger")
		ledger.Use(middleware.ServiceKeyMiddleware(opts.ServiceKeys), middleware.RequestTimeout(opts.RequestTimeout))
		{
			ledger.POST("/transactions", h.RecordTransaction)
			ledger.GET("/transactions/:transactionId", h.GetTransaction)

			// Lifecycle amendments from the escrow/payment system
			ledger.POST("/transactions/:transactionId/escrow/hold", h.Transition(models.EventEscrowHold))
			ledger.POST("/transactions/:transactionId/escrow/release", h.Transition(models.EventEscrowRelease))
			ledger.POST("/transactions/:transactionId/escrow/refund", h.Transition(models.EventEscrowRefund))
			ledger.POST("/transactions/:transactionId/dispute", h.Transition(models.EventDispute))
			ledger.POST("/transactions/:transactionId/cancel", h.Transition(models.EventCancel))

			// Verification
			ledger.GET("/transactions/:transactionId/verify", h.VerifyTransaction)
			ledger.GET("/blocks/:blockId/verify", h.VerifyBlock)
			ledger.GET("/chain/verify", h.VerifyChain)
			ledger.POST("/chain/scan", h.ScanChain)
			ledger.GET("/chain/runs", h.ListRuns)
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "creator-ledger",
		})
	})
}
