package api

import (
	"creator-ledger/internal/models"
	"creator-ledger/internal/response"
	"creator-ledger/internal/services"

	"github.com/gin-gonic/gin"
)

// TransitionRequest represents a lifecycle amendment request
type TransitionRequest struct {
	ExpectedVersion int64   `json:"expected_version" binding:"required,min=1"`
	EscrowID        *string `json:"escrow_id"` // escrow hold only
	Reason          string  `json:"reason"`
}

// Transition returns a handler applying event to the transaction in the path.
// A stale expected_version answers 409 and the caller must re-read.
func (h *LedgerHandler) Transition(event models.BlockEvent) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		result, err := h.Lifecycle.Transition(c.Request.Context(), services.TransitionRequest{
			TransactionID:   c.Param("transactionId"),
			ExpectedVersion: req.ExpectedVersion,
			Event:           event,
			EscrowID:        req.EscrowID,
			Reason:          req.Reason,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		response.SuccessJSON(c, result)
	}
}
