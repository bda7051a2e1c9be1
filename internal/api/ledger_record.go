package api

import (
	"net/http"

	"creator-ledger/internal/models"
	"creator-ledger/internal/response"
	"creator-ledger/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RecordTransactionRequest represents a record request from a revenue-producing feature
type RecordTransactionRequest struct {
	TransactionID  string                 `json:"transaction_id" binding:"required"`
	SenderID       string                 `json:"sender_id" binding:"required"`
	ReceiverID     string                 `json:"receiver_id" binding:"required"`
	ProductType    string                 `json:"product_type" binding:"required"`
	TokenAmount    decimal.Decimal        `json:"token_amount"`    // number or string
	ConversionRate decimal.Decimal        `json:"conversion_rate"` // number or string
	EscrowID       *string                `json:"escrow_id"`
	RegionTag      string                 `json:"region_tag" binding:"required"`
	Pending        bool                   `json:"pending"`
	Details        *models.ProductDetails `json:"details"`
}

// RecordTransaction records a transaction. A repeated transaction_id returns
// the stored result with 200 instead of 201.
func (h *LedgerHandler) RecordTransaction(c *gin.Context) {
	var req RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.Recorder.Record(c.Request.Context(), services.RecordRequest{
		TransactionID:  req.TransactionID,
		SenderID:       req.SenderID,
		ReceiverID:     req.ReceiverID,
		ProductType:    models.ProductType(req.ProductType),
		TokenAmount:    req.TokenAmount,
		ConversionRate: req.ConversionRate,
		EscrowID:       req.EscrowID,
		RegionTag:      req.RegionTag,
		Details:        req.Details,
		Pending:        req.Pending,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if result.Duplicate {
		response.SuccessJSON(c, result)
		return
	}
	response.CreatedJSON(c, result)
}

// GetTransaction returns the stored row and the state folded from its blocks
func (h *LedgerHandler) GetTransaction(c *gin.Context) {
	transactionID := c.Param("transactionId")

	row, err := h.Lifecycle.GetTransaction(c.Request.Context(), transactionID)
	if err != nil {
		writeError(c, err)
		return
	}
	state, err := h.Lifecycle.CurrentState(c.Request.Context(), transactionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(gin.H{
		"transaction": row,
		"state":       state,
	}))
}
