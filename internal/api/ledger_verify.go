package api

import (
	"errors"
	"io"
	"strconv"

	"creator-ledger/internal/models"
	"creator-ledger/internal/response"

	"github.com/gin-gonic/gin"
)

// VerifyTransaction checks one transaction against its chain block
func (h *LedgerHandler) VerifyTransaction(c *gin.Context) {
	result, err := h.Verifier.VerifyTransaction(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessJSON(c, result)
}

// VerifyBlock recomputes the hash of one block
func (h *LedgerHandler) VerifyBlock(c *gin.Context) {
	block, valid, err := h.Verifier.VerifyBlockByID(c.Request.Context(), c.Param("blockId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessJSON(c, gin.H{
		"block_id":   block.ID,
		"sequence":   block.Sequence,
		"block_hash": block.BlockHash,
		"is_valid":   valid,
	})
}

// VerifyChain walks the chain from ?from= (or the first block)
func (h *LedgerHandler) VerifyChain(c *gin.Context) {
	result, err := h.Verifier.VerifyChainSegment(c.Request.Context(), c.Query("from"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessJSON(c, result)
}

// ScanChainRequest represents a scheduled scan trigger
type ScanChainRequest struct {
	FromBlockID string `json:"from_block_id"`
}

// ScanChain runs a scan and stores its signed summary
func (h *LedgerHandler) ScanChain(c *gin.Context) {
	var req ScanChainRequest
	// empty body scans from the first block
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	run, segment, err := h.Verifier.RunScan(c.Request.Context(), req.FromBlockID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessJSON(c, gin.H{
		"run":    run,
		"result": segment,
	})
}

type runView struct {
	models.VerificationRun
	SignatureValid bool `json:"signature_valid"`
}

// ListRuns returns the latest signed scan summaries
func (h *LedgerHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.Verifier.ListRuns(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]runView, 0, len(runs))
	for i := range runs {
		views = append(views, runView{
			VerificationRun: runs[i],
			SignatureValid:  h.Verifier.VerifyRunSignature(&runs[i]),
		})
	}
	response.SuccessJSON(c, views)
}
