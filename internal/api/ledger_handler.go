package api

import (
	"errors"
	"net/http"

	"creator-ledger/internal/response"
	"creator-ledger/internal/services"
	"creator-ledger/pkg/logging"

	"github.com/gin-gonic/gin"
)

// LedgerHandler serves the ledger API
type LedgerHandler struct {
	Recorder  *services.LedgerRecorder
	Lifecycle *services.LifecycleService
	Verifier  *services.IntegrityVerifier
}

// NewLedgerHandler creates a ledger handler
func NewLedgerHandler(recorder *services.LedgerRecorder, lifecycle *services.LifecycleService, verifier *services.IntegrityVerifier) *LedgerHandler {
	return &LedgerHandler{
		Recorder:  recorder,
		Lifecycle: lifecycle,
		Verifier:  verifier,
	}
}

// writeError maps typed ledger errors to HTTP status codes
func writeError(c *gin.Context, err error) {
	var ledgerErr *services.LedgerError
	if errors.As(err, &ledgerErr) {
		status := http.StatusInternalServerError
		switch ledgerErr.Code {
		case services.CodeValidation:
			status = http.StatusBadRequest
		case services.CodeNotFound:
			status = http.StatusNotFound
		case services.CodeConflict, services.CodeInvalidTransition:
			status = http.StatusConflict
		}
		response.ErrorJSON(c, status, ledgerErr.Code, ledgerErr.Message, ledgerErr.Detail)
		return
	}

	logging.Errorf("Ledger request failed - path: %s, error: %v", c.FullPath(), err)
	response.ErrorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", "")
}

func badRequest(c *gin.Context, err error) {
	response.ErrorJSON(c, http.StatusBadRequest, services.CodeValidation, "Invalid request format", err.Error())
}
