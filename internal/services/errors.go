package services

import "fmt"

// Error codes surfaced by the ledger services
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "ENTITY_NOT_FOUND"
	CodeConflict          = "VERSION_CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeIntegrity         = "INTEGRITY_ERROR"
)

// LedgerError represents a typed error returned to ledger callers
type LedgerError struct {
	Code    string
	Message string
	Detail  string
}

func (e *LedgerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
}

// Is matches on Code so errors.Is(err, ErrConflict) works for any conflict
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	return ok && t.Code == e.Code
}

var (
	ErrValidation        = &LedgerError{Code: CodeValidation, Message: "invalid request"}
	ErrNotFound          = &LedgerError{Code: CodeNotFound, Message: "not found"}
	ErrConflict          = &LedgerError{Code: CodeConflict, Message: "version conflict"}
	ErrInvalidTransition = &LedgerError{Code: CodeInvalidTransition, Message: "transition not allowed"}
	ErrIntegrity         = &LedgerError{Code: CodeIntegrity, Message: "integrity check failed"}
)

func validationError(format string, args ...interface{}) *LedgerError {
	return &LedgerError{Code: CodeValidation, Message: "invalid request", Detail: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...interface{}) *LedgerError {
	return &LedgerError{Code: CodeNotFound, Message: "not found", Detail: fmt.Sprintf(format, args...)}
}

func integrityError(format string, args ...interface{}) *LedgerError {
	return &LedgerError{Code: CodeIntegrity, Message: "integrity check failed", Detail: fmt.Sprintf(format, args...)}
}
