// Package errors provides custom error types for the treasurer API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	"errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches another AppError by code, so wrapped copies of a sentinel
// still satisfy errors.Is(err, ErrSomething).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Retryable reports whether err belongs to a class the allocation engine
// retries with fresh reads (concurrency conflicts and persistence failures).
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrPersistence)
}

// ErrInvalidSignature rejects gateway callbacks that fail verification.
var ErrInvalidSignature = &AppError{Code: "INVALID_SIGNATURE", Message: "Webhook signature verification failed", StatusCode: http.StatusBadRequest}

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Allocation taxonomy.
var (
	ErrInvalidAmount       = &AppError{Code: "INVALID_AMOUNT", Message: "Amount must be a positive whole number", StatusCode: http.StatusBadRequest}
	ErrAmountMismatch      = &AppError{Code: "AMOUNT_MISMATCH", Message: "Payment amount does not match the pending transaction", StatusCode: http.StatusBadRequest}
	ErrDuplicateEvent      = &AppError{Code: "DUPLICATE_EVENT", Message: "An event with this correlation id already exists", StatusCode: http.StatusConflict}
	ErrConcurrencyConflict = &AppError{Code: "CONCURRENCY_CONFLICT", Message: "A concurrent payment changed the ledger, please retry", StatusCode: http.StatusConflict}
	ErrPersistence         = &AppError{Code: "PERSISTENCE_ERROR", Message: "The ledger store is unavailable, please retry", StatusCode: http.StatusServiceUnavailable}
	ErrLogicInvariant      = &AppError{Code: "LOGIC_INVARIANT", Message: "Allocation violated a ledger invariant", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrUserInactive   = &AppError{Code: "USER_INACTIVE", Message: "User is not an active member", StatusCode: http.StatusBadRequest}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrTransactionFailed      = &AppError{Code: "TRANSACTION_FAILED", Message: "Transaction already failed and needs manual reconciliation", StatusCode: http.StatusConflict}
	ErrInvalidStatusChange    = &AppError{Code: "INVALID_STATUS_TRANSITION", Message: "Transaction status cannot move backwards", StatusCode: http.StatusConflict}
	ErrInvalidTransactionType = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Unsupported transaction type", StatusCode: http.StatusBadRequest}
)

// Debt errors.
var (
	ErrDebtNotFound = &AppError{Code: "DEBT_NOT_FOUND", Message: "Debt not found", StatusCode: http.StatusNotFound}
)

// Gateway errors.
var (
	ErrGateway = &AppError{Code: "GATEWAY_ERROR", Message: "Payment gateway request failed", StatusCode: http.StatusBadGateway}
)
