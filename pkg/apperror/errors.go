package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
// Detail is shown to the operator verbatim.
type AppError struct {
	Code       string `json:"error_code"`
	Detail     string `json:"detail"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Detail, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Detail)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by code so callers can use errors.Is against
// the constructors below.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, detail string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Detail:     detail,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, detail string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Detail:     detail,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid username or password", http.StatusUnauthorized)
}

func ErrAuthenticationFailed() *AppError {
	return New("AUTH_002", "Incorrect PIN or password", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrRoleMismatch() *AppError {
	return New("AUTH_004", "Route not available for this role", http.StatusForbidden)
}

func ErrTooManyAttempts() *AppError {
	return New("AUTH_005", "Too many failed attempts, try again later", http.StatusTooManyRequests)
}

// ---- Accounts (ACCT) ----

func ErrInvalidHierarchy(detail string) *AppError {
	return New("ACCT_001", detail, http.StatusUnprocessableEntity)
}

func ErrDuplicateUsername() *AppError {
	return New("ACCT_002", "Username already exists", http.StatusConflict)
}

func ErrForbidden() *AppError {
	return New("ACCT_003", "Account is outside your hierarchy", http.StatusForbidden)
}

func ErrAccountInactive() *AppError {
	return New("ACCT_004", "Account is inactive", http.StatusForbidden)
}

// ---- Ledger (LEDGER) ----

func ErrInsufficientFunds() *AppError {
	return New("LEDGER_001", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("LEDGER_002", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrAlreadyProcessed() *AppError {
	return New("LEDGER_003", "Transaction has already been processed", http.StatusConflict)
}

func ErrInvalidPaymentMode() *AppError {
	return New("LEDGER_004", "Payment mode is not available for this account", http.StatusUnprocessableEntity)
}

func ErrWrongTransactionType() *AppError {
	return New("LEDGER_005", "Transaction type does not match this route", http.StatusBadRequest)
}

// ---- Settlement (SETTLE) ----

func ErrNothingToSettle() *AppError {
	return New("SETTLE_001", "Nothing to settle", http.StatusUnprocessableEntity)
}

// ---- Game feed security (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Request / System ----

func ErrNotFound(entity string) *AppError {
	return New("SYS_404", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(detail string) *AppError {
	return New("REQ_001", detail, http.StatusBadRequest)
}
