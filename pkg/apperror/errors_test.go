package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("LEDGER_001", "Insufficient balance", http.StatusPaymentRequired),
			expected: "[LEDGER_001] Insufficient balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("LEDGER_001", "test", http.StatusBadRequest).Unwrap())
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("approve: %w", ErrAlreadyProcessed())

	assert.True(t, errors.Is(err, ErrAlreadyProcessed()))
	assert.False(t, errors.Is(err, ErrInsufficientFunds()))
	assert.Equal(t, "LEDGER_003", CodeOf(err))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"AuthenticationFailed", ErrAuthenticationFailed(), "AUTH_002", http.StatusForbidden},
		{"TooManyAttempts", ErrTooManyAttempts(), "AUTH_005", http.StatusTooManyRequests},
		{"InvalidHierarchy", ErrInvalidHierarchy("bad tier"), "ACCT_001", http.StatusUnprocessableEntity},
		{"DuplicateUsername", ErrDuplicateUsername(), "ACCT_002", http.StatusConflict},
		{"Forbidden", ErrForbidden(), "ACCT_003", http.StatusForbidden},
		{"InsufficientFunds", ErrInsufficientFunds(), "LEDGER_001", http.StatusPaymentRequired},
		{"InvalidAmount", ErrInvalidAmount(), "LEDGER_002", http.StatusBadRequest},
		{"AlreadyProcessed", ErrAlreadyProcessed(), "LEDGER_003", http.StatusConflict},
		{"NothingToSettle", ErrNothingToSettle(), "SETTLE_001", http.StatusUnprocessableEntity},
		{"NotFound", ErrNotFound("account"), "SYS_404", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Detail)
		})
	}
}

func TestErrNotFound_IncludesEntity(t *testing.T) {
	assert.Equal(t, "transaction not found", ErrNotFound("transaction").Detail)
}

func TestInternalError_WrapsCause(t *testing.T) {
	cause := errors.New("pool closed")
	err := InternalError(cause)

	assert.Equal(t, "SYS_001", err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus)
	assert.ErrorIs(t, err, cause)
}
