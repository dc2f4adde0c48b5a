package dto

import (
	"tiered-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=128"`
}

// LoginResponse is the response body for a successful login.
type LoginResponse struct {
	Token     string          `json:"token"`
	Expiry    int64           `json:"expiry"` // Unix timestamp
	AccountID string          `json:"account_id"`
	Role      domain.Role     `json:"role"`
	Account   *domain.Account `json:"account"`
}

// CreateAccountRequest creates a child account. ParentID defaults to the caller.
type CreateAccountRequest struct {
	ParentID *string `json:"parent_id,omitempty" binding:"omitempty,uuid"`
	Role     string  `json:"role" binding:"required,oneof=super master player"`
	Username string  `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string  `json:"password" binding:"required,min=8,max=128"`
	Pin      string  `json:"pin" binding:"required,pin"`
}

// ExposureLimitRequest sets a player's exposure limit.
type ExposureLimitRequest struct {
	Limit decimal.Decimal `json:"limit" binding:"required,money"`
}

// LedgerRequest creates a queued deposit or withdrawal.
type LedgerRequest struct {
	AccountID     string          `json:"account_id" binding:"required,uuid"`
	Amount        decimal.Decimal `json:"amount" binding:"required,money"`
	PaymentModeID *string         `json:"payment_mode_id,omitempty" binding:"omitempty,uuid"`
	Note          *string         `json:"note,omitempty" binding:"omitempty,max=255"`
}

// DirectRequest creates and applies an entry in one PIN-confirmed step.
type DirectRequest struct {
	AccountID     string          `json:"account_id" binding:"required,uuid"`
	Amount        decimal.Decimal `json:"amount" binding:"required,money"`
	Pin           string          `json:"pin" binding:"required,pin"`
	PaymentModeID *string         `json:"payment_mode_id,omitempty" binding:"omitempty,uuid"`
	Note          *string         `json:"note,omitempty" binding:"omitempty,max=255"`
}

// ApproveRequest confirms an approval with the approver's PIN or password.
// The PIN wins when both are sent.
type ApproveRequest struct {
	Pin      string `json:"pin,omitempty" binding:"omitempty,pin"`
	Password string `json:"password,omitempty" binding:"omitempty,max=128"`
}

// RejectRequest carries the reason shown to the requester.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// SettleRequest confirms a settlement with the super's PIN.
type SettleRequest struct {
	Pin string `json:"pin" binding:"required,pin"`
}

// RegeneratePinRequest confirms a PIN rotation with the caller's password.
type RegeneratePinRequest struct {
	Password string `json:"password" binding:"required,max=128"`
}

// RegeneratePinResponse returns the new PIN exactly once.
type RegeneratePinResponse struct {
	AccountID string `json:"account_id"`
	Pin       string `json:"pin"`
}

// ResetPasswordRequest sets a new password for a descendant or the caller.
type ResetPasswordRequest struct {
	Password    string `json:"password" binding:"required,max=128"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

// CreatePaymentModeRequest registers a master's deposit/withdrawal destination.
type CreatePaymentModeRequest struct {
	Type          string `json:"type" binding:"required,oneof=ewallet bank"`
	Label         string `json:"label" binding:"required,max=100"`
	AccountName   string `json:"account_name" binding:"omitempty,max=100"`
	AccountNumber string `json:"account_number" binding:"required,max=64"`
}

// SetActiveRequest toggles a payment mode.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// GameResultRequest is one settled round pushed by the game integration.
// Amount is the player's signed net result.
type GameResultRequest struct {
	PlayerID string          `json:"player_id" binding:"required,uuid"`
	RoundRef string          `json:"round_ref" binding:"required,max=100,safe_id"`
	Amount   decimal.Decimal `json:"amount" binding:"required,money"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []domain.Transaction `json:"items"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
}
