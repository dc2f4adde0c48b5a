package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeSettlement TransactionType = "settlement"
	TransactionTypeCommission TransactionType = "commission"
	TransactionTypeBonus      TransactionType = "bonus"
	TransactionTypeGameResult TransactionType = "game_result"
)

// Direction tells whether an entry adds to or removes from a balance.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusApproved TransactionStatus = "approved"
	TransactionStatusRejected TransactionStatus = "rejected"
)

// ErrNotPending is returned when a processed transaction is transitioned again.
var ErrNotPending = errors.New("transaction is not pending")

// ErrInvalidTransition is returned for a target status other than approved or rejected.
var ErrInvalidTransition = errors.New("invalid status transition")

// Transaction is an append-only ledger entry. Once it leaves pending it is
// never modified; corrections are new entries in the opposite direction.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	AccountID     uuid.UUID         `json:"account_id"`
	Type          TransactionType   `json:"type"`
	Direction     Direction         `json:"direction"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	InitiatorID   uuid.UUID         `json:"initiator_id"`
	ApproverID    *uuid.UUID        `json:"approver_id,omitempty"`
	PaymentModeID *uuid.UUID        `json:"payment_mode_id,omitempty"`
	RejectReason  *string           `json:"reject_reason,omitempty"`
	Reference     *string           `json:"reference,omitempty"`
	Note          *string           `json:"note,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	ProcessedAt   *time.Time        `json:"processed_at,omitempty"`
}

// FixedDirection returns the direction implied by the type, if any.
// Settlements and game results carry either direction.
func (t TransactionType) FixedDirection() (Direction, bool) {
	switch t {
	case TransactionTypeDeposit, TransactionTypeCommission, TransactionTypeBonus:
		return DirectionCredit, true
	case TransactionTypeWithdrawal:
		return DirectionDebit, true
	}
	return "", false
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeSettlement,
		TransactionTypeCommission, TransactionTypeBonus, TransactionTypeGameResult:
		return true
	}
	return false
}

// AcceptsPaymentMode reports whether a payment mode may annotate entries of this type.
func (t TransactionType) AcceptsPaymentMode() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdrawal
}

// IsPending returns true while the transaction awaits approval.
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusApproved || t.Status == TransactionStatusRejected
}

// AffectsBonus reports whether the entry moves bonus_balance instead of main_balance.
func (t *Transaction) AffectsBonus() bool {
	return t.Type == TransactionTypeBonus
}

// SignedAmount is the amount as seen by the balance it affects.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Transition moves a pending transaction to approved or rejected, stamping
// processed_at. It fails with ErrNotPending if the transaction was already processed.
func (t *Transaction) Transition(status TransactionStatus, approverID uuid.UUID, reason *string, at time.Time) error {
	if status != TransactionStatusApproved && status != TransactionStatusRejected {
		return ErrInvalidTransition
	}
	if !t.IsPending() {
		return ErrNotPending
	}
	t.Status = status
	t.ApproverID = &approverID
	if status == TransactionStatusRejected {
		t.RejectReason = reason
	}
	t.ProcessedAt = &at
	return nil
}
