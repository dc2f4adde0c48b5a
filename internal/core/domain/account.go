package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus represents whether an account may log in and transact.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// ErrInvalidTierPairing is returned by NewAccount when the parent cannot
// hold a child of the requested role.
var ErrInvalidTierPairing = errors.New("invalid tier pairing")

// Account is a node of the four-tier ownership tree together with its
// balance projection. Balances are only changed through ledger entries.
type Account struct {
	ID              uuid.UUID       `json:"id"`
	Role            Role            `json:"role"`
	ParentID        *uuid.UUID      `json:"parent_id,omitempty"`
	Username        string          `json:"username"`
	PasswordHash    string          `json:"-"` // Never expose
	PinHash         string          `json:"-"` // Never expose
	MainBalance     decimal.Decimal `json:"main_balance"`
	BonusBalance    decimal.Decimal `json:"bonus_balance"`
	ExposureBalance decimal.Decimal `json:"exposure_balance"`
	ExposureLimit   decimal.Decimal `json:"exposure_limit"`
	PLBalance       decimal.Decimal `json:"pl_balance"`
	Status          AccountStatus   `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewAccount builds a zero-balance account under parent. A nil parent is
// only valid for the powerhouse tier.
func NewAccount(parent *Account, role Role, username string) (*Account, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidTierPairing, role)
	}

	var parentID *uuid.UUID
	if parent == nil {
		if role != RolePowerhouse {
			return nil, fmt.Errorf("%w: %s requires a parent", ErrInvalidTierPairing, role)
		}
	} else {
		if !parent.Role.CanParent(role) {
			return nil, fmt.Errorf("%w: %s cannot be created under %s", ErrInvalidTierPairing, role, parent.Role)
		}
		id := parent.ID
		parentID = &id
	}

	now := time.Now().UTC()
	return &Account{
		ID:              uuid.New(),
		Role:            role,
		ParentID:        parentID,
		Username:        username,
		MainBalance:     decimal.Zero,
		BonusBalance:    decimal.Zero,
		ExposureBalance: decimal.Zero,
		ExposureLimit:   decimal.Zero,
		PLBalance:       decimal.Zero,
		Status:          AccountStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsActive returns true if the account is active.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// IsPlayer returns true for accounts on the bottom tier.
func (a *Account) IsPlayer() bool {
	return a.Role == RolePlayer
}

// IsChildOf reports whether parentID is the direct parent of a.
func (a *Account) IsChildOf(parentID uuid.UUID) bool {
	return a.ParentID != nil && *a.ParentID == parentID
}
