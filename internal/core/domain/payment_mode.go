package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentModeType is the kind of destination a payment mode points to.
type PaymentModeType string

const (
	PaymentModeEWallet PaymentModeType = "ewallet"
	PaymentModeBank    PaymentModeType = "bank"
)

// PaymentMode is a master-owned deposit/withdrawal destination. The raw
// account number is stored encrypted and never leaves the service.
type PaymentMode struct {
	ID                  uuid.UUID       `json:"id"`
	OwnerID             uuid.UUID       `json:"owner_id"`
	Type                PaymentModeType `json:"type"`
	Label               string          `json:"label"`
	AccountName         string          `json:"account_name"`
	AccountNumberEnc    string          `json:"-"`
	AccountNumberMasked string          `json:"account_number"`
	Active              bool            `json:"active"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// MaskAccountNumber keeps the last four characters and stars out the rest.
func MaskAccountNumber(number string) string {
	n := strings.TrimSpace(number)
	if len(n) <= 4 {
		return strings.Repeat("*", len(n))
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}

// Valid reports whether t is a known payment mode type.
func (t PaymentModeType) Valid() bool {
	return t == PaymentModeEWallet || t == PaymentModeBank
}
