package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementRecord captures a master's P/L being moved to its super.
// Amount is signed: positive credits the super, negative debits it.
type SettlementRecord struct {
	ID            uuid.UUID       `json:"id"`
	FromMasterID  uuid.UUID       `json:"from_master_id"`
	ToSuperID     uuid.UUID       `json:"to_super_id"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	SettledBy     uuid.UUID       `json:"settled_by"`
	CreatedAt     time.Time       `json:"created_at"`
}
