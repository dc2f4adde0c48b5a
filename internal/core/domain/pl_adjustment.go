package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PLAdjustment is one signed change to a master's pl_balance caused by a
// game round of one of its players. Amount is from the house side: a
// player loss is a positive adjustment.
type PLAdjustment struct {
	ID        uuid.UUID       `json:"id"`
	MasterID  uuid.UUID       `json:"master_id"`
	PlayerID  uuid.UUID       `json:"player_id"`
	RoundRef  string          `json:"round_ref"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
