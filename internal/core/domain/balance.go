package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceSummary is the roll-up view of one account.
type BalanceSummary struct {
	AccountID    uuid.UUID       `json:"account_id"`
	Role         Role            `json:"role"`
	MainBalance  decimal.Decimal `json:"main_balance"`
	BonusBalance decimal.Decimal `json:"bonus_balance"`
	UsersBalance decimal.Decimal `json:"users_balance"`
	PLBalance    decimal.Decimal `json:"pl_balance"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}

// LedgerReplay holds balances recomputed from history alone.
type LedgerReplay struct {
	MainBalance  decimal.Decimal `json:"main_balance"`
	BonusBalance decimal.Decimal `json:"bonus_balance"`
	PLBalance    decimal.Decimal `json:"pl_balance"`
}

// Reconciliation compares the stored projection with a ledger replay.
type Reconciliation struct {
	AccountID  uuid.UUID    `json:"account_id"`
	Projection LedgerReplay `json:"projection"`
	Replay     LedgerReplay `json:"replay"`
	InSync     bool         `json:"in_sync"`
}

// Equal reports whether two replays carry the same balances.
func (r LedgerReplay) Equal(o LedgerReplay) bool {
	return r.MainBalance.Equal(o.MainBalance) &&
		r.BonusBalance.Equal(o.BonusBalance) &&
		r.PLBalance.Equal(o.PLBalance)
}
