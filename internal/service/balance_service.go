package service

import (
	"context"
	"fmt"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BalanceServiceImpl implements ports.BalanceService. The stored balances
// are a projection of the ledger, written in the same database transaction
// as the entry that causes them; Replay recomputes them from history.
type BalanceServiceImpl struct {
	hierarchy
	txRepo      ports.TransactionRepository
	adjustments ports.PLAdjustmentRepository
	settlements ports.SettlementRepository
	log         zerolog.Logger
}

// NewBalanceService creates a new BalanceServiceImpl.
func NewBalanceService(
	accounts ports.AccountRepository,
	txRepo ports.TransactionRepository,
	adjustments ports.PLAdjustmentRepository,
	settlements ports.SettlementRepository,
	log zerolog.Logger,
) *BalanceServiceImpl {
	return &BalanceServiceImpl{
		hierarchy:   hierarchy{accounts: accounts},
		txRepo:      txRepo,
		adjustments: adjustments,
		settlements: settlements,
		log:         log,
	}
}

// mutate locks the account row, applies fn and writes the projection back.
func (s *BalanceServiceImpl) mutate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, fn func(a *domain.Account) error) (*domain.Account, error) {
	acct, err := s.accounts.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if acct == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if err := fn(acct); err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateBalances(ctx, tx, acct); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	return acct, nil
}

// ApplyDeposit credits main_balance.
func (s *BalanceServiceImpl) ApplyDeposit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	return s.mutate(ctx, tx, accountID, func(a *domain.Account) error {
		a.MainBalance = a.MainBalance.Add(amount)
		return nil
	})
}

// ApplyWithdrawal debits main_balance, checked against the locked row.
// Bonus funds never count towards the available amount.
func (s *BalanceServiceImpl) ApplyWithdrawal(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	return s.mutate(ctx, tx, accountID, func(a *domain.Account) error {
		if a.MainBalance.LessThan(amount) {
			return apperror.ErrInsufficientFunds()
		}
		a.MainBalance = a.MainBalance.Sub(amount)
		return nil
	})
}

// ApplyBonus credits a player's bonus_balance.
func (s *BalanceServiceImpl) ApplyBonus(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	return s.mutate(ctx, tx, accountID, func(a *domain.Account) error {
		if !a.IsPlayer() {
			return apperror.Validation("bonus applies to players only")
		}
		a.BonusBalance = a.BonusBalance.Add(amount)
		return nil
	})
}

// AdjustPL adds a signed amount to a master's pl_balance.
func (s *BalanceServiceImpl) AdjustPL(ctx context.Context, tx pgx.Tx, masterID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	return s.mutate(ctx, tx, masterID, func(a *domain.Account) error {
		if a.Role != domain.RoleMaster {
			return apperror.Validation("P/L is tracked on masters only")
		}
		a.PLBalance = a.PLBalance.Add(amount)
		return nil
	})
}

// Apply routes an approved ledger entry to the balance it affects.
func (s *BalanceServiceImpl) Apply(ctx context.Context, tx pgx.Tx, t *domain.Transaction) (*domain.Account, error) {
	switch {
	case t.AffectsBonus():
		return s.ApplyBonus(ctx, tx, t.AccountID, t.Amount)
	case t.Direction == domain.DirectionCredit:
		return s.ApplyDeposit(ctx, tx, t.AccountID, t.Amount)
	case t.Direction == domain.DirectionDebit:
		return s.ApplyWithdrawal(ctx, tx, t.AccountID, t.Amount)
	}
	return nil, apperror.InternalError(fmt.Errorf("transaction %s has no direction", t.ID))
}

// Rollup computes the dashboard figures of one account without locks.
func (s *BalanceServiceImpl) Rollup(ctx context.Context, accountID uuid.UUID) (*domain.BalanceSummary, error) {
	acct, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	users, err := s.usersBalance(ctx, acct)
	if err != nil {
		return nil, err
	}

	total := acct.MainBalance.Add(users)
	if acct.IsPlayer() {
		total = acct.MainBalance.Add(acct.BonusBalance)
	}

	return &domain.BalanceSummary{
		AccountID:    acct.ID,
		Role:         acct.Role,
		MainBalance:  acct.MainBalance,
		BonusBalance: acct.BonusBalance,
		UsersBalance: users,
		PLBalance:    acct.PLBalance,
		TotalBalance: total,
	}, nil
}

// usersBalance aggregates one level per tier: each child contributes its own
// main balance plus the users balance it reports, so nothing is counted twice.
func (s *BalanceServiceImpl) usersBalance(ctx context.Context, acct *domain.Account) (decimal.Decimal, error) {
	if acct.IsPlayer() {
		return decimal.Zero, nil
	}
	children, err := s.accounts.ListChildren(ctx, acct.ID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("list children: %w", err))
	}

	sum := decimal.Zero
	for i := range children {
		child := &children[i]
		sub, err := s.usersBalance(ctx, child)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(child.MainBalance).Add(sub)
	}
	return sum, nil
}

// Replay recomputes balances from approved entries, P/L adjustments and settlements.
func (s *BalanceServiceImpl) Replay(ctx context.Context, accountID uuid.UUID) (*domain.LedgerReplay, error) {
	acct, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	txns, err := s.txRepo.ListApproved(ctx, acct.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list approved: %w", err))
	}

	r := &domain.LedgerReplay{MainBalance: decimal.Zero, BonusBalance: decimal.Zero, PLBalance: decimal.Zero}
	for i := range txns {
		t := &txns[i]
		if t.AffectsBonus() {
			r.BonusBalance = r.BonusBalance.Add(t.SignedAmount())
		} else {
			r.MainBalance = r.MainBalance.Add(t.SignedAmount())
		}
	}

	if acct.Role == domain.RoleMaster {
		adjs, err := s.adjustments.ListByMaster(ctx, acct.ID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("list adjustments: %w", err))
		}
		for _, adj := range adjs {
			r.PLBalance = r.PLBalance.Add(adj.Amount)
		}
		recs, err := s.settlements.ListByMaster(ctx, acct.ID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("list settlements: %w", err))
		}
		for _, rec := range recs {
			r.PLBalance = r.PLBalance.Sub(rec.Amount)
		}
	}
	return r, nil
}

// Reconcile compares the stored projection with a fresh replay.
func (s *BalanceServiceImpl) Reconcile(ctx context.Context, accountID uuid.UUID) (*domain.Reconciliation, error) {
	acct, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	replay, err := s.Replay(ctx, accountID)
	if err != nil {
		return nil, err
	}

	projection := domain.LedgerReplay{
		MainBalance:  acct.MainBalance,
		BonusBalance: acct.BonusBalance,
		PLBalance:    acct.PLBalance,
	}
	rec := &domain.Reconciliation{
		AccountID:  acct.ID,
		Projection: projection,
		Replay:     *replay,
		InSync:     projection.Equal(*replay),
	}
	if !rec.InSync {
		s.log.Warn().
			Str("account_id", acct.ID.String()).
			Str("projected_main", projection.MainBalance.String()).
			Str("replayed_main", replay.MainBalance.String()).
			Str("projected_pl", projection.PLBalance.String()).
			Str("replayed_pl", replay.PLBalance.String()).
			Msg("balance projection drifted from ledger")
	}
	return rec, nil
}
