package service

import (
	"context"
	"fmt"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	hierarchy
	txRepo   ports.TransactionRepository
	balances ports.BalanceService
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	accounts ports.AccountRepository,
	txRepo ports.TransactionRepository,
	balances ports.BalanceService,
) ports.ReportingService {
	return &reportingService{
		hierarchy: hierarchy{accounts: accounts},
		txRepo:    txRepo,
		balances:  balances,
	}
}

// periodStart maps a report period to the earliest creation time it covers.
func periodStart(period string, now time.Time) (*time.Time, error) {
	var t time.Time
	switch period {
	case "day":
		t = now.AddDate(0, 0, -1)
	case "week":
		t = now.AddDate(0, 0, -7)
	case "month":
		t = now.AddDate(0, -1, 0)
	case "all", "":
		return nil, nil
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}
	return &t, nil
}

// GetAccountingReport returns the actor's roll-up and the approved totals
// of its whole subtree for the period.
func (s *reportingService) GetAccountingReport(ctx context.Context, actorID uuid.UUID, period string) (*ports.AccountingReport, error) {
	from, err := periodStart(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = "all"
	}

	actor, err := s.load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	summary, err := s.balances.Rollup(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	ids, err := s.subtreeIDs(ctx, actor)
	if err != nil {
		return nil, err
	}

	totals, err := s.txRepo.GetStats(ctx, ids, from)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get stats: %w", err))
	}
	if totals == nil {
		totals = []ports.TypeTotal{}
	}

	deposits, err := s.countPending(ctx, ids, domain.TransactionTypeDeposit)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.countPending(ctx, ids, domain.TransactionTypeWithdrawal)
	if err != nil {
		return nil, err
	}

	return &ports.AccountingReport{
		Balance:            summary,
		Period:             period,
		Totals:             totals,
		PendingDeposits:    deposits,
		PendingWithdrawals: withdrawals,
	}, nil
}

func (s *reportingService) countPending(ctx context.Context, ids []uuid.UUID, txType domain.TransactionType) (int64, error) {
	status := domain.TransactionStatusPending
	_, total, err := s.txRepo.List(ctx, ports.TransactionListParams{
		AccountIDs: ids,
		Status:     &status,
		Type:       &txType,
		Page:       1,
		PageSize:   1,
	})
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("count pending %s: %w", txType, err))
	}
	return total, nil
}
