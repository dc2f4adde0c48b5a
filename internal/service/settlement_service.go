package service

import (
	"context"
	"fmt"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	hierarchy
	settlements ports.SettlementRepository
	ledger      ports.LedgerService
	balances    ports.BalanceService
	creds       ports.CredentialService
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	accounts ports.AccountRepository,
	settlements ports.SettlementRepository,
	ledger ports.LedgerService,
	balances ports.BalanceService,
	creds ports.CredentialService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		hierarchy:   hierarchy{accounts: accounts},
		settlements: settlements,
		ledger:      ledger,
		balances:    balances,
		creds:       creds,
		transactor:  transactor,
		log:         log,
	}
}

// Settle moves the master's whole pl_balance onto its super's main balance
// and resets the master to zero. A positive P/L credits the super; a
// negative one debits it and fails if the super cannot cover it.
func (s *SettlementServiceImpl) Settle(ctx context.Context, superID, masterID uuid.UUID, pin string) (*domain.SettlementRecord, error) {
	master, err := s.load(ctx, masterID)
	if err != nil {
		return nil, err
	}
	if master.Role != domain.RoleMaster {
		return nil, apperror.Validation("only masters can be settled")
	}
	if !master.IsChildOf(superID) {
		return nil, apperror.ErrForbidden()
	}
	super, err := s.load(ctx, superID)
	if err != nil {
		return nil, err
	}

	if err := s.creds.VerifyPin(ctx, superID, pin); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.lockAccounts(ctx, dbTx, master, super)
	if err != nil {
		return nil, err
	}
	pl := locked[master.ID].PLBalance
	if pl.IsZero() {
		return nil, apperror.ErrNothingToSettle()
	}

	dir := domain.DirectionCredit
	if pl.IsNegative() {
		dir = domain.DirectionDebit
	}
	note := fmt.Sprintf("settlement of master %s", master.Username)
	txn, err := s.ledger.Append(ctx, dbTx, ports.LedgerEntry{
		AccountID:   super.ID,
		Type:        domain.TransactionTypeSettlement,
		Direction:   dir,
		Amount:      pl.Abs(),
		Status:      domain.TransactionStatusApproved,
		InitiatorID: superID,
		Note:        &note,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.balances.AdjustPL(ctx, dbTx, master.ID, pl.Neg()); err != nil {
		return nil, err
	}

	rec := &domain.SettlementRecord{
		ID:            uuid.New(),
		FromMasterID:  master.ID,
		ToSuperID:     super.ID,
		Amount:        pl,
		TransactionID: txn.ID,
		SettledBy:     superID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.settlements.Create(ctx, dbTx, rec); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create settlement: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("settlement_id", rec.ID.String()).
		Str("master_id", master.ID.String()).
		Str("super_id", super.ID.String()).
		Str("amount", rec.Amount.StringFixed(domain.MoneyScale)).
		Msg("master settled")
	return rec, nil
}

// ListSettlements returns the settlements a super received or a master made.
func (s *SettlementServiceImpl) ListSettlements(ctx context.Context, accountID uuid.UUID) ([]domain.SettlementRecord, error) {
	acct, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var recs []domain.SettlementRecord
	switch acct.Role {
	case domain.RoleSuper:
		recs, err = s.settlements.ListBySuper(ctx, acct.ID)
	case domain.RoleMaster:
		recs, err = s.settlements.ListByMaster(ctx, acct.ID)
	default:
		return []domain.SettlementRecord{}, nil
	}
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list settlements: %w", err))
	}
	return recs, nil
}
