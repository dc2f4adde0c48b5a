package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService. Every approved entry is
// applied to the balance projection inside the caller's transaction.
type LedgerServiceImpl struct {
	txRepo   ports.TransactionRepository
	balances ports.BalanceService
	log      zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(txRepo ports.TransactionRepository, balances ports.BalanceService, log zerolog.Logger) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		txRepo:   txRepo,
		balances: balances,
		log:      log,
	}
}

// Append writes a new entry. Entries appended as approved take effect
// immediately; pending entries wait for MarkProcessed.
func (s *LedgerServiceImpl) Append(ctx context.Context, tx pgx.Tx, entry ports.LedgerEntry) (*domain.Transaction, error) {
	amount := domain.NormalizeAmount(entry.Amount)
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !entry.Type.Valid() {
		return nil, apperror.Validation("unknown transaction type")
	}

	dir := entry.Direction
	if fixed, ok := entry.Type.FixedDirection(); ok {
		if dir == "" {
			dir = fixed
		}
		if dir != fixed {
			return nil, apperror.Validation(fmt.Sprintf("%s entries are always %s", entry.Type, fixed))
		}
	}
	if dir != domain.DirectionCredit && dir != domain.DirectionDebit {
		return nil, apperror.Validation("direction must be credit or debit")
	}
	if entry.PaymentModeID != nil && !entry.Type.AcceptsPaymentMode() {
		return nil, apperror.ErrInvalidPaymentMode()
	}

	status := entry.Status
	if status == "" {
		status = domain.TransactionStatusPending
	}
	if status != domain.TransactionStatusPending && status != domain.TransactionStatusApproved {
		return nil, apperror.Validation("entries are appended pending or approved")
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:            uuid.New(),
		AccountID:     entry.AccountID,
		Type:          entry.Type,
		Direction:     dir,
		Amount:        amount,
		Status:        status,
		InitiatorID:   entry.InitiatorID,
		PaymentModeID: entry.PaymentModeID,
		Reference:     entry.Reference,
		Note:          entry.Note,
		CreatedAt:     now,
	}
	if status == domain.TransactionStatusApproved {
		approver := entry.InitiatorID
		txn.ApproverID = &approver
		txn.ProcessedAt = &now
		if _, err := s.balances.Apply(ctx, tx, txn); err != nil {
			return nil, err
		}
	}

	if err := s.txRepo.Create(ctx, tx, txn); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrAlreadyProcessed()
		}
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	s.log.Debug().
		Str("tx_id", txn.ID.String()).
		Str("account_id", txn.AccountID.String()).
		Str("type", string(txn.Type)).
		Str("direction", string(txn.Direction)).
		Str("amount", txn.Amount.StringFixed(domain.MoneyScale)).
		Str("status", string(txn.Status)).
		Msg("ledger entry appended")

	return txn, nil
}

// MarkProcessed moves a pending entry to approved or rejected under a row
// lock. Approval applies the balance effect in the same transaction.
func (s *LedgerServiceImpl) MarkProcessed(
	ctx context.Context,
	tx pgx.Tx,
	transactionID uuid.UUID,
	status domain.TransactionStatus,
	approverID uuid.UUID,
	rejectReason *string,
) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}

	if err := txn.Transition(status, approverID, rejectReason, time.Now().UTC()); err != nil {
		if errors.Is(err, domain.ErrNotPending) {
			return nil, apperror.ErrAlreadyProcessed()
		}
		return nil, apperror.Validation(err.Error())
	}

	if status == domain.TransactionStatusApproved {
		if _, err := s.balances.Apply(ctx, tx, txn); err != nil {
			return nil, err
		}
	}

	if err := s.txRepo.MarkProcessed(ctx, tx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark processed: %w", err))
	}
	return txn, nil
}

// ListForAccount returns one account's entries newest first.
func (s *LedgerServiceImpl) ListForAccount(ctx context.Context, accountID uuid.UUID, filter ports.TransactionFilter) ([]domain.Transaction, int64, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)
	txns, total, err := s.txRepo.List(ctx, ports.TransactionListParams{
		AccountIDs: []uuid.UUID{accountID},
		Status:     filter.Status,
		Type:       filter.Type,
		From:       filter.From,
		To:         filter.To,
		Page:       page,
		PageSize:   size,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return txns, total, nil
}
