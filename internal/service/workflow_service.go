package service

import (
	"context"
	"fmt"
	"strings"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WorkflowServiceImpl implements ports.WorkflowService.
//
// Every mutating path verifies credentials before it opens a database
// transaction, so a failed PIN never leaves a ledger row behind.
type WorkflowServiceImpl struct {
	hierarchy
	paymentModes ports.PaymentModeRepository
	txRepo       ports.TransactionRepository
	ledger       ports.LedgerService
	creds        ports.CredentialService
	transactor   ports.DBTransactor
	log          zerolog.Logger
}

// NewWorkflowService creates a new WorkflowServiceImpl.
func NewWorkflowService(
	accounts ports.AccountRepository,
	paymentModes ports.PaymentModeRepository,
	txRepo ports.TransactionRepository,
	ledger ports.LedgerService,
	creds ports.CredentialService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WorkflowServiceImpl {
	return &WorkflowServiceImpl{
		hierarchy:    hierarchy{accounts: accounts},
		paymentModes: paymentModes,
		txRepo:       txRepo,
		ledger:       ledger,
		creds:        creds,
		transactor:   transactor,
		log:          log,
	}
}

// CreateDeposit queues a deposit for the account's ancestors to approve.
func (s *WorkflowServiceImpl) CreateDeposit(ctx context.Context, in ports.RequestInput) (*domain.Transaction, error) {
	return s.createRequest(ctx, domain.TransactionTypeDeposit, in)
}

// CreateWithdrawal queues a withdrawal. Funds are checked here and again
// when the request is approved.
func (s *WorkflowServiceImpl) CreateWithdrawal(ctx context.Context, in ports.RequestInput) (*domain.Transaction, error) {
	return s.createRequest(ctx, domain.TransactionTypeWithdrawal, in)
}

func (s *WorkflowServiceImpl) createRequest(ctx context.Context, txType domain.TransactionType, in ports.RequestInput) (*domain.Transaction, error) {
	amount := domain.NormalizeAmount(in.Amount)
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	acct, err := s.load(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSelfOrAncestor(ctx, in.InitiatorID, acct); err != nil {
		return nil, err
	}
	if !acct.IsActive() {
		return nil, apperror.ErrAccountInactive()
	}
	if err := s.checkPaymentMode(ctx, acct, in.PaymentModeID); err != nil {
		return nil, err
	}
	if txType == domain.TransactionTypeWithdrawal && acct.MainBalance.LessThan(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.ledger.Append(ctx, dbTx, ports.LedgerEntry{
		AccountID:     acct.ID,
		Type:          txType,
		Amount:        amount,
		Status:        domain.TransactionStatusPending,
		InitiatorID:   in.InitiatorID,
		PaymentModeID: in.PaymentModeID,
		Note:          in.Note,
	})
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("type", string(txType)).
		Str("account_id", acct.ID.String()).
		Str("initiator_id", in.InitiatorID.String()).
		Str("amount", txn.Amount.StringFixed(domain.MoneyScale)).
		Msg("request queued")
	return txn, nil
}

// Approve applies a pending request. The approver must be a strict ancestor
// of the account and prove it with a PIN or password.
func (s *WorkflowServiceImpl) Approve(ctx context.Context, in ports.DecisionInput) (*domain.Transaction, error) {
	pending, acct, err := s.loadRequest(ctx, in.ApproverID, in.TransactionID, in.Type)
	if err != nil {
		return nil, err
	}
	if !pending.IsPending() {
		return nil, apperror.ErrAlreadyProcessed()
	}
	// Requests queued before a deactivation stay pending; they can still be rejected.
	if !acct.IsActive() {
		return nil, apperror.ErrAccountInactive()
	}
	if err := s.creds.Verify(ctx, in.ApproverID, in.Credential); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.ledger.MarkProcessed(ctx, dbTx, pending.ID, domain.TransactionStatusApproved, in.ApproverID, nil)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("type", string(txn.Type)).
		Str("account_id", acct.ID.String()).
		Str("approver_id", in.ApproverID.String()).
		Msg("request approved")
	return txn, nil
}

// Reject closes a pending request without touching balances.
func (s *WorkflowServiceImpl) Reject(ctx context.Context, approverID, transactionID uuid.UUID, txType domain.TransactionType, reason string) (*domain.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("reject reason is required")
	}

	pending, _, err := s.loadRequest(ctx, approverID, transactionID, txType)
	if err != nil {
		return nil, err
	}
	if !pending.IsPending() {
		return nil, apperror.ErrAlreadyProcessed()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.ledger.MarkProcessed(ctx, dbTx, pending.ID, domain.TransactionStatusRejected, approverID, &reason)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("approver_id", approverID.String()).
		Str("reason", reason).
		Msg("request rejected")
	return txn, nil
}

// loadRequest resolves a queued request and checks that approverID sits
// above its account.
func (s *WorkflowServiceImpl) loadRequest(ctx context.Context, approverID, transactionID uuid.UUID, txType domain.TransactionType) (*domain.Transaction, *domain.Account, error) {
	txn, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, nil, apperror.ErrNotFound("transaction")
	}
	if txn.Type != txType {
		return nil, nil, apperror.ErrWrongTransactionType()
	}

	acct, err := s.load(ctx, txn.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireAncestor(ctx, approverID, acct); err != nil {
		return nil, nil, err
	}
	return txn, acct, nil
}

// DirectDeposit credits the account immediately.
func (s *WorkflowServiceImpl) DirectDeposit(ctx context.Context, in ports.DirectInput) (*domain.Transaction, error) {
	return s.direct(ctx, domain.TransactionTypeDeposit, in, nil)
}

// DirectWithdraw debits the account immediately.
func (s *WorkflowServiceImpl) DirectWithdraw(ctx context.Context, in ports.DirectInput) (*domain.Transaction, error) {
	return s.direct(ctx, domain.TransactionTypeWithdrawal, in, nil)
}

// DirectBonus credits a player's bonus balance.
func (s *WorkflowServiceImpl) DirectBonus(ctx context.Context, in ports.DirectInput) (*domain.Transaction, error) {
	return s.direct(ctx, domain.TransactionTypeBonus, in, func(a *domain.Account) error {
		if !a.IsPlayer() {
			return apperror.Validation("bonuses can only be given to players")
		}
		return nil
	})
}

// DirectCommission credits a master's or super's main balance.
func (s *WorkflowServiceImpl) DirectCommission(ctx context.Context, in ports.DirectInput) (*domain.Transaction, error) {
	return s.direct(ctx, domain.TransactionTypeCommission, in, func(a *domain.Account) error {
		if a.Role != domain.RoleMaster && a.Role != domain.RoleSuper {
			return apperror.Validation("commissions can only be paid to masters and supers")
		}
		return nil
	})
}

func (s *WorkflowServiceImpl) direct(ctx context.Context, txType domain.TransactionType, in ports.DirectInput, check func(*domain.Account) error) (*domain.Transaction, error) {
	amount := domain.NormalizeAmount(in.Amount)
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	acct, err := s.load(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAncestor(ctx, in.InitiatorID, acct); err != nil {
		return nil, err
	}
	if !acct.IsActive() {
		return nil, apperror.ErrAccountInactive()
	}
	if check != nil {
		if err := check(acct); err != nil {
			return nil, err
		}
	}
	if in.PaymentModeID != nil && !txType.AcceptsPaymentMode() {
		return nil, apperror.ErrInvalidPaymentMode()
	}
	if err := s.checkPaymentMode(ctx, acct, in.PaymentModeID); err != nil {
		return nil, err
	}

	if err := s.creds.VerifyPin(ctx, in.InitiatorID, in.Pin); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.ledger.Append(ctx, dbTx, ports.LedgerEntry{
		AccountID:     acct.ID,
		Type:          txType,
		Amount:        amount,
		Status:        domain.TransactionStatusApproved,
		InitiatorID:   in.InitiatorID,
		PaymentModeID: in.PaymentModeID,
		Note:          in.Note,
	})
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("type", string(txType)).
		Str("account_id", acct.ID.String()).
		Str("initiator_id", in.InitiatorID.String()).
		Str("amount", txn.Amount.StringFixed(domain.MoneyScale)).
		Msg("direct transaction applied")
	return txn, nil
}

// checkPaymentMode accepts a mode only when it is active and owned by the
// master responsible for acct: the account itself for masters, its parent
// for players.
func (s *WorkflowServiceImpl) checkPaymentMode(ctx context.Context, acct *domain.Account, modeID *uuid.UUID) error {
	if modeID == nil {
		return nil
	}

	var ownerID uuid.UUID
	switch {
	case acct.Role == domain.RoleMaster:
		ownerID = acct.ID
	case acct.IsPlayer() && acct.ParentID != nil:
		ownerID = *acct.ParentID
	default:
		return apperror.ErrInvalidPaymentMode()
	}

	mode, err := s.paymentModes.GetByID(ctx, *modeID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get payment mode: %w", err))
	}
	if mode == nil || !mode.Active || mode.OwnerID != ownerID {
		return apperror.ErrInvalidPaymentMode()
	}
	return nil
}

// ListRequests lists entries of txType on the actor's whole subtree.
func (s *WorkflowServiceImpl) ListRequests(ctx context.Context, actorID uuid.UUID, txType domain.TransactionType, filter ports.TransactionFilter) ([]domain.Transaction, int64, error) {
	actor, err := s.load(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	ids, err := s.subtreeIDs(ctx, actor)
	if err != nil {
		return nil, 0, err
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	txns, total, err := s.txRepo.List(ctx, ports.TransactionListParams{
		AccountIDs: ids,
		Status:     filter.Status,
		Type:       &txType,
		From:       filter.From,
		To:         filter.To,
		Page:       page,
		PageSize:   size,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list requests: %w", err))
	}
	return txns, total, nil
}
