package ports

import (
	"context"
	"errors"
	"time"

	"tiered-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned by repositories when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]domain.Account, error)
	ListDescendants(ctx context.Context, rootID uuid.UUID, role domain.Role) ([]domain.Account, error)
	// UpdateBalances persists every balance field of the account and bumps updated_at.
	UpdateBalances(ctx context.Context, tx pgx.Tx, account *domain.Account) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	UpdatePinHash(ctx context.Context, id uuid.UUID, hash string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus) error
	UpdateExposureLimit(ctx context.Context, id uuid.UUID, limit decimal.Decimal) error
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	// MarkProcessed writes status, approver, reject reason and processed_at.
	MarkProcessed(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	ListApproved(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
	GetStats(ctx context.Context, accountIDs []uuid.UUID, from *time.Time) ([]TypeTotal, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	AccountIDs []uuid.UUID
	Status     *domain.TransactionStatus
	Type       *domain.TransactionType
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// TypeTotal is the approved volume of one transaction type and direction.
type TypeTotal struct {
	Type      domain.TransactionType `json:"type"`
	Direction domain.Direction       `json:"direction"`
	Count     int64                  `json:"count"`
	Amount    decimal.Decimal        `json:"amount"`
}

// PaymentModeRepository defines persistence for master payment modes.
type PaymentModeRepository interface {
	Create(ctx context.Context, mode *domain.PaymentMode) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMode, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.PaymentMode, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// SettlementRepository persists settlement records.
type SettlementRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.SettlementRecord) error
	ListByMaster(ctx context.Context, masterID uuid.UUID) ([]domain.SettlementRecord, error)
	ListBySuper(ctx context.Context, superID uuid.UUID) ([]domain.SettlementRecord, error)
}

// PLAdjustmentRepository persists game-driven P/L changes.
type PLAdjustmentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, adj *domain.PLAdjustment) error
	ListByMaster(ctx context.Context, masterID uuid.UUID) ([]domain.PLAdjustment, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit records.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
