package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tiered-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, role, parent_id, username, password_hash, pin_hash,
		main_balance, bonus_balance, exposure_balance, exposure_limit, pl_balance,
		status, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Role, a.ParentID, a.Username, a.PasswordHash, a.PinHash,
		a.MainBalance, a.BonusBalance, a.ExposureBalance, a.ExposureLimit, a.PLBalance,
		a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return mapInsertError("account", err)
	}
	return nil
}

// GetByID fetches an account by its UUID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

// GetByUsername fetches an account by username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, username))
}

// GetByIDForUpdate fetches an account with SELECT ... FOR UPDATE (pessimistic lock).
// Must be called within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(tx.QueryRow(ctx, query, id))
}

// ListChildren returns the direct children of parentID.
func (r *AccountRepo) ListChildren(ctx context.Context, parentID uuid.UUID) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE parent_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return collectAccounts(rows)
}

// ListDescendants walks the tree below rootID and returns the accounts of role.
func (r *AccountRepo) ListDescendants(ctx context.Context, rootID uuid.UUID, role domain.Role) ([]domain.Account, error) {
	query := `WITH RECURSIVE tree AS (
			SELECT ` + accountColumns + ` FROM accounts WHERE parent_id = $1
			UNION ALL
			SELECT a.id, a.role, a.parent_id, a.username, a.password_hash, a.pin_hash,
				a.main_balance, a.bonus_balance, a.exposure_balance, a.exposure_limit, a.pl_balance,
				a.status, a.created_at, a.updated_at
			FROM accounts a JOIN tree t ON a.parent_id = t.id
		)
		SELECT ` + accountColumns + ` FROM tree WHERE role = $2 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, rootID, role)
	if err != nil {
		return nil, fmt.Errorf("list descendants: %w", err)
	}
	return collectAccounts(rows)
}

// UpdateBalances writes the balance projection of a locked account.
func (r *AccountRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	query := `UPDATE accounts SET main_balance = $1, bonus_balance = $2, exposure_balance = $3,
		pl_balance = $4, updated_at = $5 WHERE id = $6`

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, query, a.MainBalance, a.BonusBalance, a.ExposureBalance, a.PLBalance, now, a.ID)
	if err != nil {
		return fmt.Errorf("update balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", a.ID)
	}
	a.UpdatedAt = now
	return nil
}

// UpdatePasswordHash replaces the password hash.
func (r *AccountRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.updateField(ctx, "password_hash", id, hash)
}

// UpdatePinHash replaces the PIN hash.
func (r *AccountRepo) UpdatePinHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.updateField(ctx, "pin_hash", id, hash)
}

// UpdateStatus activates or deactivates an account.
func (r *AccountRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus) error {
	return r.updateField(ctx, "status", id, status)
}

// UpdateExposureLimit sets a player's exposure limit.
func (r *AccountRepo) UpdateExposureLimit(ctx context.Context, id uuid.UUID, limit decimal.Decimal) error {
	return r.updateField(ctx, "exposure_limit", id, limit)
}

// updateField sets one non-balance column. column is never user input.
func (r *AccountRepo) updateField(ctx context.Context, column string, id uuid.UUID, value any) error {
	query := fmt.Sprintf(`UPDATE accounts SET %s = $1, updated_at = $2 WHERE id = $3`, column)

	tag, err := r.pool.Exec(ctx, query, value, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

func collectAccounts(rows pgx.Rows) ([]domain.Account, error) {
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}
	return accounts, nil
}

// scanAccount is a helper to scan a single row into an Account.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID, &a.Role, &a.ParentID, &a.Username, &a.PasswordHash, &a.PinHash,
		&a.MainBalance, &a.BonusBalance, &a.ExposureBalance, &a.ExposureLimit, &a.PLBalance,
		&a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}
