package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, account_id, type, direction, amount, status, initiator_id, approver_id,
		payment_mode_id, reject_reason, reference, note, created_at, processed_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.AccountID, t.Type, t.Direction, t.Amount, t.Status,
		t.InitiatorID, t.ApproverID, t.PaymentModeID, t.RejectReason,
		t.Reference, t.Note, t.CreatedAt, t.ProcessedAt,
	)
	if err != nil {
		return mapInsertError("transaction", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks a transaction row so concurrent approvals serialize on it.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, query, id))
}

// MarkProcessed persists the terminal status of a pending transaction.
// The status guard keeps a processed row from being written twice.
func (r *TransactionRepo) MarkProcessed(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `UPDATE transactions SET status = $1, approver_id = $2, reject_reason = $3, processed_at = $4
		WHERE id = $5 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, t.Status, t.ApproverID, t.RejectReason, t.ProcessedAt, t.ID)
	if err != nil {
		return fmt.Errorf("mark transaction processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pending transaction not found: %s", t.ID)
	}
	return nil
}

// List fetches transactions with filtering and pagination, newest first.
// A page or page size below 1 returns every match.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("account_id = ANY($%d)", argIdx))
	args = append(args, params.AccountIDs)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC, id DESC`, transactionColumns, where)
	if params.Page >= 1 && params.PageSize >= 1 {
		dataQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, params.PageSize, (params.Page-1)*params.PageSize)
	}

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListApproved returns the approved history of one account oldest first.
func (r *TransactionRepo) ListApproved(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE account_id = $1 AND status = 'approved' ORDER BY processed_at, created_at, id`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list approved transactions: %w", err)
	}
	return collectTransactions(rows)
}

// GetStats sums approved entries per type and direction.
func (r *TransactionRepo) GetStats(ctx context.Context, accountIDs []uuid.UUID, from *time.Time) ([]ports.TypeTotal, error) {
	args := []any{accountIDs}
	condition := "account_id = ANY($1) AND status = 'approved'"
	if from != nil {
		condition += " AND created_at >= $2"
		args = append(args, *from)
	}

	query := fmt.Sprintf(`SELECT type, direction, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount
		FROM transactions WHERE %s
		GROUP BY type, direction ORDER BY type, direction`, condition)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get transaction stats: %w", err)
	}
	defer rows.Close()

	totals := []ports.TypeTotal{}
	for rows.Next() {
		var tt ports.TypeTotal
		if err := rows.Scan(&tt.Type, &tt.Direction, &tt.Count, &tt.Amount); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		totals = append(totals, tt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}
	return totals, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// scanTransaction is a helper to scan a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.AccountID, &t.Type, &t.Direction, &t.Amount, &t.Status,
		&t.InitiatorID, &t.ApproverID, &t.PaymentModeID, &t.RejectReason,
		&t.Reference, &t.Note, &t.CreatedAt, &t.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
