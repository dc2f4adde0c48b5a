package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tiered-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentModeColumns = `id, owner_id, type, label, account_name, account_number_enc,
		account_number_masked, active, created_at, updated_at`

// PaymentModeRepo implements ports.PaymentModeRepository.
type PaymentModeRepo struct {
	pool Pool
}

// NewPaymentModeRepo creates a new PaymentModeRepo.
func NewPaymentModeRepo(pool Pool) *PaymentModeRepo {
	return &PaymentModeRepo{pool: pool}
}

// Create inserts a new payment mode. The account number must already be encrypted.
func (r *PaymentModeRepo) Create(ctx context.Context, m *domain.PaymentMode) error {
	query := `INSERT INTO payment_modes (` + paymentModeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.OwnerID, m.Type, m.Label, m.AccountName, m.AccountNumberEnc,
		m.AccountNumberMasked, m.Active, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return mapInsertError("payment mode", err)
	}
	return nil
}

// GetByID fetches a payment mode by UUID.
func (r *PaymentModeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMode, error) {
	query := `SELECT ` + paymentModeColumns + ` FROM payment_modes WHERE id = $1`
	return scanPaymentMode(r.pool.QueryRow(ctx, query, id))
}

// ListByOwner returns a master's payment modes oldest first.
func (r *PaymentModeRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.PaymentMode, error) {
	query := `SELECT ` + paymentModeColumns + ` FROM payment_modes WHERE owner_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list payment modes: %w", err)
	}
	defer rows.Close()

	modes := []domain.PaymentMode{}
	for rows.Next() {
		m, err := scanPaymentMode(rows)
		if err != nil {
			return nil, err
		}
		modes = append(modes, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment mode rows: %w", err)
	}
	return modes, nil
}

// SetActive toggles whether a payment mode can be referenced by new requests.
func (r *PaymentModeRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE payment_modes SET active = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update payment mode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment mode %s not found", id)
	}
	return nil
}

func scanPaymentMode(row pgx.Row) (*domain.PaymentMode, error) {
	m := &domain.PaymentMode{}
	err := row.Scan(
		&m.ID, &m.OwnerID, &m.Type, &m.Label, &m.AccountName, &m.AccountNumberEnc,
		&m.AccountNumberMasked, &m.Active, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment mode: %w", err)
	}
	return m, nil
}
