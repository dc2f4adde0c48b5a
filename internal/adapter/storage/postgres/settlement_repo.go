package postgres

import (
	"context"
	"fmt"

	"tiered-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// Create inserts a settlement record within the settling transaction.
func (r *SettlementRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.SettlementRecord) error {
	query := `INSERT INTO settlements (id, from_master_id, to_super_id, amount, transaction_id, settled_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		rec.ID, rec.FromMasterID, rec.ToSuperID, rec.Amount, rec.TransactionID, rec.SettledBy, rec.CreatedAt,
	)
	if err != nil {
		return mapInsertError("settlement", err)
	}
	return nil
}

// ListByMaster returns the settlements a master has paid out, oldest first.
func (r *SettlementRepo) ListByMaster(ctx context.Context, masterID uuid.UUID) ([]domain.SettlementRecord, error) {
	return r.list(ctx, "from_master_id", masterID)
}

// ListBySuper returns the settlements a super has received, oldest first.
func (r *SettlementRepo) ListBySuper(ctx context.Context, superID uuid.UUID) ([]domain.SettlementRecord, error) {
	return r.list(ctx, "to_super_id", superID)
}

func (r *SettlementRepo) list(ctx context.Context, column string, id uuid.UUID) ([]domain.SettlementRecord, error) {
	query := fmt.Sprintf(`SELECT id, from_master_id, to_super_id, amount, transaction_id, settled_by, created_at
		FROM settlements WHERE %s = $1 ORDER BY created_at, id`, column)

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	records := []domain.SettlementRecord{}
	for rows.Next() {
		var rec domain.SettlementRecord
		if err := rows.Scan(
			&rec.ID, &rec.FromMasterID, &rec.ToSuperID, &rec.Amount, &rec.TransactionID, &rec.SettledBy, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan settlement row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}
	return records, nil
}
