package postgres

import (
	"context"
	"fmt"

	"tiered-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PLAdjustmentRepo implements ports.PLAdjustmentRepository.
type PLAdjustmentRepo struct {
	pool Pool
}

// NewPLAdjustmentRepo creates a new PLAdjustmentRepo.
func NewPLAdjustmentRepo(pool Pool) *PLAdjustmentRepo {
	return &PLAdjustmentRepo{pool: pool}
}

// Create inserts an adjustment. round_ref is unique, so a replayed round
// fails with ports.ErrDuplicate.
func (r *PLAdjustmentRepo) Create(ctx context.Context, tx pgx.Tx, adj *domain.PLAdjustment) error {
	query := `INSERT INTO pl_adjustments (id, master_id, player_id, round_ref, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, adj.ID, adj.MasterID, adj.PlayerID, adj.RoundRef, adj.Amount, adj.CreatedAt)
	if err != nil {
		return mapInsertError("pl adjustment", err)
	}
	return nil
}

// ListByMaster returns every adjustment booked against a master, oldest first.
func (r *PLAdjustmentRepo) ListByMaster(ctx context.Context, masterID uuid.UUID) ([]domain.PLAdjustment, error) {
	query := `SELECT id, master_id, player_id, round_ref, amount, created_at
		FROM pl_adjustments WHERE master_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, masterID)
	if err != nil {
		return nil, fmt.Errorf("list pl adjustments: %w", err)
	}
	defer rows.Close()

	adjustments := []domain.PLAdjustment{}
	for rows.Next() {
		var adj domain.PLAdjustment
		if err := rows.Scan(&adj.ID, &adj.MasterID, &adj.PlayerID, &adj.RoundRef, &adj.Amount, &adj.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pl adjustment row: %w", err)
		}
		adjustments = append(adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pl adjustment rows: %w", err)
	}
	return adjustments, nil
}
