package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	s *Store
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(s *Store) *TransactionRepo {
	return &TransactionRepo{s: s}
}

func (r *TransactionRepo) Create(_ context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.Reference != nil {
		for _, existing := range r.s.transactions {
			if existing.Reference != nil && *existing.Reference == *t.Reference {
				return fmt.Errorf("create transaction %s: %w", *t.Reference, ports.ErrDuplicate)
			}
		}
	}
	c := *t
	r.s.seq++
	r.s.transactions[t.ID] = &c
	r.s.txSeq[t.ID] = r.s.seq
	mt.record(func() {
		delete(r.s.transactions, t.ID)
		delete(r.s.txSeq, t.ID)
	})
	return nil
}

func (r *TransactionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *TransactionRepo) MarkProcessed(_ context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.transactions[t.ID]
	if !ok {
		return fmt.Errorf("transaction %s not found", t.ID)
	}
	prev := *cur
	mt.record(func() { r.s.transactions[t.ID] = &prev })

	next := *cur
	next.Status = t.Status
	next.ApproverID = t.ApproverID
	next.RejectReason = t.RejectReason
	next.ProcessedAt = t.ProcessedAt
	r.s.transactions[t.ID] = &next
	return nil
}

// List returns matching transactions newest first.
func (r *TransactionRepo) List(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	accounts := make(map[uuid.UUID]bool, len(params.AccountIDs))
	for _, id := range params.AccountIDs {
		accounts[id] = true
	}

	var result []domain.Transaction
	for _, t := range r.s.transactions {
		if !accounts[t.AccountID] {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		if params.From != nil && t.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && t.CreatedAt.After(*params.To) {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool {
		return r.s.txSeq[result[i].ID] > r.s.txSeq[result[j].ID]
	})
	total := int64(len(result))

	if params.Page < 1 || params.PageSize < 1 {
		return result, total, nil
	}
	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// ListApproved returns the approved history of one account oldest first.
func (r *TransactionRepo) ListApproved(_ context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.s.transactions {
		if t.AccountID == accountID && t.Status == domain.TransactionStatusApproved {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return r.s.txSeq[result[i].ID] < r.s.txSeq[result[j].ID]
	})
	return result, nil
}

func (r *TransactionRepo) GetStats(_ context.Context, accountIDs []uuid.UUID, from *time.Time) ([]ports.TypeTotal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	accounts := make(map[uuid.UUID]bool, len(accountIDs))
	for _, id := range accountIDs {
		accounts[id] = true
	}

	type key struct {
		typ domain.TransactionType
		dir domain.Direction
	}
	totals := map[key]*ports.TypeTotal{}
	for _, t := range r.s.transactions {
		if !accounts[t.AccountID] || t.Status != domain.TransactionStatusApproved {
			continue
		}
		if from != nil && t.CreatedAt.Before(*from) {
			continue
		}
		k := key{t.Type, t.Direction}
		tt, ok := totals[k]
		if !ok {
			tt = &ports.TypeTotal{Type: t.Type, Direction: t.Direction, Amount: decimal.Zero}
			totals[k] = tt
		}
		tt.Count++
		tt.Amount = tt.Amount.Add(t.Amount)
	}

	result := make([]ports.TypeTotal, 0, len(totals))
	for _, tt := range totals {
		result = append(result, *tt)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Type == result[j].Type {
			return result[i].Direction < result[j].Direction
		}
		return result[i].Type < result[j].Type
	})
	return result, nil
}
