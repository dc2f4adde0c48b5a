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

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	s *Store
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(s *Store) *AccountRepo {
	return &AccountRepo{s: s}
}

func (r *AccountRepo) Create(_ context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.accounts {
		if existing.Username == a.Username {
			return fmt.Errorf("create account %s: %w", a.Username, ports.ErrDuplicate)
		}
	}
	c := *a
	r.s.accounts[a.ID] = &c
	return nil
}

func (r *AccountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (r *AccountRepo) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if a.Username == username {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *AccountRepo) ListChildren(_ context.Context, parentID uuid.UUID) ([]domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.childrenLocked(parentID), nil
}

// ListDescendants walks the subtree breadth-first and keeps accounts of role.
func (r *AccountRepo) ListDescendants(_ context.Context, rootID uuid.UUID, role domain.Role) ([]domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Account
	queue := []uuid.UUID{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range r.childrenLocked(id) {
			if child.Role == role {
				result = append(result, child)
			}
			if child.Role.Above(role) {
				queue = append(queue, child.ID)
			}
		}
	}
	return result, nil
}

func (r *AccountRepo) childrenLocked(parentID uuid.UUID) []domain.Account {
	var out []domain.Account
	for _, a := range r.s.accounts {
		if a.IsChildOf(parentID) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Username < out[j].Username
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *AccountRepo) UpdateBalances(_ context.Context, tx pgx.Tx, a *domain.Account) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.accounts[a.ID]
	if !ok {
		return fmt.Errorf("account %s not found", a.ID)
	}
	prev := *cur
	// Only the balance columns are restored; credential and status writes
	// made outside the transaction survive a rollback.
	mt.record(func() {
		now, ok := r.s.accounts[a.ID]
		if !ok {
			return
		}
		restored := *now
		restored.MainBalance = prev.MainBalance
		restored.BonusBalance = prev.BonusBalance
		restored.ExposureBalance = prev.ExposureBalance
		restored.PLBalance = prev.PLBalance
		restored.UpdatedAt = prev.UpdatedAt
		r.s.accounts[a.ID] = &restored
	})

	next := *cur
	next.MainBalance = a.MainBalance
	next.BonusBalance = a.BonusBalance
	next.ExposureBalance = a.ExposureBalance
	next.PLBalance = a.PLBalance
	next.UpdatedAt = time.Now().UTC()
	r.s.accounts[a.ID] = &next
	return nil
}

func (r *AccountRepo) update(id uuid.UUID, fn func(a *domain.Account)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}
	next := *cur
	fn(&next)
	next.UpdatedAt = time.Now().UTC()
	r.s.accounts[id] = &next
	return nil
}

func (r *AccountRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	return r.update(id, func(a *domain.Account) { a.PasswordHash = hash })
}

func (r *AccountRepo) UpdatePinHash(_ context.Context, id uuid.UUID, hash string) error {
	return r.update(id, func(a *domain.Account) { a.PinHash = hash })
}

func (r *AccountRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.AccountStatus) error {
	return r.update(id, func(a *domain.Account) { a.Status = status })
}

func (r *AccountRepo) UpdateExposureLimit(_ context.Context, id uuid.UUID, limit decimal.Decimal) error {
	return r.update(id, func(a *domain.Account) { a.ExposureLimit = limit })
}
