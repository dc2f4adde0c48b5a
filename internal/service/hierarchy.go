package service

import (
	"context"
	"fmt"
	"sort"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// hierarchy answers tree questions every service needs.
type hierarchy struct {
	accounts ports.AccountRepository
}

// load fetches an account, mapping a missing row to NotFound.
func (h hierarchy) load(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := h.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if a == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return a, nil
}

// isAncestor reports whether ancestorID sits strictly above account.
func (h hierarchy) isAncestor(ctx context.Context, ancestorID uuid.UUID, account *domain.Account) (bool, error) {
	cur := account
	for cur.ParentID != nil {
		if *cur.ParentID == ancestorID {
			return true, nil
		}
		parent, err := h.accounts.GetByID(ctx, *cur.ParentID)
		if err != nil {
			return false, apperror.InternalError(fmt.Errorf("get parent: %w", err))
		}
		if parent == nil {
			return false, nil
		}
		cur = parent
	}
	return false, nil
}

// requireAncestor fails with Forbidden unless actorID is a strict ancestor.
func (h hierarchy) requireAncestor(ctx context.Context, actorID uuid.UUID, account *domain.Account) error {
	ok, err := h.isAncestor(ctx, actorID, account)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrForbidden()
	}
	return nil
}

// requireSelfOrAncestor fails with Forbidden unless actorID is the account or above it.
func (h hierarchy) requireSelfOrAncestor(ctx context.Context, actorID uuid.UUID, account *domain.Account) error {
	if actorID == account.ID {
		return nil
	}
	return h.requireAncestor(ctx, actorID, account)
}

// subtreeIDs returns root plus every account beneath it.
func (h hierarchy) subtreeIDs(ctx context.Context, root *domain.Account) ([]uuid.UUID, error) {
	ids := []uuid.UUID{root.ID}
	role := root.Role
	for {
		child, ok := role.ChildRole()
		if !ok {
			return ids, nil
		}
		desc, err := h.accounts.ListDescendants(ctx, root.ID, child)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("list descendants: %w", err))
		}
		for _, d := range desc {
			ids = append(ids, d.ID)
		}
		role = child
	}
}

// lockAccounts takes row locks in the fixed order: lowest tier first,
// ties broken by id. It returns the locked rows keyed by id.
func (h hierarchy) lockAccounts(ctx context.Context, tx pgx.Tx, accounts ...*domain.Account) (map[uuid.UUID]*domain.Account, error) {
	ordered := make([]*domain.Account, len(accounts))
	copy(ordered, accounts)
	sort.Slice(ordered, func(i, j int) bool {
		ti, tj := ordered[i].Role.Tier(), ordered[j].Role.Tier()
		if ti != tj {
			return ti > tj
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	locked := make(map[uuid.UUID]*domain.Account, len(ordered))
	for _, a := range ordered {
		row, err := h.accounts.GetByIDForUpdate(ctx, tx, a.ID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
		}
		if row == nil {
			return nil, apperror.ErrNotFound("account")
		}
		locked[a.ID] = row
	}
	return locked, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
