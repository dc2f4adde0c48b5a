package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccountServiceImpl implements ports.AccountService.
type AccountServiceImpl struct {
	hierarchy
	hashSvc ports.HashService
	log     zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(accounts ports.AccountRepository, hashSvc ports.HashService, log zerolog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		hierarchy: hierarchy{accounts: accounts},
		hashSvc:   hashSvc,
		log:       log,
	}
}

// CreateAccount creates a child account under req.ParentID. A nil parent
// bootstraps the powerhouse and is only accepted without an actor.
func (s *AccountServiceImpl) CreateAccount(ctx context.Context, req ports.CreateAccountRequest) (*domain.Account, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperror.Validation("username is required")
	}

	var parent *domain.Account
	if req.ParentID != nil {
		p, err := s.accounts.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get parent: %w", err))
		}
		if p == nil {
			return nil, apperror.ErrNotFound("parent account")
		}
		if err := s.requireSelfOrAncestor(ctx, req.ActorID, p); err != nil {
			return nil, err
		}
		if !p.IsActive() {
			return nil, apperror.ErrAccountInactive()
		}
		parent = p
	} else if req.ActorID != uuid.Nil {
		return nil, apperror.ErrInvalidHierarchy("a parent account is required")
	}

	acct, err := domain.NewAccount(parent, req.Role, username)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTierPairing) {
			return nil, apperror.ErrInvalidHierarchy(err.Error())
		}
		return nil, apperror.InternalError(err)
	}

	existing, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrDuplicateUsername()
	}

	if acct.PasswordHash, err = s.hashSvc.Hash(req.Password); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}
	if acct.PinHash, err = s.hashSvc.Hash(req.Pin); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash pin: %w", err))
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrDuplicateUsername()
		}
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	s.log.Info().
		Str("account_id", acct.ID.String()).
		Str("role", string(acct.Role)).
		Str("actor_id", req.ActorID.String()).
		Msg("account created")

	return acct, nil
}

// EnsurePowerhouse creates the root account on first start. An existing
// powerhouse with the same username is returned unchanged.
func (s *AccountServiceImpl) EnsurePowerhouse(ctx context.Context, username, password, pin string) (*domain.Account, error) {
	existing, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		if existing.Role != domain.RolePowerhouse {
			return nil, fmt.Errorf("bootstrap username %q belongs to a %s account", username, existing.Role)
		}
		return existing, nil
	}
	return s.CreateAccount(ctx, ports.CreateAccountRequest{
		Role:     domain.RolePowerhouse,
		Username: username,
		Password: password,
		Pin:      pin,
	})
}

// GetAccount returns the account or NotFound.
func (s *AccountServiceImpl) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.load(ctx, id)
}

// GetDescendants returns every account of role beneath id.
func (s *AccountServiceImpl) GetDescendants(ctx context.Context, id uuid.UUID, role domain.Role) ([]domain.Account, error) {
	if !role.Valid() {
		return nil, apperror.Validation("unknown role")
	}
	root, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !root.Role.Above(role) {
		return []domain.Account{}, nil
	}
	desc, err := s.accounts.ListDescendants(ctx, root.ID, role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list descendants: %w", err))
	}
	return desc, nil
}

// ListChildren returns the direct children of id.
func (s *AccountServiceImpl) ListChildren(ctx context.Context, id uuid.UUID) ([]domain.Account, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	children, err := s.accounts.ListChildren(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list children: %w", err))
	}
	return children, nil
}

// Authorize fails with Forbidden unless actorID is accountID or above it.
func (s *AccountServiceImpl) Authorize(ctx context.Context, actorID, accountID uuid.UUID) error {
	acct, err := s.load(ctx, accountID)
	if err != nil {
		return err
	}
	return s.requireSelfOrAncestor(ctx, actorID, acct)
}

// Deactivate blocks logins and mutations for the account. History is kept.
func (s *AccountServiceImpl) Deactivate(ctx context.Context, actorID, id uuid.UUID) (*domain.Account, error) {
	return s.setStatus(ctx, actorID, id, domain.AccountStatusInactive)
}

// Activate re-enables a deactivated account.
func (s *AccountServiceImpl) Activate(ctx context.Context, actorID, id uuid.UUID) (*domain.Account, error) {
	return s.setStatus(ctx, actorID, id, domain.AccountStatusActive)
}

func (s *AccountServiceImpl) setStatus(ctx context.Context, actorID, id uuid.UUID, status domain.AccountStatus) (*domain.Account, error) {
	acct, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAncestor(ctx, actorID, acct); err != nil {
		return nil, err
	}
	if acct.Status == status {
		return acct, nil
	}
	if err := s.accounts.UpdateStatus(ctx, id, status); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update status: %w", err))
	}

	s.log.Info().
		Str("account_id", id.String()).
		Str("status", string(status)).
		Str("actor_id", actorID.String()).
		Msg("account status changed")

	return s.load(ctx, id)
}

// SetExposureLimit caps a player's open-bet liability.
func (s *AccountServiceImpl) SetExposureLimit(ctx context.Context, actorID, playerID uuid.UUID, limit decimal.Decimal) (*domain.Account, error) {
	limit = domain.NormalizeAmount(limit)
	if limit.IsNegative() {
		return nil, apperror.ErrInvalidAmount()
	}
	acct, err := s.load(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if !acct.IsPlayer() {
		return nil, apperror.Validation("exposure limits apply to players only")
	}
	if err := s.requireAncestor(ctx, actorID, acct); err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateExposureLimit(ctx, playerID, limit); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update exposure limit: %w", err))
	}
	return s.load(ctx, playerID)
}
