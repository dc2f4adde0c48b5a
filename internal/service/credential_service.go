package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	pinDigits         = 6
	minPasswordLength = 8
)

// CredentialServiceImpl implements ports.CredentialService.
type CredentialServiceImpl struct {
	hierarchy
	hashSvc     ports.HashService
	limiter     ports.AttemptLimiter // nil disables lockout
	maxAttempts int64
	window      time.Duration
	log         zerolog.Logger
}

// NewCredentialService creates a new CredentialServiceImpl.
func NewCredentialService(
	accounts ports.AccountRepository,
	hashSvc ports.HashService,
	limiter ports.AttemptLimiter,
	maxAttempts int64,
	window time.Duration,
	log zerolog.Logger,
) *CredentialServiceImpl {
	return &CredentialServiceImpl{
		hierarchy:   hierarchy{accounts: accounts},
		hashSvc:     hashSvc,
		limiter:     limiter,
		maxAttempts: maxAttempts,
		window:      window,
		log:         log,
	}
}

// VerifyPin checks the account's PIN.
func (s *CredentialServiceImpl) VerifyPin(ctx context.Context, accountID uuid.UUID, pin string) error {
	return s.verify(ctx, accountID, "pin", pin, func(a *domain.Account) string { return a.PinHash })
}

// VerifyPassword checks the account's password.
func (s *CredentialServiceImpl) VerifyPassword(ctx context.Context, accountID uuid.UUID, password string) error {
	return s.verify(ctx, accountID, "password", password, func(a *domain.Account) string { return a.PasswordHash })
}

// Verify checks whichever secret the caller supplied, preferring the PIN.
func (s *CredentialServiceImpl) Verify(ctx context.Context, accountID uuid.UUID, cred ports.Credential) error {
	switch {
	case cred.Pin != "":
		return s.VerifyPin(ctx, accountID, cred.Pin)
	case cred.Password != "":
		return s.VerifyPassword(ctx, accountID, cred.Password)
	}
	return apperror.ErrAuthenticationFailed()
}

func (s *CredentialServiceImpl) verify(ctx context.Context, accountID uuid.UUID, kind, secret string, hashOf func(*domain.Account) string) error {
	key := kind + ":" + accountID.String()

	if s.limiter != nil {
		failures, err := s.limiter.Failures(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("attempt limiter unavailable, skipping lockout check")
		} else if failures >= s.maxAttempts {
			return apperror.ErrTooManyAttempts()
		}
	}

	acct, err := s.load(ctx, accountID)
	if err != nil {
		return err
	}
	if !acct.IsActive() {
		return apperror.ErrAccountInactive()
	}

	ok, err := s.hashSvc.Verify(secret, hashOf(acct))
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify %s: %w", kind, err))
	}
	if !ok {
		s.recordFailure(ctx, key)
		return apperror.ErrAuthenticationFailed()
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to reset attempt counter")
		}
	}
	return nil
}

func (s *CredentialServiceImpl) recordFailure(ctx context.Context, key string) {
	if s.limiter == nil {
		return
	}
	n, err := s.limiter.RecordFailure(ctx, key, s.window)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to record credential failure")
		return
	}
	if n >= s.maxAttempts {
		s.log.Warn().Str("key", key).Int64("failures", n).Msg("credential locked out")
	}
}

// RegeneratePin issues a fresh random PIN for accountID. The actor must be
// the account itself or an ancestor and must confirm with their password.
// The previous PIN stops working as soon as the new hash is stored.
func (s *CredentialServiceImpl) RegeneratePin(ctx context.Context, actorID, accountID uuid.UUID, actorPassword string) (string, error) {
	target, err := s.load(ctx, accountID)
	if err != nil {
		return "", err
	}
	if err := s.requireSelfOrAncestor(ctx, actorID, target); err != nil {
		return "", err
	}
	if err := s.VerifyPassword(ctx, actorID, actorPassword); err != nil {
		return "", err
	}

	pin, err := generatePin()
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("generate pin: %w", err))
	}
	hash, err := s.hashSvc.Hash(pin)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("hash pin: %w", err))
	}
	if err := s.accounts.UpdatePinHash(ctx, accountID, hash); err != nil {
		return "", apperror.InternalError(fmt.Errorf("store pin: %w", err))
	}
	s.clear(ctx, "pin:"+accountID.String())

	s.log.Info().
		Str("actor_id", actorID.String()).
		Str("account_id", accountID.String()).
		Msg("pin regenerated")
	return pin, nil
}

// ResetPassword replaces the password of accountID.
func (s *CredentialServiceImpl) ResetPassword(ctx context.Context, actorID, accountID uuid.UUID, actorPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	target, err := s.load(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.requireSelfOrAncestor(ctx, actorID, target); err != nil {
		return err
	}
	if err := s.VerifyPassword(ctx, actorID, actorPassword); err != nil {
		return err
	}

	hash, err := s.hashSvc.Hash(newPassword)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}
	if err := s.accounts.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return apperror.InternalError(fmt.Errorf("store password: %w", err))
	}
	s.clear(ctx, "password:"+accountID.String())

	s.log.Info().
		Str("actor_id", actorID.String()).
		Str("account_id", accountID.String()).
		Msg("password reset")
	return nil
}

func (s *CredentialServiceImpl) clear(ctx context.Context, key string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to reset attempt counter")
	}
}

// generatePin returns a uniformly random zero-padded numeric PIN.
func generatePin() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < pinDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", pinDigits, n.Int64()), nil
}
