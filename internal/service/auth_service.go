package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	accounts ports.AccountRepository
	creds    ports.CredentialService
	tokenSvc ports.TokenService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	accounts ports.AccountRepository,
	creds ports.CredentialService,
	tokenSvc ports.TokenService,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		accounts: accounts,
		creds:    creds,
		tokenSvc: tokenSvc,
	}
}

// Login validates credentials and returns a JWT session.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (*ports.Session, error) {
	acct, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find account: %w", err))
	}
	if acct == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	// Password checks share the verifier's lockout counter.
	if err := s.creds.VerifyPassword(ctx, acct.ID, password); err != nil {
		if errors.Is(err, apperror.ErrAuthenticationFailed()) {
			return nil, apperror.ErrInvalidCredentials()
		}
		return nil, err
	}

	token, expiry, err := s.tokenSvc.Generate(acct.ID, acct.Role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return &ports.Session{
		Token:     token,
		ExpiresAt: expiry,
		Account:   acct,
	}, nil
}
