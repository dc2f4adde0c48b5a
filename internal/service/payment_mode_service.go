package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentModeServiceImpl implements ports.PaymentModeService.
type PaymentModeServiceImpl struct {
	hierarchy
	modes  ports.PaymentModeRepository
	encSvc ports.EncryptionService
	log    zerolog.Logger
}

// NewPaymentModeService creates a new PaymentModeServiceImpl.
func NewPaymentModeService(
	accounts ports.AccountRepository,
	modes ports.PaymentModeRepository,
	encSvc ports.EncryptionService,
	log zerolog.Logger,
) *PaymentModeServiceImpl {
	return &PaymentModeServiceImpl{
		hierarchy: hierarchy{accounts: accounts},
		modes:     modes,
		encSvc:    encSvc,
		log:       log,
	}
}

// Create registers a new payment mode for a master. The account number is
// stored encrypted; only its masked form is returned.
func (s *PaymentModeServiceImpl) Create(ctx context.Context, req ports.CreatePaymentModeRequest) (*domain.PaymentMode, error) {
	if !req.Type.Valid() {
		return nil, apperror.Validation("payment mode type must be ewallet or bank")
	}
	number := strings.TrimSpace(req.AccountNumber)
	label := strings.TrimSpace(req.Label)
	if number == "" || label == "" {
		return nil, apperror.Validation("label and account number are required")
	}

	owner, err := s.load(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner.Role != domain.RoleMaster {
		return nil, apperror.ErrForbidden()
	}

	enc, err := s.encSvc.Encrypt(number)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt account number: %w", err))
	}

	now := time.Now().UTC()
	mode := &domain.PaymentMode{
		ID:                  uuid.New(),
		OwnerID:             owner.ID,
		Type:                req.Type,
		Label:               label,
		AccountName:         strings.TrimSpace(req.AccountName),
		AccountNumberEnc:    enc,
		AccountNumberMasked: domain.MaskAccountNumber(number),
		Active:              true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.modes.Create(ctx, mode); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment mode: %w", err))
	}

	s.log.Info().
		Str("payment_mode_id", mode.ID.String()).
		Str("owner_id", owner.ID.String()).
		Str("type", string(mode.Type)).
		Msg("payment mode created")
	return mode, nil
}

// List returns a master's payment modes.
func (s *PaymentModeServiceImpl) List(ctx context.Context, ownerID uuid.UUID) ([]domain.PaymentMode, error) {
	modes, err := s.modes.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payment modes: %w", err))
	}
	return modes, nil
}

// SetActive toggles a payment mode owned by ownerID.
func (s *PaymentModeServiceImpl) SetActive(ctx context.Context, ownerID, id uuid.UUID, active bool) (*domain.PaymentMode, error) {
	mode, err := s.modes.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment mode: %w", err))
	}
	if mode == nil || mode.OwnerID != ownerID {
		return nil, apperror.ErrNotFound("payment mode")
	}

	if err := s.modes.SetActive(ctx, id, active); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payment mode: %w", err))
	}
	mode.Active = active
	mode.UpdatedAt = time.Now().UTC()
	return mode, nil
}
