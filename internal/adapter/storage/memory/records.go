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
)

// --- Payment modes ---

// PaymentModeRepo implements ports.PaymentModeRepository.
type PaymentModeRepo struct {
	s *Store
}

// NewPaymentModeRepo creates a new PaymentModeRepo.
func NewPaymentModeRepo(s *Store) *PaymentModeRepo {
	return &PaymentModeRepo{s: s}
}

func (r *PaymentModeRepo) Create(_ context.Context, m *domain.PaymentMode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *m
	r.s.paymentModes[m.ID] = &c
	return nil
}

func (r *PaymentModeRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.PaymentMode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.paymentModes[id]
	if !ok {
		return nil, nil
	}
	c := *m
	return &c, nil
}

func (r *PaymentModeRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.PaymentMode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.PaymentMode
	for _, m := range r.s.paymentModes {
		if m.OwnerID == ownerID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *PaymentModeRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.paymentModes[id]
	if !ok {
		return fmt.Errorf("payment mode %s not found", id)
	}
	next := *m
	next.Active = active
	next.UpdatedAt = time.Now().UTC()
	r.s.paymentModes[id] = &next
	return nil
}

// --- Settlements ---

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	s *Store
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(s *Store) *SettlementRepo {
	return &SettlementRepo{s: s}
}

func (r *SettlementRepo) Create(_ context.Context, tx pgx.Tx, rec *domain.SettlementRecord) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.settlements = append(r.s.settlements, *rec)
	id := rec.ID
	mt.record(func() {
		for i := range r.s.settlements {
			if r.s.settlements[i].ID == id {
				r.s.settlements = append(r.s.settlements[:i], r.s.settlements[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *SettlementRepo) ListByMaster(_ context.Context, masterID uuid.UUID) ([]domain.SettlementRecord, error) {
	return r.filter(func(rec domain.SettlementRecord) bool { return rec.FromMasterID == masterID }), nil
}

func (r *SettlementRepo) ListBySuper(_ context.Context, superID uuid.UUID) ([]domain.SettlementRecord, error) {
	return r.filter(func(rec domain.SettlementRecord) bool { return rec.ToSuperID == superID }), nil
}

func (r *SettlementRepo) filter(keep func(domain.SettlementRecord) bool) []domain.SettlementRecord {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.SettlementRecord
	for _, rec := range r.s.settlements {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// --- P/L adjustments ---

// PLAdjustmentRepo implements ports.PLAdjustmentRepository.
type PLAdjustmentRepo struct {
	s *Store
}

// NewPLAdjustmentRepo creates a new PLAdjustmentRepo.
func NewPLAdjustmentRepo(s *Store) *PLAdjustmentRepo {
	return &PLAdjustmentRepo{s: s}
}

func (r *PLAdjustmentRepo) Create(_ context.Context, tx pgx.Tx, adj *domain.PLAdjustment) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.adjustments {
		if existing.RoundRef == adj.RoundRef {
			return fmt.Errorf("create pl adjustment %s: %w", adj.RoundRef, ports.ErrDuplicate)
		}
	}
	r.s.adjustments = append(r.s.adjustments, *adj)
	id := adj.ID
	mt.record(func() {
		for i := range r.s.adjustments {
			if r.s.adjustments[i].ID == id {
				r.s.adjustments = append(r.s.adjustments[:i], r.s.adjustments[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *PLAdjustmentRepo) ListByMaster(_ context.Context, masterID uuid.UUID) ([]domain.PLAdjustment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.PLAdjustment
	for _, adj := range r.s.adjustments {
		if adj.MasterID == masterID {
			out = append(out, adj)
		}
	}
	return out, nil
}

// --- Idempotency ---

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	s *Store
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(s *Store) *IdempotencyRepo {
	return &IdempotencyRepo{s: s}
}

func (r *IdempotencyRepo) Create(_ context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.idempotency[log.Key]; ok {
		return fmt.Errorf("create idempotency log %s: %w", log.Key, ports.ErrDuplicate)
	}
	c := *log
	r.s.idempotency[log.Key] = &c
	mt.record(func() { delete(r.s.idempotency, log.Key) })
	return nil
}

func (r *IdempotencyRepo) Get(_ context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	c := *l
	return &c, nil
}

// --- Audit ---

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{s: s}
}

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

// Entries returns a snapshot of the recorded audit log.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.AuditLog, len(r.s.audit))
	copy(out, r.s.audit)
	return out
}
