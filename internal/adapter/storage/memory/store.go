// Package memory is an in-process storage backend used for local
// development and tests. It mirrors the postgres adapter's semantics:
// writes made through a transaction are undone on rollback, and rows read
// "for update" stay locked until the transaction ends.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tiered-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNotSQL = errors.New("memory store does not execute SQL")

// Store holds every table of the ledger in maps guarded by one mutex.
// Row locks are separate so a transaction can hold them across calls.
type Store struct {
	mu sync.RWMutex

	accounts     map[uuid.UUID]*domain.Account
	transactions map[uuid.UUID]*domain.Transaction
	txSeq        map[uuid.UUID]int64
	seq          int64
	paymentModes map[uuid.UUID]*domain.PaymentMode
	settlements  []domain.SettlementRecord
	adjustments  []domain.PLAdjustment
	idempotency  map[string]*domain.IdempotencyLog
	audit        []domain.AuditLog

	rowMu sync.Mutex
	rows  map[uuid.UUID]chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[uuid.UUID]*domain.Account),
		transactions: make(map[uuid.UUID]*domain.Transaction),
		txSeq:        make(map[uuid.UUID]int64),
		paymentModes: make(map[uuid.UUID]*domain.PaymentMode),
		idempotency:  make(map[string]*domain.IdempotencyLog),
		rows:         make(map[uuid.UUID]chan struct{}),
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{store: s, held: make(map[uuid.UUID]bool)}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Name returns the dependency name.
func (s *Store) Name() string {
	return "memory"
}

func (s *Store) rowLock(id uuid.UUID) chan struct{} {
	s.rowMu.Lock()
	defer s.rowMu.Unlock()
	l, ok := s.rows[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.rows[id] = l
	}
	return l
}

// memTx implements pgx.Tx over the store. Only Commit and Rollback are
// meaningful; the SQL methods fail.
type memTx struct {
	store *Store
	mu    sync.Mutex
	undo  []func()
	held  map[uuid.UUID]bool
	done  bool
}

func asTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt == nil {
		return nil, fmt.Errorf("memory store: foreign transaction %T", tx)
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// lock acquires the row lock for id, waiting until it is free or ctx ends.
// Re-locking a row the transaction already holds is a no-op.
func (t *memTx) lock(ctx context.Context, id uuid.UUID) error {
	t.mu.Lock()
	if t.held[id] {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	l := t.store.rowLock(id)
	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for row lock: %w", ctx.Err())
	}

	t.mu.Lock()
	t.held[id] = true
	t.mu.Unlock()
	return nil
}

// record registers an undo step. Callers hold store.mu.
func (t *memTx) record(fn func()) {
	t.mu.Lock()
	t.undo = append(t.undo, fn)
	t.mu.Unlock()
}

func (t *memTx) release() {
	for id := range t.held {
		<-t.store.rowLock(id)
	}
	t.held = map[uuid.UUID]bool{}
}

func (t *memTx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.release()
	return nil
}

// Rollback undoes every write in reverse order. Rolling back a finished
// transaction is a no-op, matching the deferred-rollback idiom.
func (t *memTx) Rollback(_ context.Context) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil
	}
	t.done = true
	undo := t.undo
	t.undo = nil
	t.mu.Unlock()

	t.store.mu.Lock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	t.store.mu.Unlock()

	t.mu.Lock()
	t.release()
	t.mu.Unlock()
	return nil
}

func (t *memTx) Begin(_ context.Context) (pgx.Tx, error) {
	return nil, errors.New("memory store: nested transactions are not supported")
}

func (t *memTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, errNotSQL
}

func (t *memTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }

func (t *memTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, errNotSQL
}

func (t *memTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errNotSQL
}

func (t *memTx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errNotSQL
}

func (t *memTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                        { return nil }
