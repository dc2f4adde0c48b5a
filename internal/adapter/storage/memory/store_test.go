package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTree(t *testing.T, repo *AccountRepo) (root, sup, master, player *domain.Account) {
	t.Helper()
	ctx := context.Background()
	var err error
	root, err = domain.NewAccount(nil, domain.RolePowerhouse, "root")
	require.NoError(t, err)
	sup, err = domain.NewAccount(root, domain.RoleSuper, "sup")
	require.NoError(t, err)
	master, err = domain.NewAccount(sup, domain.RoleMaster, "master")
	require.NoError(t, err)
	player, err = domain.NewAccount(master, domain.RolePlayer, "player")
	require.NoError(t, err)
	for _, a := range []*domain.Account{root, sup, master, player} {
		require.NoError(t, repo.Create(ctx, a))
	}
	return root, sup, master, player
}

func TestAccountRepo_CreateDuplicateUsername(t *testing.T) {
	repo := NewAccountRepo(NewStore())
	root, _, _, _ := seedTree(t, repo)

	dup, err := domain.NewAccount(root, domain.RoleSuper, "player")
	require.NoError(t, err)
	err = repo.Create(context.Background(), dup)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
}

func TestAccountRepo_ListDescendants(t *testing.T) {
	repo := NewAccountRepo(NewStore())
	root, sup, master, player := seedTree(t, repo)
	ctx := context.Background()

	players, err := repo.ListDescendants(ctx, root.ID, domain.RolePlayer)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, player.ID, players[0].ID)

	masters, err := repo.ListDescendants(ctx, sup.ID, domain.RoleMaster)
	require.NoError(t, err)
	require.Len(t, masters, 1)
	assert.Equal(t, master.ID, masters[0].ID)

	none, err := repo.ListDescendants(ctx, player.ID, domain.RolePlayer)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAccountRepo_ReturnsCopies(t *testing.T) {
	repo := NewAccountRepo(NewStore())
	_, _, _, player := seedTree(t, repo)
	ctx := context.Background()

	got, err := repo.GetByID(ctx, player.ID)
	require.NoError(t, err)
	got.MainBalance = decimal.NewFromInt(999)

	again, err := repo.GetByID(ctx, player.ID)
	require.NoError(t, err)
	assert.True(t, again.MainBalance.IsZero())
}

func TestStore_RollbackUndoesWrites(t *testing.T) {
	s := NewStore()
	accounts := NewAccountRepo(s)
	txns := NewTransactionRepo(s)
	_, _, _, player := seedTree(t, accounts)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	locked, err := accounts.GetByIDForUpdate(ctx, tx, player.ID)
	require.NoError(t, err)
	locked.MainBalance = decimal.NewFromInt(500)
	require.NoError(t, accounts.UpdateBalances(ctx, tx, locked))
	require.NoError(t, txns.Create(ctx, tx, &domain.Transaction{
		ID:        uuid.New(),
		AccountID: player.ID,
		Type:      domain.TransactionTypeDeposit,
		Direction: domain.DirectionCredit,
		Amount:    decimal.NewFromInt(500),
		Status:    domain.TransactionStatusApproved,
		CreatedAt: time.Now(),
	}))

	require.NoError(t, tx.Rollback(ctx))

	got, err := accounts.GetByID(ctx, player.ID)
	require.NoError(t, err)
	assert.True(t, got.MainBalance.IsZero())

	list, total, err := txns.List(ctx, ports.TransactionListParams{AccountIDs: []uuid.UUID{player.ID}})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	// Rollback after rollback stays a no-op.
	assert.NoError(t, tx.Rollback(ctx))
}

func TestStore_RollbackKeepsCredentialAndStatusWrites(t *testing.T) {
	s := NewStore()
	accounts := NewAccountRepo(s)
	_, _, _, player := seedTree(t, accounts)
	ctx := context.Background()
	require.NoError(t, accounts.UpdatePinHash(ctx, player.ID, "old-pin-hash"))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	locked, err := accounts.GetByIDForUpdate(ctx, tx, player.ID)
	require.NoError(t, err)
	locked.MainBalance = decimal.NewFromInt(75)
	require.NoError(t, accounts.UpdateBalances(ctx, tx, locked))

	require.NoError(t, accounts.UpdatePinHash(ctx, player.ID, "new-pin-hash"))
	require.NoError(t, accounts.UpdatePasswordHash(ctx, player.ID, "new-password-hash"))
	require.NoError(t, accounts.UpdateStatus(ctx, player.ID, domain.AccountStatusInactive))

	require.NoError(t, tx.Rollback(ctx))

	got, err := accounts.GetByID(ctx, player.ID)
	require.NoError(t, err)
	assert.True(t, got.MainBalance.IsZero())
	assert.Equal(t, "new-pin-hash", got.PinHash)
	assert.Equal(t, "new-password-hash", got.PasswordHash)
	assert.Equal(t, domain.AccountStatusInactive, got.Status)
}

func TestStore_CommitKeepsWrites(t *testing.T) {
	s := NewStore()
	accounts := NewAccountRepo(s)
	_, _, _, player := seedTree(t, accounts)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	locked, err := accounts.GetByIDForUpdate(ctx, tx, player.ID)
	require.NoError(t, err)
	locked.MainBalance = decimal.NewFromInt(42)
	require.NoError(t, accounts.UpdateBalances(ctx, tx, locked))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	got, err := accounts.GetByID(ctx, player.ID)
	require.NoError(t, err)
	assert.True(t, got.MainBalance.Equal(decimal.NewFromInt(42)))

	_, err = accounts.GetByIDForUpdate(ctx, tx, player.ID)
	assert.Error(t, err, "closed transaction must not be reused")
}

func TestStore_RowLockSerializesIncrements(t *testing.T) {
	s := NewStore()
	accounts := NewAccountRepo(s)
	_, _, _, player := seedTree(t, accounts)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.Begin(ctx)
			if err != nil {
				failures.Add(1)
				return
			}
			defer tx.Rollback(ctx) //nolint:errcheck
			a, err := accounts.GetByIDForUpdate(ctx, tx, player.ID)
			if err != nil {
				failures.Add(1)
				return
			}
			a.MainBalance = a.MainBalance.Add(decimal.NewFromInt(1))
			if err := accounts.UpdateBalances(ctx, tx, a); err != nil {
				failures.Add(1)
				return
			}
			if err := tx.Commit(ctx); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	got, err := accounts.GetByID(ctx, player.ID)
	require.NoError(t, err)
	assert.True(t, got.MainBalance.Equal(decimal.NewFromInt(workers)), "got %s", got.MainBalance)
}

func TestStore_RowLockHonoursContext(t *testing.T) {
	s := NewStore()
	accounts := NewAccountRepo(s)
	_, _, _, player := seedTree(t, accounts)
	ctx := context.Background()

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	defer holder.Rollback(ctx) //nolint:errcheck
	_, err = accounts.GetByIDForUpdate(ctx, holder, player.ID)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	defer waiter.Rollback(ctx) //nolint:errcheck

	_, err = accounts.GetByIDForUpdate(waitCtx, waiter, player.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransactionRepo_ListFiltersAndPaginates(t *testing.T) {
	s := NewStore()
	txns := NewTransactionRepo(s)
	ctx := context.Background()
	accountID := uuid.New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		typ := domain.TransactionTypeDeposit
		if i%2 == 1 {
			typ = domain.TransactionTypeWithdrawal
		}
		require.NoError(t, txns.Create(ctx, tx, &domain.Transaction{
			ID:        uuid.New(),
			AccountID: accountID,
			Type:      typ,
			Amount:    decimal.NewFromInt(int64(i + 1)),
			Status:    domain.TransactionStatusPending,
			CreatedAt: time.Now(),
		}))
	}
	require.NoError(t, tx.Commit(ctx))

	deposit := domain.TransactionTypeDeposit
	list, total, err := txns.List(ctx, ports.TransactionListParams{
		AccountIDs: []uuid.UUID{accountID},
		Type:       &deposit,
		Page:       1,
		PageSize:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.True(t, list[0].Amount.Equal(decimal.NewFromInt(5)), "newest first")
}

func TestTransactionRepo_DuplicateReference(t *testing.T) {
	s := NewStore()
	txns := NewTransactionRepo(s)
	ctx := context.Background()
	ref := "round-1"

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	require.NoError(t, txns.Create(ctx, tx, &domain.Transaction{ID: uuid.New(), Reference: &ref}))
	err = txns.Create(ctx, tx, &domain.Transaction{ID: uuid.New(), Reference: &ref})
	assert.ErrorIs(t, err, ports.ErrDuplicate)
}

func TestSettlementRepo_RollbackRemovesOnlyOwnRecord(t *testing.T) {
	s := NewStore()
	repo := NewSettlementRepo(s)
	ctx := context.Background()
	masterA, masterB := uuid.New(), uuid.New()

	txA, err := s.Begin(ctx)
	require.NoError(t, err)
	txB, err := s.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, txA, &domain.SettlementRecord{ID: uuid.New(), FromMasterID: masterA}))
	require.NoError(t, repo.Create(ctx, txB, &domain.SettlementRecord{ID: uuid.New(), FromMasterID: masterB}))
	require.NoError(t, txB.Commit(ctx))
	require.NoError(t, txA.Rollback(ctx))

	a, err := repo.ListByMaster(ctx, masterA)
	require.NoError(t, err)
	assert.Empty(t, a)
	b, err := repo.ListByMaster(ctx, masterB)
	require.NoError(t, err)
	assert.Len(t, b, 1)
}

func TestIdempotencyRepo_CreateAndGet(t *testing.T) {
	s := NewStore()
	repo := NewIdempotencyRepo(s)
	ctx := context.Background()

	got, err := repo.Get(ctx, "game:R1")
	require.NoError(t, err)
	assert.Nil(t, got)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, &domain.IdempotencyLog{Key: "game:R1", ResponseJSON: []byte(`{}`)}))
	require.NoError(t, tx.Commit(ctx))

	got, err = repo.Get(ctx, "game:R1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte(`{}`), got.ResponseJSON)
}
