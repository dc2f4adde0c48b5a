package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/internal/core/ports/mocks"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestGameResult_WinAndLoss(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.deposit(t, f.master, masterPin, f.player.ID, "1000")

	win, err := f.games.RecordResult(ctx, ports.GameResult{PlayerID: f.player.ID, RoundRef: "r-1", Amount: dec("150")})
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionCredit, win.Transaction.Direction)
	assert.True(t, dec("-150").Equal(win.Adjustment.Amount))
	assert.Equal(t, f.master.ID, win.Adjustment.MasterID)

	loss, err := f.games.RecordResult(ctx, ports.GameResult{PlayerID: f.player.ID, RoundRef: "r-2", Amount: dec("-400")})
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionDebit, loss.Transaction.Direction)
	assert.True(t, dec("400").Equal(loss.Transaction.Amount))
	require.NotNil(t, loss.Transaction.Reference)
	assert.Equal(t, "r-2", *loss.Transaction.Reference)

	assert.True(t, dec("750").Equal(f.reload(t, f.player.ID).MainBalance))
	assert.True(t, dec("250").Equal(f.reload(t, f.master.ID).PLBalance))
}

func TestGameResult_ReplayedRoundAppliesOnce(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.deposit(t, f.master, masterPin, f.player.ID, "100")

	result := ports.GameResult{PlayerID: f.player.ID, RoundRef: "dup-round", Amount: dec("-30")}
	first, err := f.games.RecordResult(ctx, result)
	require.NoError(t, err)

	second, err := f.games.RecordResult(ctx, result)
	require.NoError(t, err)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, first.Adjustment.ID, second.Adjustment.ID)

	assert.True(t, dec("70").Equal(f.reload(t, f.player.ID).MainBalance))
	assert.True(t, dec("30").Equal(f.reload(t, f.master.ID).PLBalance))
}

func TestGameResult_ConcurrentDeliveriesApplyOnce(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.deposit(t, f.master, masterPin, f.player.ID, "100")

	result := ports.GameResult{PlayerID: f.player.ID, RoundRef: "race", Amount: dec("-10")}
	var wg sync.WaitGroup
	outcomes := make([]*ports.GameResultOutcome, 4)
	errs := make([]error, 4)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.games.RecordResult(ctx, result)
		}(i)
	}
	wg.Wait()

	for i := range outcomes {
		require.NoError(t, errs[i])
		assert.Equal(t, outcomes[0].Transaction.ID, outcomes[i].Transaction.ID)
	}
	assert.True(t, dec("90").Equal(f.reload(t, f.player.ID).MainBalance))
	assert.True(t, dec("10").Equal(f.reload(t, f.master.ID).PLBalance))
}

func TestGameResult_LossBeyondBalance(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.games.RecordResult(ctx, ports.GameResult{PlayerID: f.player.ID, RoundRef: "broke", Amount: dec("-1")})
	assert.True(t, errors.Is(err, apperror.ErrInsufficientFunds()))
	assert.True(t, f.reload(t, f.master.ID).PLBalance.IsZero())

	adjs, err := f.adjustments.ListByMaster(ctx, f.master.ID)
	require.NoError(t, err)
	assert.Empty(t, adjs)
}

func TestGameResult_Validation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.games.RecordResult(ctx, ports.GameResult{PlayerID: f.player.ID, RoundRef: " ", Amount: dec("1")})
	assert.Equal(t, "REQ_001", apperror.CodeOf(err))

	_, err = f.games.RecordResult(ctx, ports.GameResult{PlayerID: f.player.ID, RoundRef: "zero", Amount: dec("0")})
	assert.True(t, errors.Is(err, apperror.ErrInvalidAmount()))

	_, err = f.games.RecordResult(ctx, ports.GameResult{PlayerID: f.master.ID, RoundRef: "not-a-player", Amount: dec("1")})
	assert.Equal(t, "REQ_001", apperror.CodeOf(err))

	_, err = f.games.RecordResult(ctx, ports.GameResult{PlayerID: uuid.New(), RoundRef: "ghost", Amount: dec("1")})
	assert.Equal(t, "SYS_404", apperror.CodeOf(err))
}

func TestGameResult_CacheHitSkipsStorage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockIdempotencyCache(ctrl)
	idempRepo := mocks.NewMockIdempotencyRepository(ctrl)
	accounts := mocks.NewMockAccountRepository(ctrl)

	svc := NewGameResultService(accounts, nil, idempRepo, cache, nil, nil, nil, newTestLogger())

	stored := &ports.GameResultOutcome{
		Transaction: &domain.Transaction{ID: uuid.New(), Type: domain.TransactionTypeGameResult, Amount: dec("5")},
		Adjustment:  &domain.PLAdjustment{ID: uuid.New(), RoundRef: "cached", Amount: dec("-5")},
	}
	payload, err := json.Marshal(stored)
	require.NoError(t, err)

	cache.EXPECT().Get(gomock.Any(), "game:cached").Return(payload, nil)

	out, err := svc.RecordResult(context.Background(), ports.GameResult{PlayerID: uuid.New(), RoundRef: "cached", Amount: dec("5")})
	require.NoError(t, err)
	assert.Equal(t, stored.Transaction.ID, out.Transaction.ID)
	assert.True(t, dec("-5").Equal(out.Adjustment.Amount))
}

func TestGameResult_CacheErrorFallsThroughToDB(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockIdempotencyCache(ctrl)
	idempRepo := mocks.NewMockIdempotencyRepository(ctrl)

	svc := NewGameResultService(nil, nil, idempRepo, cache, nil, nil, nil, newTestLogger())

	stored := &ports.GameResultOutcome{Transaction: &domain.Transaction{ID: uuid.New()}}
	payload, err := json.Marshal(stored)
	require.NoError(t, err)

	cache.EXPECT().Get(gomock.Any(), "game:r9").Return(nil, errors.New("redis down"))
	idempRepo.EXPECT().Get(gomock.Any(), "game:r9").Return(&domain.IdempotencyLog{Key: "game:r9", ResponseJSON: payload}, nil)

	out, err := svc.RecordResult(context.Background(), ports.GameResult{PlayerID: uuid.New(), RoundRef: "r9", Amount: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, stored.Transaction.ID, out.Transaction.ID)
}
