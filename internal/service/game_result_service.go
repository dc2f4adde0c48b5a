package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const idempotencyTTL = 24 * time.Hour

// GameResultServiceImpl implements ports.GameResultService.
type GameResultServiceImpl struct {
	hierarchy
	adjustments ports.PLAdjustmentRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache // nil skips the cache layer
	ledger      ports.LedgerService
	balances    ports.BalanceService
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewGameResultService creates a new GameResultServiceImpl.
func NewGameResultService(
	accounts ports.AccountRepository,
	adjustments ports.PLAdjustmentRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	ledger ports.LedgerService,
	balances ports.BalanceService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *GameResultServiceImpl {
	return &GameResultServiceImpl{
		hierarchy:   hierarchy{accounts: accounts},
		adjustments: adjustments,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		ledger:      ledger,
		balances:    balances,
		transactor:  transactor,
		log:         log,
	}
}

// RecordResult books one game round: the player's main balance moves by
// the signed amount and the master's P/L moves the opposite way. Replaying
// a round returns the stored outcome without applying it twice.
func (s *GameResultServiceImpl) RecordResult(ctx context.Context, result ports.GameResult) (*ports.GameResultOutcome, error) {
	roundRef := strings.TrimSpace(result.RoundRef)
	if roundRef == "" {
		return nil, apperror.Validation("round_ref is required")
	}
	amount := domain.NormalizeAmount(result.Amount)
	if amount.IsZero() {
		return nil, apperror.ErrInvalidAmount()
	}

	key := domain.BuildGameResultKey(roundRef)

	// Layer 1: Redis
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return decodeOutcome(cached)
		}
	}

	// Layer 2: DB
	if outcome, err := s.storedOutcome(ctx, key); outcome != nil || err != nil {
		return outcome, err
	}

	player, err := s.load(ctx, result.PlayerID)
	if err != nil {
		return nil, err
	}
	if !player.IsPlayer() || player.ParentID == nil {
		return nil, apperror.Validation("game results are booked against players")
	}
	master, err := s.load(ctx, *player.ParentID)
	if err != nil {
		return nil, err
	}

	outcome, respJSON, err := s.apply(ctx, key, roundRef, amount, player, master)
	if err != nil {
		if errors.Is(err, apperror.ErrAlreadyProcessed()) {
			// Lost a race with a concurrent delivery of the same round.
			stored, lookupErr := s.storedOutcome(ctx, key)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if stored != nil {
				return stored, nil
			}
		}
		return nil, err
	}

	if s.idempCache != nil {
		if err := s.idempCache.Set(ctx, key, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
		}
	}

	s.log.Info().
		Str("round_ref", roundRef).
		Str("player_id", player.ID.String()).
		Str("master_id", master.ID.String()).
		Str("amount", amount.StringFixed(domain.MoneyScale)).
		Msg("game result recorded")
	return outcome, nil
}

func (s *GameResultServiceImpl) apply(
	ctx context.Context,
	key, roundRef string,
	amount decimal.Decimal,
	player, master *domain.Account,
) (*ports.GameResultOutcome, []byte, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.lockAccounts(ctx, dbTx, player, master); err != nil {
		return nil, nil, err
	}

	dir := domain.DirectionCredit
	if amount.IsNegative() {
		dir = domain.DirectionDebit
	}
	ref := roundRef
	txn, err := s.ledger.Append(ctx, dbTx, ports.LedgerEntry{
		AccountID:   player.ID,
		Type:        domain.TransactionTypeGameResult,
		Direction:   dir,
		Amount:      amount.Abs(),
		Status:      domain.TransactionStatusApproved,
		InitiatorID: player.ID,
		Reference:   &ref,
	})
	if err != nil {
		return nil, nil, err
	}

	houseSide := amount.Neg()
	if _, err := s.balances.AdjustPL(ctx, dbTx, master.ID, houseSide); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	adj := &domain.PLAdjustment{
		ID:        uuid.New(),
		MasterID:  master.ID,
		PlayerID:  player.ID,
		RoundRef:  roundRef,
		Amount:    houseSide,
		CreatedAt: now,
	}
	if err := s.adjustments.Create(ctx, dbTx, adj); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, nil, apperror.ErrAlreadyProcessed()
		}
		return nil, nil, apperror.InternalError(fmt.Errorf("create adjustment: %w", err))
	}

	outcome := &ports.GameResultOutcome{Transaction: txn, Adjustment: adj}
	respJSON, err := json.Marshal(outcome)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	if err := s.idempRepo.Create(ctx, dbTx, &domain.IdempotencyLog{
		Key:          key,
		ResourceID:   txn.ID,
		ResponseJSON: respJSON,
		CreatedAt:    now,
	}); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, nil, apperror.ErrAlreadyProcessed()
		}
		return nil, nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return outcome, respJSON, nil
}

func (s *GameResultServiceImpl) storedOutcome(ctx context.Context, key string) (*ports.GameResultOutcome, error) {
	entry, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if entry == nil {
		return nil, nil
	}
	return decodeOutcome(entry.ResponseJSON)
}

func decodeOutcome(data []byte) (*ports.GameResultOutcome, error) {
	var outcome ports.GameResultOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached outcome: %w", err))
	}
	return &outcome, nil
}
