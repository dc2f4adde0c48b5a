package service

import (
	"context"
	"io"
	"testing"
	"time"

	"tiered-ledger/internal/adapter/storage/memory"
	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	powerhousePin = "111111"
	superPin      = "222222"
	masterPin     = "333333"
	playerPin     = "444444"
	testPassword  = "correct-horse"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ledgerFixture wires every ledger service over one in-memory store with a
// seeded powerhouse > super > master > player chain.
type ledgerFixture struct {
	store       *memory.Store
	accounts    *memory.AccountRepo
	txRepo      *memory.TransactionRepo
	modes       *memory.PaymentModeRepo
	settlements *memory.SettlementRepo
	adjustments *memory.PLAdjustmentRepo
	idempRepo   *memory.IdempotencyRepo

	accountSvc  *AccountServiceImpl
	creds       *CredentialServiceImpl
	ledger      *LedgerServiceImpl
	balances    *BalanceServiceImpl
	workflow    *WorkflowServiceImpl
	settlement  *SettlementServiceImpl
	games       *GameResultServiceImpl
	paymentMode *PaymentModeServiceImpl

	powerhouse *domain.Account
	super      *domain.Account
	master     *domain.Account
	player     *domain.Account
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	store := memory.NewStore()
	f := &ledgerFixture{
		store:       store,
		accounts:    memory.NewAccountRepo(store),
		txRepo:      memory.NewTransactionRepo(store),
		modes:       memory.NewPaymentModeRepo(store),
		settlements: memory.NewSettlementRepo(store),
		adjustments: memory.NewPLAdjustmentRepo(store),
		idempRepo:   memory.NewIdempotencyRepo(store),
	}

	log := newTestLogger()
	hashSvc := NewArgon2HashServiceWithParams(testArgon2Params)
	encSvc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	f.accountSvc = NewAccountService(f.accounts, hashSvc, log)
	f.creds = NewCredentialService(f.accounts, hashSvc, nil, 5, 15*time.Minute, log)
	f.balances = NewBalanceService(f.accounts, f.txRepo, f.adjustments, f.settlements, log)
	f.ledger = NewLedgerService(f.txRepo, f.balances, log)
	f.workflow = NewWorkflowService(f.accounts, f.modes, f.txRepo, f.ledger, f.creds, store, log)
	f.settlement = NewSettlementService(f.accounts, f.settlements, f.ledger, f.balances, f.creds, store, log)
	f.games = NewGameResultService(f.accounts, f.adjustments, f.idempRepo, nil, f.ledger, f.balances, store, log)
	f.paymentMode = NewPaymentModeService(f.accounts, f.modes, encSvc, log)

	f.powerhouse = f.createAccount(t, uuid.Nil, nil, domain.RolePowerhouse, "house", powerhousePin)
	f.super = f.createAccount(t, f.powerhouse.ID, &f.powerhouse.ID, domain.RoleSuper, "super1", superPin)
	f.master = f.createAccount(t, f.super.ID, &f.super.ID, domain.RoleMaster, "master1", masterPin)
	f.player = f.createAccount(t, f.master.ID, &f.master.ID, domain.RolePlayer, "player1", playerPin)
	return f
}

func (f *ledgerFixture) createAccount(t *testing.T, actor uuid.UUID, parent *uuid.UUID, role domain.Role, username, pin string) *domain.Account {
	t.Helper()
	acct, err := f.accountSvc.CreateAccount(context.Background(), ports.CreateAccountRequest{
		ActorID:  actor,
		ParentID: parent,
		Role:     role,
		Username: username,
		Password: testPassword,
		Pin:      pin,
	})
	require.NoError(t, err)
	return acct
}

// deposit credits accountID directly on behalf of its parent.
func (f *ledgerFixture) deposit(t *testing.T, initiator *domain.Account, pin string, accountID uuid.UUID, amount string) *domain.Transaction {
	t.Helper()
	txn, err := f.workflow.DirectDeposit(context.Background(), ports.DirectInput{
		InitiatorID: initiator.ID,
		AccountID:   accountID,
		Amount:      dec(amount),
		Pin:         pin,
	})
	require.NoError(t, err)
	return txn
}

func (f *ledgerFixture) reload(t *testing.T, id uuid.UUID) *domain.Account {
	t.Helper()
	acct, err := f.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, acct)
	return acct
}

func (f *ledgerFixture) countTransactions(t *testing.T) int64 {
	t.Helper()
	ids, err := f.balances.subtreeIDs(context.Background(), f.powerhouse)
	require.NoError(t, err)
	_, total, err := f.txRepo.List(context.Background(), ports.TransactionListParams{AccountIDs: ids})
	require.NoError(t, err)
	return total
}
