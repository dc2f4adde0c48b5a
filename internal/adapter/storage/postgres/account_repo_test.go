package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount(role domain.Role, parentID *uuid.UUID) *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Account{
		ID:              uuid.New(),
		Role:            role,
		ParentID:        parentID,
		Username:        "player-" + uuid.NewString()[:8],
		PasswordHash:    "$argon2id$hash",
		PinHash:         "$argon2id$pin",
		MainBalance:     decimal.RequireFromString("150.25"),
		BonusBalance:    decimal.RequireFromString("10.00"),
		ExposureBalance: decimal.Zero,
		ExposureLimit:   decimal.RequireFromString("500.00"),
		PLBalance:       decimal.Zero,
		Status:          domain.AccountStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func accountColumnNames() []string {
	return []string{"id", "role", "parent_id", "username", "password_hash", "pin_hash",
		"main_balance", "bonus_balance", "exposure_balance", "exposure_limit", "pl_balance",
		"status", "created_at", "updated_at"}
}

func accountRow(rows *pgxmock.Rows, a *domain.Account) *pgxmock.Rows {
	return rows.AddRow(
		a.ID, a.Role, a.ParentID, a.Username, a.PasswordHash, a.PinHash,
		a.MainBalance, a.BonusBalance, a.ExposureBalance, a.ExposureLimit, a.PLBalance,
		a.Status, a.CreatedAt, a.UpdatedAt,
	)
}

func TestAccountRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	parent := uuid.New()
	acct := newTestAccount(domain.RolePlayer, &parent)

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(
			acct.ID, acct.Role, acct.ParentID, acct.Username, acct.PasswordHash, acct.PinHash,
			acct.MainBalance, acct.BonusBalance, acct.ExposureBalance, acct.ExposureLimit, acct.PLBalance,
			acct.Status, acct.CreatedAt, acct.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), acct))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_Create_DuplicateUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	acct := newTestAccount(domain.RolePowerhouse, nil)

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "accounts_username_key"})

	err = repo.Create(context.Background(), acct)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	parent := uuid.New()
	acct := newTestAccount(domain.RolePlayer, &parent)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(acct.ID).
		WillReturnRows(accountRow(pgxmock.NewRows(accountColumnNames()), acct))

	result, err := repo.GetByID(context.Background(), acct.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, acct.Username, result.Username)
	assert.Equal(t, domain.RolePlayer, result.Role)
	assert.True(t, acct.MainBalance.Equal(result.MainBalance))
	require.NotNil(t, result.ParentID)
	assert.Equal(t, parent, *result.ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByUsername_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE username").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(accountColumnNames()))

	result, err := repo.GetByUsername(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	acct := newTestAccount(domain.RoleSuper, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id = \\$1 FOR UPDATE").
		WithArgs(acct.ID).
		WillReturnRows(accountRow(pgxmock.NewRows(accountColumnNames()), acct))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), dbTx, acct.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, acct.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_ListDescendants(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	root := uuid.New()
	p1 := newTestAccount(domain.RolePlayer, &root)
	p2 := newTestAccount(domain.RolePlayer, &root)

	rows := pgxmock.NewRows(accountColumnNames())
	accountRow(rows, p1)
	accountRow(rows, p2)

	mock.ExpectQuery("WITH RECURSIVE tree").
		WithArgs(root, domain.RolePlayer).
		WillReturnRows(rows)

	result, err := repo.ListDescendants(context.Background(), root, domain.RolePlayer)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, p1.ID, result[0].ID)
	assert.Equal(t, p2.ID, result[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_ListChildren_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	parent := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE parent_id").
		WithArgs(parent).
		WillReturnRows(pgxmock.NewRows(accountColumnNames()))

	result, err := repo.ListChildren(context.Background(), parent)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpdateBalances(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	acct := newTestAccount(domain.RoleMaster, nil)
	acct.PLBalance = decimal.RequireFromString("-42.10")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET main_balance").
		WithArgs(acct.MainBalance, acct.BonusBalance, acct.ExposureBalance, acct.PLBalance, pgxmock.AnyArg(), acct.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.UpdateBalances(context.Background(), dbTx, acct))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpdateStatus_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE accounts SET status").
		WithArgs(domain.AccountStatusInactive, pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateStatus(context.Background(), id, domain.AccountStatusInactive)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpdatePinHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE accounts SET pin_hash").
		WithArgs("$argon2id$new", pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdatePinHash(context.Background(), id, "$argon2id$new"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
