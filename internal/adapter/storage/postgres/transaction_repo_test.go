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

func strPtr(s string) *string { return &s }

func newTestTransaction(accountID uuid.UUID) *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Type:        domain.TransactionTypeDeposit,
		Direction:   domain.DirectionCredit,
		Amount:      decimal.RequireFromString("250.00"),
		Status:      domain.TransactionStatusPending,
		InitiatorID: accountID,
		Note:        strPtr("gcash slip 0042"),
		CreatedAt:   now,
	}
}

func txColumns() []string {
	return []string{"id", "account_id", "type", "direction", "amount", "status", "initiator_id", "approver_id",
		"payment_mode_id", "reject_reason", "reference", "note", "created_at", "processed_at"}
}

func txRow(rows *pgxmock.Rows, t *domain.Transaction) *pgxmock.Rows {
	return rows.AddRow(
		t.ID, t.AccountID, t.Type, t.Direction, t.Amount, t.Status,
		t.InitiatorID, t.ApproverID, t.PaymentModeID, t.RejectReason,
		t.Reference, t.Note, t.CreatedAt, t.ProcessedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(
			txn.ID, txn.AccountID, txn.Type, txn.Direction, txn.Amount, txn.Status,
			txn.InitiatorID, txn.ApproverID, txn.PaymentModeID, txn.RejectReason,
			txn.Reference, txn.Note, txn.CreatedAt, txn.ProcessedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_DuplicateReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())
	txn.Reference = strPtr("round-77")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	assert.True(t, errors.Is(err, ports.ErrDuplicate), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(txRow(pgxmock.NewRows(txColumns()), txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.True(t, txn.Amount.Equal(result.Amount))
	assert.Equal(t, "gcash slip 0042", *result.Note)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_MarkProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())
	require.NoError(t, txn.Transition(domain.TransactionStatusApproved, uuid.New(), nil, time.Now().UTC()))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status .+ AND status = 'pending'").
		WithArgs(txn.Status, txn.ApproverID, txn.RejectReason, txn.ProcessedAt, txn.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.MarkProcessed(context.Background(), dbTx, txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_MarkProcessed_AlreadyProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), txn.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkProcessed(context.Background(), dbTx, txn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending transaction not found")
}

func TestTransactionRepo_List_Paginated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	accountID := uuid.New()
	txn := newTestTransaction(accountID)
	status := domain.TransactionStatusPending
	ids := []uuid.UUID{accountID}

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(ids, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE account_id = ANY.+ LIMIT").
		WithArgs(ids, status, 2, 2).
		WillReturnRows(txRow(pgxmock.NewRows(txColumns()), txn))

	result, total, err := repo.List(context.Background(), ports.TransactionListParams{
		AccountIDs: ids,
		Status:     &status,
		Page:       2,
		PageSize:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, result, 1)
	assert.Equal(t, txn.ID, result[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListApproved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	accountID := uuid.New()
	first := newTestTransaction(accountID)
	first.Status = domain.TransactionStatusApproved
	second := newTestTransaction(accountID)
	second.Status = domain.TransactionStatusApproved
	second.Type = domain.TransactionTypeWithdrawal
	second.Direction = domain.DirectionDebit

	rows := pgxmock.NewRows(txColumns())
	txRow(rows, first)
	txRow(rows, second)

	mock.ExpectQuery("SELECT .+ FROM transactions .+ status = 'approved' ORDER BY processed_at").
		WithArgs(accountID).
		WillReturnRows(rows)

	result, err := repo.ListApproved(context.Background(), accountID)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, domain.DirectionDebit, result[1].Direction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT type, direction, COUNT").
		WithArgs(ids, from).
		WillReturnRows(pgxmock.NewRows([]string{"type", "direction", "count", "amount"}).
			AddRow(domain.TransactionTypeDeposit, domain.DirectionCredit, int64(4), decimal.RequireFromString("1800.00")).
			AddRow(domain.TransactionTypeWithdrawal, domain.DirectionDebit, int64(1), decimal.RequireFromString("300.00")))

	stats, err := repo.GetStats(context.Background(), ids, &from)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, domain.TransactionTypeDeposit, stats[0].Type)
	assert.Equal(t, int64(4), stats[0].Count)
	assert.True(t, stats[0].Amount.Equal(decimal.NewFromInt(1800)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
