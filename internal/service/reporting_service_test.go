package service

import (
	"context"
	"testing"
	"time"

	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodStart(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		period string
		want   *time.Time
	}{
		{"all", nil},
		{"", nil},
		{"day", ptrTime(now.AddDate(0, 0, -1))},
		{"week", ptrTime(now.AddDate(0, 0, -7))},
		{"month", ptrTime(time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			got, err := periodStart(tt.period, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := periodStart("year", now)
	assert.Equal(t, "REQ_001", apperror.CodeOf(err))
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestReportingService_AccountingReport(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	svc := NewReportingService(f.accounts, f.txRepo, f.balances)

	f.deposit(t, f.master, masterPin, f.player.ID, "500")
	f.deposit(t, f.super, superPin, f.master.ID, "200")
	_, err := f.workflow.CreateDeposit(ctx, ports.RequestInput{InitiatorID: f.player.ID, AccountID: f.player.ID, Amount: dec("10")})
	require.NoError(t, err)
	_, err = f.workflow.CreateWithdrawal(ctx, ports.RequestInput{InitiatorID: f.player.ID, AccountID: f.player.ID, Amount: dec("20")})
	require.NoError(t, err)
	_, err = f.games.RecordResult(ctx, ports.GameResult{PlayerID: f.player.ID, RoundRef: "rep-1", Amount: dec("-50")})
	require.NoError(t, err)

	report, err := svc.GetAccountingReport(ctx, f.super.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "all", report.Period)
	assert.Equal(t, int64(1), report.PendingDeposits)
	assert.Equal(t, int64(1), report.PendingWithdrawals)
	assert.True(t, dec("650").Equal(report.Balance.UsersBalance), report.Balance.UsersBalance.String())

	byKey := make(map[string]ports.TypeTotal)
	for _, tt := range report.Totals {
		byKey[string(tt.Type)+"/"+string(tt.Direction)] = tt
	}
	deposits := byKey[string(domain.TransactionTypeDeposit)+"/"+string(domain.DirectionCredit)]
	assert.Equal(t, int64(2), deposits.Count)
	assert.True(t, dec("700").Equal(deposits.Amount))
	losses := byKey[string(domain.TransactionTypeGameResult)+"/"+string(domain.DirectionDebit)]
	assert.True(t, dec("50").Equal(losses.Amount))

	playerReport, err := svc.GetAccountingReport(ctx, f.player.ID, "day")
	require.NoError(t, err)
	assert.True(t, dec("450").Equal(playerReport.Balance.TotalBalance))
}
