package cashflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/models"
)

// --- Mock transaction service ---

type mockTransactionService struct {
	txs      []models.Transaction
	err      error
	daysBack int
}

func (m *mockTransactionService) GetTransactions(_ context.Context, _ string, daysBack int, _ bool) ([]models.Transaction, error) {
	m.daysBack = daysBack
	return m.txs, m.err
}

func (m *mockTransactionService) GetTransactionSummary(_ context.Context, _ string, _ int) (*models.TransactionSummary, error) {
	return nil, nil
}

func (m *mockTransactionService) ClearCache(_ context.Context, _ string) error {
	return nil
}

var testNow = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

func tx(id, typ, desc string, amount float64, at time.Time) models.Transaction {
	return models.Transaction{
		TransactionID:   id,
		TransactionDate: models.NewEpochMillis(at),
		TransactionType: typ,
		Amount:          amount,
		Description:     desc,
	}
}

// --- ClassifyImpact ---

func TestClassifyImpact(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		desc   string
		amount float64
		want   string
		known  bool
	}{
		{"ach deposit", "Transfer", "ACH DEPOSIT REF 123", 1000, "1000", true},
		{"ach withdrawal", "Transfer", "ACH WITHDRAWAL", -500, "-500", true},
		{"online transfer credit", "Online Transfer", "credit from checking", 250, "250", true},
		{"margin sweep", "Misc", "TRNSFR CASH TO MARGIN", -300, "0", true},
		{"generic transfer", "Transfer", "journal", 75, "0", true},
		{"bought", "Bought", "AAPL", -1500.25, "0", true},
		{"sold", "Sold", "MSFT", 900, "0", true},
		{"dividend", "Dividend", "VTI QUARTERLY", 12.34, "12.34", true},
		{"interest", "Interest Income", "", 0.56, "0.56", true},
		{"fee", "Service Fee", "", -9.99, "-9.99", true},
		{"unknown", "Adjustment", "", 5, "5", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyImpact(tx("1", tt.typ, tt.desc, tt.amount, testNow))
			assert.Equal(t, tt.want, got.Amount.String())
			assert.Equal(t, tt.known, got.Known)
		})
	}
}

// --- GetCashFlowHistory ---

func TestGetCashFlowHistory(t *testing.T) {
	svc := NewService(&mockTransactionService{txs: []models.Transaction{
		tx("1", "Dividend", "", 10, testNow.Add(-time.Hour)),
		tx("2", "Bought", "", -100, testNow.Add(-2*time.Hour)),
		tx("3", "Fee", "", -2.5, testNow.AddDate(0, 0, -2)),
		tx("4", "Transfer", "ACH DEPOSIT", 500, testNow.AddDate(0, 0, -2)),
	}}, common.NewSilentLogger())
	svc.now = func() time.Time { return testNow }

	h, err := svc.GetCashFlowHistory(context.Background(), "acct", 3)
	require.NoError(t, err)

	require.Len(t, h.Days, 4)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), h.Days[0].Date)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), h.Days[3].Date)

	assert.True(t, h.Days[0].DailyFlow.IsZero())
	assert.Equal(t, "497.5", h.Days[1].DailyFlow.String())
	assert.Equal(t, 2, h.Days[1].TransactionCount)
	assert.Equal(t, "497.5", h.Days[2].CumulativeFlow.String())
	assert.Equal(t, "10", h.Days[3].DailyFlow.String())
	assert.Equal(t, "507.5", h.Days[3].CumulativeFlow.String())

	assert.Equal(t, "507.5", h.NetFlow.String())
	assert.Equal(t, 3, h.Processed)
	assert.Equal(t, 1, h.Ignored)
}

func TestGetCashFlowHistory_SkipsInvalidDates(t *testing.T) {
	bad := tx("1", "Dividend", "", 10, testNow)
	bad.TransactionDate = "soon"
	h := BuildHistory("acct", []models.Transaction{bad}, testNow, 0, common.NewSilentLogger())

	require.Len(t, h.Days, 1)
	assert.True(t, h.NetFlow.IsZero())
	assert.Equal(t, 0, h.Processed)
}

func TestGetCashFlowHistory_Empty(t *testing.T) {
	h := BuildHistory("acct", nil, testNow, 7, common.NewSilentLogger())
	assert.Len(t, h.Days, 8)
	assert.True(t, h.NetFlow.IsZero())
}

func TestGetCashFlowHistory_Error(t *testing.T) {
	svc := NewService(&mockTransactionService{err: errors.New("boom")}, common.NewSilentLogger())
	_, err := svc.GetCashFlowHistory(context.Background(), "acct", 7)
	assert.ErrorContains(t, err, "boom")
}
