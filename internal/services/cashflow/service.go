package cashflow

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/interfaces"
	"github.com/bobmcallan/holdfast/internal/models"
)

// Compile-time interface check
var _ interfaces.CashFlowService = (*Service)(nil)

// Service implements CashFlowService
type Service struct {
	transactions interfaces.TransactionService
	logger       *common.Logger
	now          func() time.Time
}

// NewService creates a new cashflow service
func NewService(transactions interfaces.TransactionService, logger *common.Logger) *Service {
	return &Service{
		transactions: transactions,
		logger:       logger,
		now:          time.Now,
	}
}

// GetCashFlowHistory returns one entry per calendar day from daysBack days
// ago through today, oldest first, including days with no cash flow.
func (s *Service) GetCashFlowHistory(ctx context.Context, accountID string, daysBack int) (*models.CashFlowHistory, error) {
	txs, err := s.transactions.GetTransactions(ctx, accountID, daysBack, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return BuildHistory(accountID, txs, s.now(), daysBack, s.logger), nil
}

// BuildHistory buckets classified transactions by calendar day in now's
// location. Transactions without a valid date or outside the window are
// skipped.
func BuildHistory(accountID string, txs []models.Transaction, now time.Time, daysBack int, logger *common.Logger) *models.CashFlowHistory {
	loc := now.Location()
	first := startOfDay(now.AddDate(0, 0, -daysBack))
	last := startOfDay(now)

	history := &models.CashFlowHistory{
		AccountID: accountID,
		Days:      []models.DailyCashFlow{},
		NetFlow:   decimal.Zero,
	}

	byDay := make(map[time.Time]*models.DailyCashFlow)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		history.Days = append(history.Days, models.DailyCashFlow{
			Date:           day,
			DailyFlow:      decimal.Zero,
			CumulativeFlow: decimal.Zero,
		})
	}
	for i := range history.Days {
		byDay[history.Days[i].Date] = &history.Days[i]
	}

	for _, tx := range txs {
		d, ok := tx.Time()
		if !ok {
			logger.Debug().Str("transaction_id", tx.TransactionID).Msg("Skipping transaction with invalid date")
			continue
		}
		d = d.In(loc)

		impact := ClassifyImpact(tx)
		if !impact.Known {
			logger.Debug().Str("type", tx.TransactionType).Float64("amount", tx.Amount).
				Msg("Unknown transaction type, counting as cash flow")
		}
		if impact.Amount.IsZero() {
			history.Ignored++
			continue
		}

		day, ok := byDay[startOfDay(d)]
		if !ok {
			continue
		}
		history.Processed++
		day.DailyFlow = day.DailyFlow.Add(impact.Amount)
		day.TransactionCount++
		day.Entries = append(day.Entries, models.CashFlowEntry{
			TransactionID: tx.TransactionID,
			Date:          d,
			Type:          tx.TransactionType,
			Amount:        decimal.NewFromFloat(tx.Amount),
			Description:   tx.Description,
			Impact:        impact.Amount,
		})
	}

	cumulative := decimal.Zero
	for i := range history.Days {
		cumulative = cumulative.Add(history.Days[i].DailyFlow)
		history.Days[i].CumulativeFlow = cumulative
	}
	history.NetFlow = cumulative

	logger.Debug().Str("account", accountID).Int("processed", history.Processed).
		Int("ignored", history.Ignored).Int("days", len(history.Days)).Msg("Cash flow history built")
	return history
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
