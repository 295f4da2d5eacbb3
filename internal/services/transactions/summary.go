package transactions

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/holdfast/internal/models"
)

const summaryDateFormat = "01/02/2006"

// GetTransactionSummary describes the cached transactions in the window:
// counts per type, the date span and the net amount.
func (s *Service) GetTransactionSummary(ctx context.Context, accountID string, daysBack int) (*models.TransactionSummary, error) {
	txs, err := s.GetTransactions(ctx, accountID, daysBack, false)
	if err != nil {
		return nil, err
	}
	return Summarize(txs), nil
}

// Summarize builds a TransactionSummary from a transaction list.
func Summarize(txs []models.Transaction) *models.TransactionSummary {
	summary := &models.TransactionSummary{
		TotalTransactions: len(txs),
		TransactionTypes:  map[string]int{},
		NetAmount:         decimal.Zero,
	}
	if len(txs) == 0 {
		summary.DateRange = "No transactions"
		return summary
	}

	var dates []time.Time
	for _, tx := range txs {
		typ := tx.TransactionType
		if typ == "" {
			typ = "Unknown"
		}
		summary.TransactionTypes[typ]++
		summary.NetAmount = summary.NetAmount.Add(decimal.NewFromFloat(tx.Amount))

		if d, ok := tx.Time(); ok {
			dates = append(dates, d)
		}
	}

	if len(dates) == 0 {
		summary.DateRange = "No valid dates"
		return summary
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	oldest, newest := dates[0], dates[len(dates)-1]
	summary.OldestDate = &oldest
	summary.NewestDate = &newest
	summary.DateRange = oldest.Format(summaryDateFormat) + " - " + newest.Format(summaryDateFormat)
	return summary
}
