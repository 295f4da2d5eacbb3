package interfaces

import (
	"context"

	"github.com/bobmcallan/holdfast/internal/models"
)

// TransactionService serves cached, reconciled transaction history.
type TransactionService interface {
	// GetTransactions returns transactions dated within the last daysBack days,
	// newest first. forceRefresh re-fetches the full window from upstream.
	GetTransactions(ctx context.Context, accountID string, daysBack int, forceRefresh bool) ([]models.Transaction, error)

	// GetTransactionSummary describes the transactions in the window.
	GetTransactionSummary(ctx context.Context, accountID string, daysBack int) (*models.TransactionSummary, error)

	// ClearCache removes the account's cache, or every cache when accountID is empty.
	ClearCache(ctx context.Context, accountID string) error
}

// ConcentrationService resolves positions to ultimate underlying exposures.
type ConcentrationService interface {
	// Resolve maps a symbol to its ultimate underlyings and cumulative factors.
	Resolve(symbol string) []models.Exposure

	// CalculateConcentrations aggregates exposure per ultimate underlying,
	// largest first. topN <= 0 returns every item.
	CalculateConcentrations(positions []models.Position, topN int) []models.ConcentrationItem

	// GetExposureChain returns one display chain per top-level mapping of symbol.
	GetExposureChain(symbol string) [][]models.ChainLink
}

// CashFlowService derives external cash flows from transaction history.
type CashFlowService interface {
	GetCashFlowHistory(ctx context.Context, accountID string, daysBack int) (*models.CashFlowHistory, error)
}
