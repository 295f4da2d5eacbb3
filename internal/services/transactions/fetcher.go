// Package transactions fetches brokerage transaction history and keeps a
// reconciled per-account cache of it.
package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/interfaces"
	"github.com/bobmcallan/holdfast/internal/models"
)

const (
	DefaultMaxCalls    = 50
	DefaultPageSize    = 50
	DefaultRecentCount = 50
)

// Reasons a paginated fetch stopped.
const (
	StopHorizon    = "horizon"     // paged past the start of the window
	StopTotalCount = "total_count" // saw as many ids as upstream reported
	StopNoNew      = "no_new"      // a page contained only ids already seen
	StopExhausted  = "exhausted"   // upstream returned no Transaction list or reported no more
	StopNoMarker   = "no_marker"   // no cursor to request the next page
	StopError      = "error"       // a call failed; result is partial
	StopBudget     = "call_budget" // max calls reached; result may be partial
	StopCancelled  = "cancelled"   // context done; result is partial
)

// FetchResult is the outcome of a paginated fetch. Complete is false when
// the history may be truncated (call error, cancelled, budget or cursor exhausted).
type FetchResult struct {
	Transactions []models.Transaction
	Complete     bool
	Calls        int
	StopReason   string
	Err          error
}

// Fetcher pages through the upstream transaction endpoint.
type Fetcher struct {
	source   interfaces.TransactionSource
	logger   *common.Logger
	maxCalls int
	pageSize int
	now      func() time.Time
}

// NewFetcher creates a fetcher. Non-positive maxCalls or pageSize use the defaults.
func NewFetcher(source interfaces.TransactionSource, logger *common.Logger, maxCalls, pageSize int) *Fetcher {
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCalls
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Fetcher{
		source:   source,
		logger:   logger,
		maxCalls: maxCalls,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// WindowStart returns the inclusive lower bound of a daysBack window: the
// start of the day daysBack days before now.
func WindowStart(now time.Time, daysBack int) time.Time {
	d := now.AddDate(0, 0, -daysBack)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// FetchPaginated returns the unique transactions dated within the daysBack
// window, in upstream order. Errors never fail the fetch: whatever was
// gathered before the failure is returned with Complete=false.
func (f *Fetcher) FetchPaginated(ctx context.Context, accountID string, daysBack int) FetchResult {
	now := f.now()
	start := WindowStart(now, daysBack)

	result := FetchResult{Transactions: []models.Transaction{}}
	seen := make(map[string]bool)
	marker := ""
	var oldest time.Time
	haveOldest := false

	f.logger.Debug().Int("days_back", daysBack).Int("max_calls", f.maxCalls).Msg("Fetching transaction history")

	for result.Calls < f.maxCalls {
		if err := ctx.Err(); err != nil {
			result.StopReason, result.Err = StopCancelled, err
			break
		}
		result.Calls++

		page, err := f.source.GetTransactions(ctx, accountID, f.pageSize, marker)
		if err != nil {
			f.logger.Warn().Err(err).Int("call", result.Calls).Msg("Transaction page fetch failed, keeping partial history")
			result.StopReason, result.Err = StopError, err
			break
		}
		if page == nil || !page.HasTransactions {
			result.StopReason, result.Complete = StopExhausted, true
			break
		}

		newUnique, inRange := 0, 0
		for _, tx := range page.Transactions {
			if seen[tx.TransactionID] {
				continue
			}
			seen[tx.TransactionID] = true
			newUnique++

			d, ok := tx.Time()
			if !ok {
				continue
			}
			if !haveOldest || d.Before(oldest) {
				oldest, haveOldest = d, true
			}
			if !d.Before(start) && !d.After(now) {
				result.Transactions = append(result.Transactions, tx)
				inRange++
			}
		}

		f.logger.Debug().
			Int("call", result.Calls).
			Int("in_range", inRange).
			Int("new", newUnique).
			Int("duplicates", len(page.Transactions)-newUnique).
			Int("total", len(result.Transactions)).
			Msg("Transaction page fetched")

		if newUnique == 0 {
			result.StopReason, result.Complete = StopNoNew, true
			break
		}
		if haveOldest && oldest.Before(start) {
			result.StopReason, result.Complete = StopHorizon, true
			break
		}
		if page.TotalCount > 0 && len(seen) >= page.TotalCount {
			result.StopReason, result.Complete = StopTotalCount, true
			break
		}
		if !page.MoreTransactions && page.TotalCount == 0 {
			result.StopReason, result.Complete = StopExhausted, true
			break
		}

		switch {
		case page.Marker != "":
			marker = page.Marker
		case len(page.Transactions) > 0 && page.Transactions[len(page.Transactions)-1].TransactionID != "":
			marker = page.Transactions[len(page.Transactions)-1].TransactionID
		default:
			result.StopReason = StopNoMarker
			result.Err = fmt.Errorf("no marker or transaction id to continue pagination")
		}
		if result.StopReason != "" {
			break
		}
	}

	if result.StopReason == "" {
		result.StopReason = StopBudget
	}

	f.logger.Debug().
		Int("transactions", len(result.Transactions)).
		Int("calls", result.Calls).
		Str("stop", result.StopReason).
		Bool("complete", result.Complete).
		Msg("Transaction history fetched")

	return result
}

// FetchRecent returns the most recent page of up to count transactions.
func (f *Fetcher) FetchRecent(ctx context.Context, accountID string, count int) ([]models.Transaction, error) {
	if count <= 0 {
		count = DefaultRecentCount
	}
	page, err := f.source.GetTransactions(ctx, accountID, count, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent transactions: %w", err)
	}
	if page == nil || !page.HasTransactions {
		return []models.Transaction{}, nil
	}
	return page.Transactions, nil
}
