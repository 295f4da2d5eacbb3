package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/interfaces"
	"github.com/bobmcallan/holdfast/internal/models"
	"github.com/bobmcallan/holdfast/internal/storage"
)

// DefaultStaleWindow is how far back a cached transaction missing from the
// recent upstream window is considered settled and evicted.
const DefaultStaleWindow = 48 * time.Hour

// Compile-time interface check
var _ interfaces.TransactionService = (*Service)(nil)

// Service implements TransactionService on top of a cache store and an upstream source.
type Service struct {
	store       interfaces.TransactionCacheStore
	source      interfaces.TransactionSource
	logger      *common.Logger
	fetcher     *Fetcher
	maxCalls    int
	pageSize    int
	recentCount int
	staleWindow time.Duration
	now         func() time.Time
}

// Option configures the service
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithStaleWindow sets the eviction window for unconfirmed recent transactions.
func WithStaleWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleWindow = d
		}
	}
}

// WithRecentCount sets how many recent transactions are fetched to reconcile a deep cache.
func WithRecentCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentCount = n
		}
	}
}

// WithPagination sets the call budget and page size of full history fetches.
func WithPagination(maxCalls, pageSize int) Option {
	return func(s *Service) {
		s.maxCalls = maxCalls
		s.pageSize = pageSize
	}
}

// NewService creates a new transactions service
func NewService(store interfaces.TransactionCacheStore, source interfaces.TransactionSource, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		source:      source,
		logger:      logger,
		recentCount: DefaultRecentCount,
		staleWindow: DefaultStaleWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fetcher = NewFetcher(source, logger, s.maxCalls, s.pageSize)
	s.fetcher.now = s.now
	return s
}

// GetTransactions returns the account's transactions dated within the last
// daysBack days (from the start of that day up to now), newest first.
//
// Without a usable cache, or when the cache does not reach back to the start
// of the window, the full window is fetched page by page and persisted.
// Otherwise only the most recent page is fetched and reconciled: unseen
// transactions are added, and cached transactions inside the stale window
// that upstream no longer reports are evicted. Nothing is written when the
// cache is already up to date.
func (s *Service) GetTransactions(ctx context.Context, accountID string, daysBack int, forceRefresh bool) ([]models.Transaction, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	if daysBack < 0 {
		return nil, fmt.Errorf("days back must not be negative, got %d", daysBack)
	}

	log := s.logger.With().
		Str("refresh_id", uuid.NewString()).
		Str("account", storage.CacheKey(accountID)).
		Int("days_back", daysBack).
		Logger()

	now := s.now()
	start := WindowStart(now, daysBack)

	cache, err := s.store.Load(accountID)
	switch {
	case errors.Is(err, storage.ErrCacheNotFound):
		cache = nil
	case err != nil:
		log.Warn().Err(err).Msg("Transaction cache unreadable, fetching full history")
		cache = nil
	}

	if forceRefresh {
		log.Info().Msg("Force refresh requested, fetching full history")
		return s.fullRefresh(ctx, log, accountID, daysBack, cache), nil
	}

	if cache == nil || (len(cache.Transactions) == 0 && cache.CoveredSince == nil) {
		log.Info().Msg("No cached transactions, fetching full history")
		return s.fullRefresh(ctx, log, accountID, daysBack, cache), nil
	}

	if reach, ok := cacheReach(cache); !ok || reach.After(start) {
		log.Info().Time("window_start", start).Msg("Cache does not reach window start, fetching full history")
		return s.fullRefresh(ctx, log, accountID, daysBack, cache), nil
	}

	return s.reconcile(ctx, log, accountID, cache, now, start), nil
}

// cacheReach is how far back the cache is known to be complete: the oldest
// cached date, or the start of the last complete full fetch if that is older.
func cacheReach(cache *models.TransactionCache) (time.Time, bool) {
	reach, ok := cache.OldestDate()
	if cache.CoveredSince != nil && (!ok || cache.CoveredSince.Before(reach)) {
		return *cache.CoveredSince, true
	}
	return reach, ok
}

// fullRefresh fetches the whole window and overwrites the cache. A fetch that
// failed before returning anything leaves the existing cache untouched.
func (s *Service) fullRefresh(ctx context.Context, log zerolog.Logger, accountID string, daysBack int, existing *models.TransactionCache) []models.Transaction {
	now := s.now()
	start := WindowStart(now, daysBack)

	result := s.fetcher.FetchPaginated(ctx, accountID, daysBack)
	if !result.Complete {
		log.Warn().Err(result.Err).
			Str("stop", result.StopReason).
			Int("calls", result.Calls).
			Int("transactions", len(result.Transactions)).
			Msg("Transaction history may be incomplete")
	}

	if len(result.Transactions) == 0 && result.Err != nil && existing != nil && len(existing.Transactions) > 0 {
		log.Warn().Msg("Fetch failed with nothing returned, serving existing cache")
		return FilterByWindow(existing.Transactions, start, now)
	}

	txs := models.DedupeTransactions(result.Transactions)
	models.SortTransactionsNewestFirst(txs)

	var coveredSince *time.Time
	if result.Complete {
		coveredSince = &start
	}
	if err := s.store.Save(accountID, txs, coveredSince); err != nil {
		log.Error().Err(err).Msg("Failed to save transaction cache")
	}

	log.Info().Int("transactions", len(txs)).Int("calls", result.Calls).Msg("Transaction cache rebuilt")
	return FilterByWindow(txs, start, now)
}

// reconcile merges the most recent upstream page into a deep-enough cache.
func (s *Service) reconcile(ctx context.Context, log zerolog.Logger, accountID string, cache *models.TransactionCache, now, start time.Time) []models.Transaction {
	recent, err := s.fetcher.FetchRecent(ctx, accountID, s.recentCount)
	if err != nil {
		log.Warn().Err(err).Msg("Could not check for new transactions, using cache")
		return FilterByWindow(cache.Transactions, start, now)
	}
	if len(recent) == 0 {
		log.Info().Msg("No recent transactions returned, using cache")
		return FilterByWindow(cache.Transactions, start, now)
	}

	added := newTransactions(cache.Transactions, recent)
	stale := s.staleTransactions(cache.Transactions, recent, now)

	if len(added) == 0 && len(stale) == 0 {
		log.Debug().Msg("Transaction cache is up to date")
		return FilterByWindow(cache.Transactions, start, now)
	}

	merged := make([]models.Transaction, 0, len(added)+len(cache.Transactions))
	merged = append(merged, added...)
	for _, tx := range cache.Transactions {
		if !stale[tx.TransactionID] {
			merged = append(merged, tx)
		}
	}
	models.SortTransactionsNewestFirst(merged)
	merged = models.DedupeTransactions(merged)

	if err := s.store.Save(accountID, merged, cache.CoveredSince); err != nil {
		log.Error().Err(err).Msg("Failed to save transaction cache")
	}

	log.Info().Int("new", len(added)).Int("stale", len(stale)).Int("transactions", len(merged)).Msg("Transaction cache updated")
	return FilterByWindow(merged, start, now)
}

// newTransactions returns the recent transactions whose ids are not cached,
// in upstream order and without repeats.
func newTransactions(cached, recent []models.Transaction) []models.Transaction {
	known := make(map[string]bool, len(cached))
	for _, tx := range cached {
		known[tx.TransactionID] = true
	}
	var added []models.Transaction
	for _, tx := range recent {
		if tx.TransactionID == "" || known[tx.TransactionID] {
			continue
		}
		known[tx.TransactionID] = true
		added = append(added, tx)
	}
	return added
}

// staleTransactions returns the ids of cached transactions dated inside the
// stale window that the recent page no longer contains. When the page was
// full it may not reach back across the whole window, so only transactions at
// or after the page's oldest date are judged.
func (s *Service) staleTransactions(cached, recent []models.Transaction, now time.Time) map[string]bool {
	cutoff := now.Add(-s.staleWindow)

	present := make(map[string]bool, len(recent))
	for _, tx := range recent {
		present[tx.TransactionID] = true
	}

	truncated := len(recent) >= s.recentCount
	oldestRecent, haveOldest := models.OldestTransactionDate(recent)

	stale := make(map[string]bool)
	for _, tx := range cached {
		if present[tx.TransactionID] {
			continue
		}
		d, ok := tx.Time()
		if !ok || d.Before(cutoff) {
			continue
		}
		if truncated && (!haveOldest || d.Before(oldestRecent)) {
			continue
		}
		stale[tx.TransactionID] = true
	}
	return stale
}

// FilterByWindow keeps transactions dated within [start, end], preserving order.
// Transactions with unparseable dates are dropped.
func FilterByWindow(txs []models.Transaction, start, end time.Time) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		d, ok := tx.Time()
		if !ok {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// ClearCache removes the account's cache, or every cache when accountID is empty.
func (s *Service) ClearCache(ctx context.Context, accountID string) error {
	if accountID == "" {
		n, err := s.store.ClearAll()
		if err != nil {
			return err
		}
		s.logger.Info().Int("files", n).Msg("Cleared all transaction caches")
		return nil
	}
	if err := s.store.Clear(accountID); err != nil {
		return err
	}
	s.logger.Info().Str("account", storage.CacheKey(accountID)).Msg("Cleared transaction cache")
	return nil
}
