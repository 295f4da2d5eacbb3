package interfaces

import (
	"time"

	"github.com/bobmcallan/holdfast/internal/models"
)

// TransactionCacheStore persists one transaction cache per account.
type TransactionCacheStore interface {
	// Load returns the cached transactions. A missing file yields storage.ErrCacheNotFound;
	// a corrupt file is reported as an empty cache.
	Load(accountID string) (*models.TransactionCache, error)

	// Save overwrites the account's cache. coveredSince may be nil when the
	// history depth is unknown (e.g. a truncated fetch).
	Save(accountID string, txs []models.Transaction, coveredSince *time.Time) error

	// Clear removes one account's cache; ClearAll removes every cache file.
	Clear(accountID string) error
	ClearAll() (int, error)

	// Path returns the cache file path for an account.
	Path(accountID string) string
}
