// Package storage provides file-based persistence for transaction caches.
package storage

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/interfaces"
	"github.com/bobmcallan/holdfast/internal/models"
)

// ErrCacheNotFound is returned by Load when an account has no cache file.
var ErrCacheNotFound = errors.New("transaction cache not found")

const (
	cacheFilePrefix = "transactions_"
	cacheFileSuffix = ".json"
)

// Compile-time interface check
var _ interfaces.TransactionCacheStore = (*TransactionFileStore)(nil)

// TransactionFileStore keeps one JSON cache file per account under a directory.
type TransactionFileStore struct {
	dir    string
	logger *common.Logger
	now    func() time.Time
}

// NewTransactionFileStore creates the store and ensures the cache directory exists.
func NewTransactionFileStore(logger *common.Logger, dir string) (*TransactionFileStore, error) {
	if dir == "" {
		dir = ".cache"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	logger.Debug().Str("path", dir).Msg("Transaction cache store opened")
	return &TransactionFileStore{dir: dir, logger: logger, now: time.Now}, nil
}

// CacheKey returns the filename-safe key for an account: the first 8 hex
// characters of its MD5. Collisions are possible and accepted.
func CacheKey(accountID string) string {
	sum := md5.Sum([]byte(accountID))
	return hex.EncodeToString(sum[:])[:8]
}

// Path returns the cache file path for an account.
func (s *TransactionFileStore) Path(accountID string) string {
	return filepath.Join(s.dir, cacheFilePrefix+CacheKey(accountID)+cacheFileSuffix)
}

// Load reads the account's cache. Corrupt files are logged and treated as empty.
func (s *TransactionFileStore) Load(accountID string) (*models.TransactionCache, error) {
	path := s.Path(accountID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cache models.TransactionCache
	if len(data) == 0 {
		s.logger.Warn().Str("path", path).Msg("Transaction cache is empty, will rebuild")
		return &models.TransactionCache{Transactions: []models.Transaction{}}, nil
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Transaction cache corrupted, will rebuild")
		return &models.TransactionCache{Transactions: []models.Transaction{}}, nil
	}
	if cache.Transactions == nil {
		cache.Transactions = []models.Transaction{}
	}
	return &cache, nil
}

// Save writes the account's cache atomically.
func (s *TransactionFileStore) Save(accountID string, txs []models.Transaction, coveredSince *time.Time) error {
	if txs == nil {
		txs = []models.Transaction{}
	}
	now := s.now()
	cache := models.TransactionCache{
		Transactions: txs,
		LastUpdated:  &now,
		CoveredSince: coveredSince,
	}
	if err := s.writeJSON(s.Path(accountID), cache); err != nil {
		return err
	}

	s.logger.Debug().Str("path", s.Path(accountID)).Int("transactions", len(txs)).Msg("Transaction cache saved")
	return nil
}

// Clear removes one account's cache file. A missing file is not an error.
func (s *TransactionFileStore) Clear(accountID string) error {
	if err := os.Remove(s.Path(accountID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache: %w", err)
	}
	return nil
}

// ClearAll removes every transaction cache file in the directory and returns the count.
func (s *TransactionFileStore) ClearAll() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list cache directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, cacheFilePrefix) || !strings.HasSuffix(name, cacheFileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

// writeJSON marshals data to indented JSON and writes it atomically:
// temp file in the same directory, then rename over the target.
func (s *TransactionFileStore) writeJSON(target string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')

	tmpFile, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(jsonData); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
