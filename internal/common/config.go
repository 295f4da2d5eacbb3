// Package common provides shared utilities for Holdfast
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for Holdfast
type Config struct {
	Environment      string             `toml:"environment" yaml:"environment"`
	Server           ServerConfig       `toml:"server" yaml:"server"`
	Storage          StorageConfig      `toml:"storage" yaml:"storage"`
	Brokerage        BrokerageConfig    `toml:"brokerage" yaml:"brokerage"`
	Transactions     TransactionsConfig `toml:"transactions" yaml:"transactions"`
	Sync             SyncConfig         `toml:"sync" yaml:"sync"`
	Logging          LoggingConfig      `toml:"logging" yaml:"logging"`
	ExposureMappings map[string]any     `toml:"exposure_mappings" yaml:"exposure_mappings"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	Port int    `toml:"port" yaml:"port"`
}

// StorageConfig holds the location of the per-account transaction caches.
type StorageConfig struct {
	CacheDir string `toml:"cache_dir" yaml:"cache_dir"`
}

// BrokerageConfig holds brokerage API configuration
type BrokerageConfig struct {
	BaseURL          string `toml:"base_url" yaml:"base_url"`
	Token            string `toml:"token" yaml:"token"`
	RateLimit        int    `toml:"rate_limit" yaml:"rate_limit"`
	Timeout          string `toml:"timeout" yaml:"timeout"`
	TransactionsPath string `toml:"transactions_path" yaml:"transactions_path"` // JSONPath to the transaction list envelope
	PositionsPath    string `toml:"positions_path" yaml:"positions_path"`       // JSONPath to the account portfolio list
}

// GetTimeout parses and returns the timeout duration
func (c *BrokerageConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// TransactionsConfig tunes pagination and cache reconciliation.
type TransactionsConfig struct {
	MaxCalls        int    `toml:"max_calls" yaml:"max_calls"`
	PageSize        int    `toml:"page_size" yaml:"page_size"`
	RecentCount     int    `toml:"recent_count" yaml:"recent_count"`
	StaleWindow     string `toml:"stale_window" yaml:"stale_window"`
	DefaultDaysBack int    `toml:"default_days_back" yaml:"default_days_back"`
}

// GetStaleWindow parses and returns the stale eviction window
func (c *TransactionsConfig) GetStaleWindow() time.Duration {
	d, err := time.ParseDuration(c.StaleWindow)
	if err != nil || d <= 0 {
		return 48 * time.Hour
	}
	return d
}

// SyncConfig holds the background cache refresh schedule.
type SyncConfig struct {
	Schedule string   `toml:"schedule" yaml:"schedule"` // cron spec, e.g. "@every 30m"; empty disables
	Accounts []string `toml:"accounts" yaml:"accounts"`
	DaysBack int      `toml:"days_back" yaml:"days_back"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level" yaml:"level"`
	Format   string   `toml:"format" yaml:"format"`
	Outputs  []string `toml:"outputs" yaml:"outputs"`
	FilePath string   `toml:"file_path" yaml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8484,
		},
		Storage: StorageConfig{
			CacheDir: ".cache",
		},
		Brokerage: BrokerageConfig{
			BaseURL:          "https://api.etrade.com",
			RateLimit:        2,
			Timeout:          "30s",
			TransactionsPath: "$.TransactionListResponse",
			PositionsPath:    "$.PortfolioResponse.AccountPortfolio",
		},
		Transactions: TransactionsConfig{
			MaxCalls:        50,
			PageSize:        50,
			RecentCount:     50,
			StaleWindow:     "48h",
			DefaultDaysBack: 7,
		},
		Sync: SyncConfig{
			DaysBack: 30,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"console"},
		},
		ExposureMappings: map[string]any{},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Files ending in .yml or .yaml are read as YAML, everything else as TOML.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yml", ".yaml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.ExposureMappings == nil {
		config.ExposureMappings = map[string]any{}
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("HOLDFAST_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("HOLDFAST_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("HOLDFAST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("HOLDFAST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if dir := os.Getenv("HOLDFAST_CACHE_DIR"); dir != "" {
		config.Storage.CacheDir = dir
	}

	if v := os.Getenv("HOLDFAST_BROKERAGE_URL"); v != "" {
		config.Brokerage.BaseURL = v
	}
	if v := os.Getenv("HOLDFAST_BROKERAGE_TOKEN"); v != "" {
		config.Brokerage.Token = v
	}

	if v := os.Getenv("HOLDFAST_STALE_WINDOW"); v != "" {
		config.Transactions.StaleWindow = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
