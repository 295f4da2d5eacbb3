package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/holdfast/internal/clients/brokerage"
	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/interfaces"
	"github.com/bobmcallan/holdfast/internal/services/cashflow"
	"github.com/bobmcallan/holdfast/internal/services/concentration"
	"github.com/bobmcallan/holdfast/internal/services/transactions"
	"github.com/bobmcallan/holdfast/internal/storage"
)

// App holds all initialized services and clients.
// It is the shared core used by the CLI subcommands and the HTTP server.
type App struct {
	Config               *common.Config
	Logger               *common.Logger
	Store                interfaces.TransactionCacheStore
	Transactions         interfaces.TransactionSource
	Positions            interfaces.PositionSource
	TransactionService   interfaces.TransactionService
	ConcentrationService interfaces.ConcentrationService
	CashFlowService      interfaces.CashFlowService
	StartupTime          time.Time

	scheduler       *cron.Cron
	warmCacheCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, HOLDFAST_CONFIG,
// holdfast.toml next to the binary, then config/holdfast.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("HOLDFAST_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "holdfast.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/holdfast.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes storage, the brokerage client
// and all services. configPath may be empty, in which case the default
// resolution logic is used.
func NewApp(configPath string) (*App, error) {
	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewAppFromConfig(config)
}

// NewAppFromConfig initializes the app from an already loaded config.
func NewAppFromConfig(config *common.Config) (*App, error) {
	startupStart := time.Now()

	logger := common.NewLoggerFromConfig(config.Logging)

	store, err := storage.NewTransactionFileStore(logger, config.Storage.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if config.Brokerage.Token == "" {
		logger.Warn().Msg("Brokerage token not configured - upstream requests may be rejected")
	}
	client := brokerage.NewClientFromConfig(config.Brokerage, logger)

	concentrationService, err := concentration.NewService(config.ExposureMappings, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid exposure mappings: %w", err)
	}

	a := NewAppWithSources(config, logger, store, client, client, concentrationService)
	a.StartupTime = startupStart

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// NewAppWithSources wires the services over the given store and upstream sources.
func NewAppWithSources(config *common.Config, logger *common.Logger, store interfaces.TransactionCacheStore, txSource interfaces.TransactionSource, positions interfaces.PositionSource, concentrationService interfaces.ConcentrationService) *App {
	txCfg := config.Transactions
	transactionService := transactions.NewService(store, txSource, logger,
		transactions.WithPagination(txCfg.MaxCalls, txCfg.PageSize),
		transactions.WithRecentCount(txCfg.RecentCount),
		transactions.WithStaleWindow(txCfg.GetStaleWindow()),
	)

	return &App{
		Config:               config,
		Logger:               logger,
		Store:                store,
		Transactions:         txSource,
		Positions:            positions,
		TransactionService:   transactionService,
		ConcentrationService: concentrationService,
		CashFlowService:      cashflow.NewService(transactionService, logger),
		StartupTime:          time.Now(),
	}
}

// DaysBack returns days when positive, otherwise the configured default.
func (a *App) DaysBack(days int) int {
	if days > 0 {
		return days
	}
	if a.Config.Transactions.DefaultDaysBack > 0 {
		return a.Config.Transactions.DefaultDaysBack
	}
	return 7
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, cancel warm cache.
func (a *App) Close() {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
		a.scheduler = nil
	}
	if a.warmCacheCancel != nil {
		a.warmCacheCancel()
		a.warmCacheCancel = nil
	}
}

// StartWarmCache launches the background cache warming goroutine.
func (a *App) StartWarmCache() {
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	a.warmCacheCancel = warmCancel
	go func() {
		defer warmCancel()
		warmCache(warmCtx, a.TransactionService, a.Config.Sync, a.Logger)
	}()
}
