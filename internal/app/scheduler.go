package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/interfaces"
)

// StartSyncScheduler registers the periodic cache refresh from sync.schedule
// and starts it. An empty schedule or account list leaves it disabled.
func (a *App) StartSyncScheduler() error {
	cfg := a.Config.Sync
	if cfg.Schedule == "" || len(cfg.Accounts) == 0 {
		a.Logger.Info().Msg("Sync scheduler: disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		syncAccounts(ctx, a.TransactionService, cfg.Accounts, cfg.DaysBack, a.Logger)
	}); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", cfg.Schedule, err)
	}

	c.Start()
	a.scheduler = c
	a.Logger.Info().Str("schedule", cfg.Schedule).Int("accounts", len(cfg.Accounts)).Msg("Sync scheduler: started")
	return nil
}

// syncAccounts refreshes each account's cache in turn. A failing account is
// logged and does not stop the others.
func syncAccounts(ctx context.Context, svc interfaces.TransactionService, accounts []string, daysBack int, logger *common.Logger) int {
	start := time.Now()
	synced := 0

	for _, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		txs, err := svc.GetTransactions(ctx, account, daysBack, false)
		if err != nil {
			logger.Warn().Err(err).Msg("Sync: account refresh failed")
			continue
		}
		synced++
		logger.Debug().Int("transactions", len(txs)).Msg("Sync: account refreshed")
	}

	logger.Info().
		Int("accounts", synced).
		Dur("elapsed", time.Since(start)).
		Msg("Sync: complete")
	return synced
}
