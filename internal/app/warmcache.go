package app

import (
	"context"
	"os"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/interfaces"
)

// warmCache refreshes the sync accounts once on startup so the first query
// is served from cache.
func warmCache(ctx context.Context, svc interfaces.TransactionService, cfg common.SyncConfig, logger *common.Logger) {
	if os.Getenv("HOLDFAST_WARM_CACHE") == "off" {
		logger.Info().Msg("Warm cache: disabled via HOLDFAST_WARM_CACHE=off")
		return
	}
	if len(cfg.Accounts) == 0 {
		logger.Info().Msg("Warm cache: no sync accounts configured, skipping")
		return
	}

	logger.Info().Int("accounts", len(cfg.Accounts)).Msg("Warm cache: starting")
	syncAccounts(ctx, svc, cfg.Accounts, cfg.DaysBack, logger)
}
