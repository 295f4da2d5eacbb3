package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/models"
)

type mockTransactionService struct {
	calls []string
	fail  map[string]bool
}

func (m *mockTransactionService) GetTransactions(_ context.Context, accountID string, _ int, _ bool) ([]models.Transaction, error) {
	m.calls = append(m.calls, accountID)
	if m.fail[accountID] {
		return nil, errors.New("upstream down")
	}
	return []models.Transaction{}, nil
}

func (m *mockTransactionService) GetTransactionSummary(_ context.Context, _ string, _ int) (*models.TransactionSummary, error) {
	return nil, nil
}

func (m *mockTransactionService) ClearCache(_ context.Context, _ string) error {
	return nil
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.CacheDir = t.TempDir()
	cfg.Logging.Outputs = nil
	cfg.Brokerage.BaseURL = "http://127.0.0.1:0"
	return cfg
}

func TestNewAppFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ExposureMappings = map[string]any{"TQQQ": "QQQ*3"}

	a, err := NewAppFromConfig(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.TransactionService)
	assert.NotNil(t, a.CashFlowService)
	assert.NotNil(t, a.Positions)
	exposures := a.ConcentrationService.Resolve("TQQQ")
	require.Len(t, exposures, 1)
	assert.Equal(t, "QQQ", exposures[0].Underlying)
}

func TestNewAppFromConfig_InvalidMappings(t *testing.T) {
	cfg := testConfig(t)
	cfg.ExposureMappings = map[string]any{"TQQQ": "QQQ*lots"}

	_, err := NewAppFromConfig(cfg)
	assert.ErrorContains(t, err, "exposure mappings")
}

func TestDaysBack(t *testing.T) {
	a := &App{Config: common.NewDefaultConfig()}
	assert.Equal(t, 14, a.DaysBack(14))
	assert.Equal(t, 7, a.DaysBack(0))

	a.Config.Transactions.DefaultDaysBack = 0
	assert.Equal(t, 7, a.DaysBack(-1))
}

func TestSyncAccounts_ContinuesPastFailures(t *testing.T) {
	svc := &mockTransactionService{fail: map[string]bool{"b": true}}

	n := syncAccounts(context.Background(), svc, []string{"a", "b", "c"}, 30, common.NewSilentLogger())

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b", "c"}, svc.calls)
}

func TestSyncAccounts_StopsWhenCancelled(t *testing.T) {
	svc := &mockTransactionService{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := syncAccounts(ctx, svc, []string{"a", "b"}, 30, common.NewSilentLogger())
	assert.Equal(t, 0, n)
	assert.Empty(t, svc.calls)
}

func TestStartSyncScheduler(t *testing.T) {
	cfg := common.NewDefaultConfig()
	a := &App{Config: cfg, Logger: common.NewSilentLogger(), TransactionService: &mockTransactionService{}}

	// Disabled without a schedule
	require.NoError(t, a.StartSyncScheduler())
	assert.Nil(t, a.scheduler)

	cfg.Sync.Accounts = []string{"a"}
	cfg.Sync.Schedule = "not a schedule"
	assert.Error(t, a.StartSyncScheduler())

	cfg.Sync.Schedule = "@every 1h"
	require.NoError(t, a.StartSyncScheduler())
	assert.NotNil(t, a.scheduler)
	assert.Len(t, a.scheduler.Entries(), 1)

	a.Close()
	assert.Nil(t, a.scheduler)
}

func TestWarmCache_DisabledByEnv(t *testing.T) {
	t.Setenv("HOLDFAST_WARM_CACHE", "off")
	svc := &mockTransactionService{}

	warmCache(context.Background(), svc, common.SyncConfig{Accounts: []string{"a"}}, common.NewSilentLogger())
	assert.Empty(t, svc.calls)
}

func TestWarmCache_RefreshesAccounts(t *testing.T) {
	svc := &mockTransactionService{}

	warmCache(context.Background(), svc, common.SyncConfig{Accounts: []string{"a", "b"}, DaysBack: 30}, common.NewSilentLogger())
	assert.Equal(t, []string{"a", "b"}, svc.calls)
}
