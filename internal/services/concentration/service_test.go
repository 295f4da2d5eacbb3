package concentration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/models"
)

func newTestService(t *testing.T, raw map[string]any) *Service {
	t.Helper()
	svc, err := NewService(raw, common.NewSilentLogger())
	require.NoError(t, err)
	return svc
}

// samplePortfolio mirrors a typical income-ETF heavy account.
func samplePortfolio() ([]models.Position, map[string]any) {
	positions := []models.Position{
		{Symbol: "MSTY", MarketValue: 10000, Quantity: 100, CurrentPrice: 100},
		{Symbol: "MSTR", MarketValue: 15000, Quantity: 50, CurrentPrice: 300},
		{Symbol: "BTCI", MarketValue: 5000, Quantity: 200, CurrentPrice: 25},
		{Symbol: "SPYG", MarketValue: 20000, Quantity: 100, CurrentPrice: 200},
		{Symbol: "NVDA", MarketValue: 8000, Quantity: 50, CurrentPrice: 160},
		{Symbol: "AAPL", MarketValue: 12000, Quantity: 60, CurrentPrice: 200},
	}
	mappings := map[string]any{
		"MSTY": "MSTR",
		"MSTR": "Bitcoin",
		"BTCI": "Bitcoin",
		"SPYG": []any{"NVDA*0.14", "MSFT*0.06", "AAPL*0.056"},
	}
	return positions, mappings
}

func TestNewService_InvalidMappingFails(t *testing.T) {
	_, err := NewService(map[string]any{"X": "Y*nope"}, common.NewSilentLogger())
	assert.Error(t, err)
}

func TestCalculateConcentrations_SamplePortfolio(t *testing.T) {
	positions, mappings := samplePortfolio()
	svc := newTestService(t, mappings)

	items := svc.CalculateConcentrations(positions, 0)
	require.Len(t, items, 4)

	assert.Equal(t, "BITCOIN", items[0].Underlying)
	assert.InDelta(t, 30000, items[0].TotalExposure, 1e-9)
	assert.InDelta(t, 30000.0/70000*100, items[0].Percentage, 1e-9)
	assert.Len(t, items[0].ContributingPositions, 3)
	assert.Equal(t, []string{"MSTR", "MSTY", "BTCI"}, items[0].ContributingSymbols())

	assert.Equal(t, "AAPL", items[1].Underlying)
	assert.InDelta(t, 12000+20000*0.056, items[1].TotalExposure, 1e-9)

	assert.Equal(t, "NVDA", items[2].Underlying)
	assert.InDelta(t, 8000+20000*0.14, items[2].TotalExposure, 1e-9)

	assert.Equal(t, "MSFT", items[3].Underlying)
	assert.InDelta(t, 1200, items[3].TotalExposure, 1e-9)

	spygAAPL := items[1].ContributingPositions[0]
	assert.Equal(t, models.Contribution{
		Symbol:        "SPYG",
		MarketValue:   20000,
		ExposureValue: 20000 * 0.056,
		Factor:        0.056,
		Quantity:      100,
		CurrentPrice:  200,
	}, spygAAPL)
}

func TestCalculateConcentrations_ConservationForSingleChains(t *testing.T) {
	svc := newTestService(t, map[string]any{
		"MSTY": "MSTR",
		"MSTR": "Bitcoin",
		"QQQ":  "NDX",
	})
	positions := []models.Position{
		{Symbol: "MSTY", MarketValue: 1234.56},
		{Symbol: "MSTR", MarketValue: 789.01},
		{Symbol: "qqq", MarketValue: 4321.09},
		{Symbol: "VTI", MarketValue: 10.5},
	}

	items := svc.CalculateConcentrations(positions, 0)

	sumExposure, sumPct := 0.0, 0.0
	for _, it := range items {
		sumExposure += it.TotalExposure
		sumPct += it.Percentage
	}
	assert.InDelta(t, 1234.56+789.01+4321.09+10.5, sumExposure, 1e-9)
	assert.InDelta(t, 100.0, sumPct, 1e-9)
}

func TestCalculateConcentrations_EqualSplit(t *testing.T) {
	svc := newTestService(t, nil)
	items := svc.CalculateConcentrations([]models.Position{
		{Symbol: "AAA", MarketValue: 500},
		{Symbol: "BBB", MarketValue: 500},
	}, 0)

	require.Len(t, items, 2)
	assert.Equal(t, 50.0, items[0].Percentage)
	assert.Equal(t, 50.0, items[1].Percentage)
	assert.Equal(t, "AAA", items[0].Underlying, "ties keep first-seen order")
	assert.Equal(t, "BBB", items[1].Underlying)
}

func TestCalculateConcentrations_EmptyAndZero(t *testing.T) {
	svc := newTestService(t, nil)

	assert.Empty(t, svc.CalculateConcentrations(nil, 0))
	assert.Empty(t, svc.CalculateConcentrations([]models.Position{}, 3))
	assert.Empty(t, svc.CalculateConcentrations([]models.Position{
		{Symbol: "AAA", MarketValue: 0},
		{Symbol: "BBB", MarketValue: 0},
	}, 0))
}

func TestCalculateConcentrations_SkipsZeroValuePositions(t *testing.T) {
	svc := newTestService(t, nil)
	items := svc.CalculateConcentrations([]models.Position{
		{Symbol: "AAA", MarketValue: 100},
		{Symbol: "ZERO", MarketValue: 0},
	}, 0)
	require.Len(t, items, 1)
	assert.Equal(t, "AAA", items[0].Underlying)
	assert.Equal(t, 100.0, items[0].Percentage)
}

func TestCalculateConcentrations_TopN(t *testing.T) {
	positions, mappings := samplePortfolio()
	svc := newTestService(t, mappings)

	full := svc.CalculateConcentrations(positions, 0)
	top := svc.CalculateConcentrations(positions, 2)

	require.Len(t, top, 2)
	assert.Equal(t, full[:2], top)

	assert.Len(t, svc.CalculateConcentrations(positions, 10), len(full), "topN larger than result returns everything")
}

func TestCalculateConcentrations_NonPositiveTopNReturnsAll(t *testing.T) {
	positions, mappings := samplePortfolio()
	svc := newTestService(t, mappings)

	full := svc.CalculateConcentrations(positions, 0)
	require.NotEmpty(t, full)
	assert.Equal(t, full, svc.CalculateConcentrations(positions, -3))
	assert.Greater(t, len(full), 2)
}

func TestCalculateConcentrations_MultiExposureDoesNotPartition(t *testing.T) {
	svc := newTestService(t, map[string]any{"X": []any{"A", "B"}})
	items := svc.CalculateConcentrations([]models.Position{{Symbol: "X", MarketValue: 100}}, 0)

	require.Len(t, items, 2)
	assert.Equal(t, 100.0, items[0].TotalExposure)
	assert.Equal(t, 100.0, items[1].TotalExposure)
	assert.Equal(t, 100.0, items[0].Percentage)
}

func TestGetExposureChain_Unmapped(t *testing.T) {
	svc := newTestService(t, nil)
	assert.Equal(t, [][]models.ChainLink{{{Symbol: "AAPL", Factor: 1.0}}}, svc.GetExposureChain("AAPL"))
}

func TestGetExposureChain_SingleChain(t *testing.T) {
	svc := newTestService(t, map[string]any{
		"MSTY": "MSTR*0.9",
		"MSTR": "Bitcoin*2",
	})
	chains := svc.GetExposureChain("msty")
	require.Len(t, chains, 1)
	assert.Equal(t, []models.ChainLink{
		{Symbol: "MSTY", Factor: 1.0},
		{Symbol: "MSTR", Factor: 0.9},
		{Symbol: "BITCOIN", Factor: 1.8},
	}, chains[0])
}

func TestGetExposureChain_MultipleTopLevel(t *testing.T) {
	svc := newTestService(t, map[string]any{
		"SPYG": []any{"NVDA*0.14", "MSFT*0.06"},
	})
	chains := svc.GetExposureChain("SPYG")
	require.Len(t, chains, 2)
	assert.Equal(t, []models.ChainLink{{Symbol: "SPYG", Factor: 1}, {Symbol: "NVDA", Factor: 0.14}}, chains[0])
	assert.Equal(t, []models.ChainLink{{Symbol: "SPYG", Factor: 1}, {Symbol: "MSFT", Factor: 0.06}}, chains[1])
}

func TestGetExposureChain_FollowsOnlyFirstSubMapping(t *testing.T) {
	svc := newTestService(t, map[string]any{
		"FUND": "ETF",
		"ETF":  []any{"NVDA*0.5", "AAPL*0.5"},
	})
	chains := svc.GetExposureChain("FUND")
	require.Len(t, chains, 1)
	assert.Equal(t, []models.ChainLink{
		{Symbol: "FUND", Factor: 1},
		{Symbol: "ETF", Factor: 1},
		{Symbol: "NVDA", Factor: 0.5},
	}, chains[0])

	// Aggregation still sees both underlyings.
	assert.Len(t, svc.Resolve("FUND"), 2)
}

func TestGetExposureChain_CycleStops(t *testing.T) {
	svc := newTestService(t, map[string]any{
		"A": "B",
		"B": "C",
		"C": "A",
	})
	chains := svc.GetExposureChain("A")
	require.Len(t, chains, 1)
	assert.Equal(t, []models.ChainLink{
		{Symbol: "A", Factor: 1},
		{Symbol: "B", Factor: 1},
		{Symbol: "C", Factor: 1},
	}, chains[0])
}
