package concentration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/holdfast/internal/models"
)

func newTestResolver(t *testing.T, raw map[string]any) *Resolver {
	t.Helper()
	store, err := ParseMappings(raw)
	require.NoError(t, err)
	return NewResolver(store)
}

func TestResolve_UnmappedIsLeaf(t *testing.T) {
	r := newTestResolver(t, nil)
	assert.Equal(t, []models.Exposure{{Underlying: "AAPL", Factor: 1.0}}, r.Resolve("aapl"))
}

func TestResolve_FactorMultiplication(t *testing.T) {
	r := newTestResolver(t, map[string]any{
		"A": "B*0.5",
		"B": "C*0.4",
	})
	got := r.Resolve("A")
	require.Len(t, got, 1)
	assert.Equal(t, "C", got[0].Underlying)
	assert.InDelta(t, 0.2, got[0].Factor, 1e-12)
}

func TestResolve_UnderlyingUpperCased(t *testing.T) {
	r := newTestResolver(t, map[string]any{
		"MSTY": "mstr",
		"MSTR": "Bitcoin",
	})
	assert.Equal(t, []models.Exposure{{Underlying: "BITCOIN", Factor: 1.0}}, r.Resolve("msty"))
}

func TestResolve_MultiExposureFanOut(t *testing.T) {
	r := newTestResolver(t, map[string]any{
		"A": []any{"B*0.3", "C*0.7"},
	})
	got := r.Resolve("A")
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Underlying)
	assert.Equal(t, "C", got[1].Underlying)
	assert.InDelta(t, 1.0, got[0].Factor+got[1].Factor, 1e-12)
}

func TestResolve_CycleTerminates(t *testing.T) {
	r := newTestResolver(t, map[string]any{
		"A": "B",
		"B": "A",
	})
	assert.Equal(t, []models.Exposure{{Underlying: "A", Factor: 1.0}}, r.Resolve("A"))
	assert.Equal(t, []models.Exposure{{Underlying: "B", Factor: 1.0}}, r.Resolve("B"))
}

func TestResolve_SelfLoop(t *testing.T) {
	r := newTestResolver(t, map[string]any{"A": "A*0.5"})
	assert.Equal(t, []models.Exposure{{Underlying: "A", Factor: 0.5}}, r.Resolve("A"))
}

func TestResolve_CycleKeepsFactors(t *testing.T) {
	r := newTestResolver(t, map[string]any{
		"A": "B*0.5",
		"B": "C*0.5",
		"C": "A*0.5",
	})
	got := r.Resolve("A")
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Underlying)
	assert.InDelta(t, 0.125, got[0].Factor, 1e-12)
}

func TestResolve_SiblingBranchesDoNotBlockEachOther(t *testing.T) {
	// Both branches of A pass through D; a shared visited set would cut the second.
	r := newTestResolver(t, map[string]any{
		"A": []any{"B*0.5", "C*0.5"},
		"B": "D",
		"C": "D",
		"D": "E*0.8",
	})
	got := r.Resolve("A")
	require.Len(t, got, 2)
	for _, e := range got {
		assert.Equal(t, "E", e.Underlying)
		assert.InDelta(t, 0.4, e.Factor, 1e-12)
	}
}

func TestResolve_DiamondThroughFanOut(t *testing.T) {
	r := newTestResolver(t, map[string]any{
		"FUND": []any{"ETF1*0.6", "ETF2*0.4"},
		"ETF1": []any{"NVDA*0.5", "AAPL*0.5"},
		"ETF2": []any{"NVDA*0.25", "MSFT*0.75"},
	})
	totals := map[string]float64{}
	for _, e := range r.Resolve("FUND") {
		totals[e.Underlying] += e.Factor
	}
	assert.InDelta(t, 0.4, totals["NVDA"], 1e-12)
	assert.InDelta(t, 0.3, totals["AAPL"], 1e-12)
	assert.InDelta(t, 0.3, totals["MSFT"], 1e-12)
}

func TestResolve_LongAcyclicChain(t *testing.T) {
	raw := map[string]any{}
	symbols := []string{"S0", "S1", "S2", "S3", "S4", "S5", "S6", "S7", "S8", "S9"}
	for i := 0; i < len(symbols)-1; i++ {
		raw[symbols[i]] = symbols[i+1] + "*0.5"
	}
	r := newTestResolver(t, raw)
	got := r.Resolve("S0")
	require.Len(t, got, 1)
	assert.Equal(t, "S9", got[0].Underlying)
	assert.InDelta(t, 1.0/512, got[0].Factor, 1e-15)
}
