package importance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorsFrom(feature string, values []float64) []map[string]float64 {
	out := make([]map[string]float64, len(values))
	for i, v := range values {
		out[i] = map[string]float64{feature: v}
	}
	return out
}

func TestAnalyze_InsufficientOutcomesReturnsNil(t *testing.T) {
	tr := New(10, 10)
	got := tr.Analyze(context.Background(), "e1", vectorsFrom("imbalance", []float64{1, 2, 3}), []float64{1, 2, 3})
	assert.Nil(t, got)
}

func TestAnalyze_PerfectPositiveCorrelation(t *testing.T) {
	tr := New(10, 10)
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	pnls := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	got := tr.Analyze(context.Background(), "e1", vectorsFrom("imbalance", values), pnls)
	require.NotNil(t, got)
	fa := got.Features["imbalance"]
	assert.InDelta(t, 1.0, fa.Correlation, 1e-9)
	assert.Equal(t, 0.01, fa.PValue)
	assert.Equal(t, 0.0, fa.EffectSize) // no losers present, effect undefined -> 0
	assert.InDelta(t, 0.5+0.3*0.99, fa.Importance, 1e-9)
}

func TestAnalyze_ZeroCorrelationForConstantFeature(t *testing.T) {
	tr := New(10, 10)
	values := make([]float64, 12)
	for i := range values {
		values[i] = 5 // constant
	}
	pnls := []float64{1, -1, 1, -1, 1, -1, 1, -1, 1, -1, 1, -1}

	got := tr.Analyze(context.Background(), "e1", vectorsFrom("spread", values), pnls)
	require.NotNil(t, got)
	fa := got.Features["spread"]
	assert.Equal(t, 0.0, fa.Correlation)
	assert.Equal(t, 0.5, fa.PValue)
}

func TestAnalyze_OnlyCommonFeaturesAnalyzed(t *testing.T) {
	tr := New(3, 10)
	vectors := []map[string]float64{
		{"a": 1, "b": 1},
		{"a": 2},
		{"a": 3, "b": 3},
	}
	got := tr.Analyze(context.Background(), "e1", vectors, []float64{1, -1, 1})
	require.NotNil(t, got)
	_, hasA := got.Features["a"]
	_, hasB := got.Features["b"]
	assert.True(t, hasA)
	assert.False(t, hasB, "b is absent from one vector and must be excluded")
}

func TestAnalyze_CanceledContextReturnsNil(t *testing.T) {
	tr := New(3, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	values := []float64{1, 2, 3}
	pnls := []float64{1, -1, 1}
	got := tr.Analyze(ctx, "e1", vectorsFrom("f", values), pnls)
	assert.Nil(t, got)
}

func TestQuartileWinRates_LastBinAbsorbsRemainder(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	pnls := []float64{1, 1, 1, -1, -1, -1, 1, 1, -1}
	rates := quartileWinRates(values, pnls)
	// n=9, binSize=2: bins sized [2,2,2,3] — the last bin absorbs the
	// extra element, so only it can show a /3 fraction.
	assert.Equal(t, 1.0, rates[0])
	assert.Equal(t, 0.5, rates[1])
	assert.Equal(t, 0.0, rates[2])
	assert.InDelta(t, 2.0/3.0, rates[3], 1e-9)
}

func TestHistory_BoundedToDepth(t *testing.T) {
	tr := New(3, 2)
	values := []float64{1, 2, 3}
	pnls := []float64{1, -1, 1}
	tr.Analyze(context.Background(), "e1", vectorsFrom("f", values), pnls)
	tr.Analyze(context.Background(), "e1", vectorsFrom("f", values), pnls)
	tr.Analyze(context.Background(), "e1", vectorsFrom("f", values), pnls)
	assert.Len(t, tr.History("e1"), 2)
}

func TestTrend_RisingFallingStable(t *testing.T) {
	tr := New(1, 10)
	tr.history["e1"] = []EdgeAnalysis{
		{Features: map[string]FeatureAnalysis{"f": {Importance: 0.2}}},
		{Features: map[string]FeatureAnalysis{"f": {Importance: 0.3}}},
		{Features: map[string]FeatureAnalysis{"f": {Importance: 0.5}}},
	}
	assert.Equal(t, Rising, tr.Trend("e1", "f"))

	tr.history["e2"] = []EdgeAnalysis{
		{Features: map[string]FeatureAnalysis{"f": {Importance: 0.6}}},
		{Features: map[string]FeatureAnalysis{"f": {Importance: 0.4}}},
	}
	assert.Equal(t, Falling, tr.Trend("e2", "f"))

	tr.history["e3"] = []EdgeAnalysis{
		{Features: map[string]FeatureAnalysis{"f": {Importance: 0.5}}},
		{Features: map[string]FeatureAnalysis{"f": {Importance: 0.52}}},
	}
	assert.Equal(t, Stable, tr.Trend("e3", "f"))
}
