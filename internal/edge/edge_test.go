package edge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func alwaysActive(features map[string]float64, regime string) (bool, string, float64, error) {
	return true, "LONG", 0.8, nil
}

func TestEvaluateEntry_RegimeMismatch(t *testing.T) {
	e := New("e1", "test", 60_000, Advantage{}, alwaysActive, nil)
	e.Regimes = map[string]bool{"trend": true}
	res := e.EvaluateEntry(nil, "chop")
	assert.False(t, res.Active)
	assert.Equal(t, "regime_mismatch", res.Reason)
}

func TestEvaluateEntry_Retired(t *testing.T) {
	e := New("e1", "test", 60_000, Advantage{}, alwaysActive, nil)
	e.Status = StatusRetired
	res := e.EvaluateEntry(nil, "any")
	assert.False(t, res.Active)
	assert.Equal(t, "retired", res.Reason)
}

func TestEvaluateEntry_ErrorTrapped(t *testing.T) {
	failing := func(features map[string]float64, regime string) (bool, string, float64, error) {
		return false, "", 0, errors.New("boom")
	}
	e := New("e1", "test", 60_000, Advantage{}, failing, nil)
	res := e.EvaluateEntry(nil, "any")
	assert.False(t, res.Active)
	assert.Equal(t, "evaluation_error", res.Reason)
}

func TestEvaluateEntry_PanicTrapped(t *testing.T) {
	panicky := func(features map[string]float64, regime string) (bool, string, float64, error) {
		panic("kaboom")
	}
	e := New("e1", "test", 60_000, Advantage{}, panicky, nil)
	res := e.EvaluateEntry(nil, "any")
	assert.False(t, res.Active)
	assert.Equal(t, "evaluation_error", res.Reason)
}

func TestEvaluateExit_TimeHorizon(t *testing.T) {
	e := New("e1", "test", 1000, Advantage{}, alwaysActive, nil)
	res := e.EvaluateExit(nil, "any", 0, 2000)
	assert.True(t, res.Exit)
	assert.Equal(t, "time_horizon_exceeded", res.Reason)
}

func TestUpdateStats_AutoRetire(t *testing.T) {
	e := New("e1", "test", 60_000, Advantage{}, alwaysActive, nil)
	e.Status = StatusDeployed
	for i := 0; i < 60; i++ {
		e.UpdateStats(Trade{Return: -0.002, ReturnPct: -0.2})
	}
	assert.Equal(t, StatusRetired, e.Status)
	assert.Equal(t, 60, e.Stats.Trades)
	assert.Equal(t, 0, e.Stats.Wins)
}

func TestHealthScore_ZeroTrades(t *testing.T) {
	e := New("e1", "test", 60_000, Advantage{}, alwaysActive, nil)
	e.Confidence.Score = 0.42
	assert.Equal(t, 0.42, e.HealthScore())
}

func TestShouldRetire_LowWinRate(t *testing.T) {
	e := New("e1", "test", 60_000, Advantage{}, alwaysActive, nil)
	e.Status = StatusDeployed
	for i := 0; i < 30; i++ {
		ret := 0.001
		if i < 25 {
			ret = -0.0001 // mostly losses but small magnitude, avoid avgReturn rule
		}
		e.UpdateStats(Trade{Return: ret})
	}
	assert.True(t, e.ShouldRetire())
}

func TestRegistry_GetActiveEdges(t *testing.T) {
	r := NewRegistry()
	active := New("active", "a", 60_000, Advantage{}, alwaysActive, nil)
	inactive := New("inactive", "b", 60_000, Advantage{}, func(map[string]float64, string) (bool, string, float64, error) {
		return false, "", 0, nil
	}, nil)
	r.Register(active, nil)
	r.Register(inactive, nil)

	got := r.GetActiveEdges(nil, "any")
	assert.Len(t, got, 1)
	assert.Equal(t, "active", got[0].ID)
}

func TestRegistry_RetireUnderperformingEdges(t *testing.T) {
	r := NewRegistry()
	e := New("e1", "test", 60_000, Advantage{}, alwaysActive, nil)
	e.Status = StatusDeployed
	for i := 0; i < 35; i++ {
		e.UpdateStats(Trade{Return: -0.002})
	}
	r.Register(e, nil)

	retiredIDs := r.RetireUnderperformingEdges()
	assert.Contains(t, retiredIDs, "e1")
	assert.Equal(t, StatusRetired, e.Status)
}

func TestRegistry_GetStats(t *testing.T) {
	r := NewRegistry()
	r.Register(New("e1", "a", 1000, Advantage{}, alwaysActive, nil), nil)
	r.Register(New("e2", "b", 1000, Advantage{}, alwaysActive, nil), nil)
	stats := r.GetStats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus["CANDIDATE"])
}
