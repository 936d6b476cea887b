// Package streamfeature implements the per-symbol streaming feature
// registry: incremental operators driven one event at a time, composed
// into a DAG of raw and derived features with warm-up and reset semantics.
// The incremental-smoothing style (EMA/RSI/ATR over a running window)
// mirrors the indicator package in internal/domain/indicators/
// technical.go; the regime-vote shape for the *Regime operators mirrors
// internal/domain/regime/detector.go.
package streamfeature

import "github.com/edgecore/quantedge/internal/bbo"

// Operator is a raw incremental feature: it consumes events directly.
// OnEvent returns (value, false) while warming up; once ok is true for an
// event, every later event from the same operator instance must also
// report ok=true (warm-up monotonicity), until Reset.
type Operator interface {
	Name() string
	OnEvent(e bbo.Event) (float64, bool)
	Reset()
}

// Derived is a feature computed from the current vector of already-resolved
// feature values rather than from raw events. The registry resolves raw
// features first, then derived features in dependency order.
type Derived interface {
	Name() string
	Dependencies() []string
	Compute(vector map[string]float64) (float64, bool)
	Reset()
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
