package streamfeature

// BehaviorDivergence measures, in [-1,1], how far order-flow imbalance and
// realized return momentum have diverged: positive means the book leans
// one way while momentum has not yet followed.
type BehaviorDivergence struct{}

func (BehaviorDivergence) Name() string           { return "behavior_divergence" }
func (BehaviorDivergence) Dependencies() []string { return []string{"imbalance", "return_momentum"} }
func (BehaviorDivergence) Reset()                 {}
func (BehaviorDivergence) Compute(v map[string]float64) (float64, bool) {
	imb, ok1 := v["imbalance"]
	mom, ok2 := v["return_momentum"]
	if !ok1 || !ok2 {
		return 0, false
	}
	return clamp(-1, 1, imb-mom), true
}

// VolatilityCompressionScore reports, in [0,1], how compressed current
// volatility is relative to its regime classification: 1 for a calm
// regime (0), 0 for a turbulent one (2).
type VolatilityCompressionScore struct{}

func (VolatilityCompressionScore) Name() string           { return "volatility_compression_score" }
func (VolatilityCompressionScore) Dependencies() []string { return []string{"volatility_regime"} }
func (VolatilityCompressionScore) Reset()                 {}
func (VolatilityCompressionScore) Compute(v map[string]float64) (float64, bool) {
	regime, ok := v["volatility_regime"]
	if !ok {
		return 0, false
	}
	return clamp(0, 1, 1-regime/2), true
}
