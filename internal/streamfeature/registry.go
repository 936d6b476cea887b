package streamfeature

import (
	"fmt"

	"github.com/edgecore/quantedge/internal/bbo"
	"github.com/edgecore/quantedge/internal/config"
)

func param(p config.FeatureParams, key string, def float64) float64 {
	if p == nil {
		return def
	}
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// rawFactories maps an enabled-feature name to a constructor. Names match
// the operator contracts in spec §4.2.
var rawFactories = map[string]func(p config.FeatureParams) Operator{
	"mid_price":   func(config.FeatureParams) Operator { return MidPrice{} },
	"spread":      func(config.FeatureParams) Operator { return Spread{} },
	"microprice":  func(config.FeatureParams) Operator { return Microprice{} },
	"imbalance":   func(config.FeatureParams) Operator { return Imbalance{} },
	"return_1":    func(config.FeatureParams) Operator { return &Return1{} },
	"volatility": func(p config.FeatureParams) Operator {
		return NewVolatility(int(param(p, "windowSize", 20)))
	},
	"ema": func(p config.FeatureParams) Operator {
		return NewEMA(int(param(p, "period", 14)))
	},
	"rsi": func(p config.FeatureParams) Operator {
		return NewRSI(int(param(p, "period", 14)))
	},
	"atr": func(p config.FeatureParams) Operator {
		return NewATR(int(param(p, "period", 14)))
	},
	"roc": func(p config.FeatureParams) Operator {
		return NewROC(int(param(p, "period", 10)))
	},
	"volatility_regime": func(p config.FeatureParams) Operator {
		return NewVolatilityRegime(
			int(param(p, "shortWindow", 10)), int(param(p, "longWindow", 50)),
			param(p, "lowT", 0.5), param(p, "highT", 1.5))
	},
	"trend_regime": func(p config.FeatureParams) Operator {
		return NewTrendRegime(
			int(param(p, "shortWindow", 10)), int(param(p, "longWindow", 50)),
			param(p, "slopeThreshold", 0.0005))
	},
	"spread_regime": func(p config.FeatureParams) Operator {
		return NewSpreadRegime(int(param(p, "windowSize", 50)), param(p, "lowT", 0.7), param(p, "highT", 1.3))
	},
	"imbalance_ema": func(p config.FeatureParams) Operator {
		return NewImbalanceEMA(int(param(p, "period", 14)))
	},
	"ema_slope": func(p config.FeatureParams) Operator {
		return NewEMASlope(int(param(p, "period", 14)), int(param(p, "lookback", 5)))
	},
	"bollinger_position": func(p config.FeatureParams) Operator {
		return NewBollingerPosition(int(param(p, "period", 20)), param(p, "k", 2))
	},
	"liquidity_pressure": func(p config.FeatureParams) Operator {
		return NewLiquidityPressure(int(param(p, "period", 20)))
	},
	"return_momentum": func(p config.FeatureParams) Operator {
		return NewReturnMomentum(int(param(p, "period", 10)), int(param(p, "windowSize", 20)))
	},
	"spread_compression": func(p config.FeatureParams) Operator {
		return NewSpreadCompression(int(param(p, "period", 50)))
	},
	"imbalance_acceleration": func(config.FeatureParams) Operator { return &ImbalanceAcceleration{} },
	"micro_reversion": func(p config.FeatureParams) Operator {
		return NewMicroReversion(int(param(p, "windowSize", 20)))
	},
	"quote_intensity": func(p config.FeatureParams) Operator {
		return NewQuoteIntensity(int64(param(p, "bucketMs", 1000)), int(param(p, "longWindow", 300)))
	},
}

// regimeStabilityFactory is registered separately since it wraps another
// operator (always trend_regime, built by name) rather than being fully
// self-contained.
func regimeStabilityFactory(p config.FeatureParams, build func(name string) (Operator, error)) (Operator, error) {
	lookback := int(param(p, "lookback", 10))
	underlying, err := build("trend_regime")
	if err != nil {
		return nil, err
	}
	return NewRegimeStability(underlying, lookback), nil
}

var derivedFactories = map[string]func() Derived{
	"behavior_divergence":          func() Derived { return BehaviorDivergence{} },
	"volatility_compression_score": func() Derived { return VolatilityCompressionScore{} },
}

// Registry is the process-wide catalog of known feature operator
// constructors. It is stateless; CreateBuilder instantiates fresh operator
// state per symbol.
type Registry struct{}

func NewRegistry() *Registry { return &Registry{} }

type builtRaw struct {
	op Operator
}

type builtDerived struct {
	d    Derived
	deps []string
}

// Builder composes a DAG of raw and derived features for one symbol and
// feeds it events one at a time.
type Builder struct {
	symbol  string
	raws    []builtRaw
	derived []builtDerived // topologically ordered
	warmed  map[string]bool
	allWarm bool
}

// CreateBuilder constructs a Builder for symbol from cfg. It fails at
// construction if a feature name is unknown, a derived feature's
// dependency is not itself enabled, or the dependency graph has a cycle.
func (r *Registry) CreateBuilder(symbol string, cfg config.FeatureRegistryConfig) (*Builder, error) {
	if len(cfg.EnabledFeatures) == 0 {
		return nil, fmt.Errorf("streamfeature: no enabled features for symbol %s", symbol)
	}

	b := &Builder{symbol: symbol, warmed: make(map[string]bool)}
	enabled := make(map[string]bool, len(cfg.EnabledFeatures))
	for _, name := range cfg.EnabledFeatures {
		enabled[name] = true
	}

	// resolve raw operators in declared order, building a lazy helper for
	// regime_stability's "wrap another operator" dependency.
	built := make(map[string]bool)
	var buildRaw func(name string) (Operator, error)
	buildRaw = func(name string) (Operator, error) {
		if name == "regime_stability" {
			return regimeStabilityFactory(cfg.Params[name], buildRaw)
		}
		factory, ok := rawFactories[name]
		if !ok {
			return nil, fmt.Errorf("streamfeature: unknown feature %q", name)
		}
		return factory(cfg.Params[name]), nil
	}

	for _, name := range cfg.EnabledFeatures {
		if _, isDerived := derivedFactories[name]; isDerived {
			continue
		}
		if built[name] {
			continue
		}
		if name == "regime_stability" {
			op, err := regimeStabilityFactory(cfg.Params[name], buildRaw)
			if err != nil {
				return nil, err
			}
			b.raws = append(b.raws, builtRaw{op: op})
			built[name] = true
			continue
		}
		factory, ok := rawFactories[name]
		if !ok {
			return nil, fmt.Errorf("streamfeature: unknown feature %q", name)
		}
		b.raws = append(b.raws, builtRaw{op: factory(cfg.Params[name])})
		built[name] = true
	}

	// resolve derived features via topological sort (Kahn's algorithm) to
	// fail fast on cycles and on missing dependencies.
	var derivedNames []string
	for _, name := range cfg.EnabledFeatures {
		if _, ok := derivedFactories[name]; ok {
			derivedNames = append(derivedNames, name)
		}
	}

	resolved := make(map[string]bool)
	for len(resolved) < len(derivedNames) {
		progressed := false
		for _, name := range derivedNames {
			if resolved[name] {
				continue
			}
			d := derivedFactories[name]()
			ready := true
			for _, dep := range d.Dependencies() {
				if !enabled[dep] {
					return nil, fmt.Errorf("streamfeature: derived feature %q depends on %q, which is not enabled", name, dep)
				}
				if _, isDerivedDep := derivedFactories[dep]; isDerivedDep && !resolved[dep] {
					ready = false
				}
			}
			if !ready {
				continue
			}
			b.derived = append(b.derived, builtDerived{d: d, deps: d.Dependencies()})
			resolved[name] = true
			progressed = true
		}
		if !progressed && len(resolved) < len(derivedNames) {
			return nil, fmt.Errorf("streamfeature: cyclic dependency among derived features for symbol %s", symbol)
		}
	}

	return b, nil
}

// OnEvent feeds one event to every operator and returns the full feature
// vector once every enabled feature has become warm; until then it
// returns (nil, false).
func (b *Builder) OnEvent(e bbo.Event) (map[string]float64, bool) {
	vector := make(map[string]float64, len(b.raws)+len(b.derived))

	for _, r := range b.raws {
		v, ok := r.op.OnEvent(e)
		if ok {
			vector[r.op.Name()] = v
			b.warmed[r.op.Name()] = true
		}
	}
	for _, d := range b.derived {
		v, ok := d.d.Compute(vector)
		if ok {
			vector[d.d.Name()] = v
			b.warmed[d.d.Name()] = true
		}
	}

	if !b.allWarm {
		total := len(b.raws) + len(b.derived)
		if len(b.warmed) < total {
			return nil, false
		}
		b.allWarm = true
	}

	return vector, true
}

// Reset returns every operator to its post-construction state.
func (b *Builder) Reset() {
	for _, r := range b.raws {
		r.op.Reset()
	}
	for _, d := range b.derived {
		d.d.Reset()
	}
	b.warmed = make(map[string]bool)
	b.allWarm = false
}
