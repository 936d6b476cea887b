// Package discovery implements the edge discovery pipeline: a pure,
// deterministic scan over historical feature/regime rows that enumerates
// candidate patterns, filters them for statistical significance, and
// registers the survivors as CANDIDATE edges.
package discovery

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/edgecore/quantedge/internal/config"
	"github.com/edgecore/quantedge/internal/edge"
	"github.com/edgecore/quantedge/internal/telemetry"
)

// horizonMs is the forward-return horizon every enumerated pattern is
// tested against. It mirrors the label horizon the feature builder uses
// for its own forward-direction label (spec.md §4.1), so a discovered
// pattern's horizon lines up with the data it was scored on.
const horizonMs = 10_000

// quantilePoints are the enumeration thresholds applied per feature. They
// are fixed, not seed-derived, so the candidate set itself is a pure
// function of the data. Candidates that tie on score keep their
// enumeration order (stable sort); Seed is only recorded in the result
// metadata and does not affect the ordering.
var quantilePoints = []float64{0.10, 0.25, 0.50, 0.75, 0.90}

var operators = []string{">", "<"}

// Row pairs one historical feature snapshot with the regime it was taken
// in and the forward return realized horizonMs later. Callers derive
// ForwardReturn from mid-price movement over the horizon; discovery does
// not compute it itself since that requires data outside the row.
type Row struct {
	Features      map[string]float64
	Regime        string
	ForwardReturn float64
}

// Result summarizes one discovery run.
type Result struct {
	PatternsScanned           int                    `json:"patternsScanned"`
	PatternsTestedSignificant int                    `json:"patternsTestedSignificant"`
	EdgeCandidatesGenerated   int                    `json:"edgeCandidatesGenerated"`
	EdgeCandidatesRegistered  int                    `json:"edgeCandidatesRegistered"`
	Metadata                  map[string]interface{} `json:"metadata"`
}

type candidate struct {
	conditions []edge.Condition
	regime     string // "" means any regime
}

type scored struct {
	pattern    edge.Pattern
	testResult edge.TestResult
	score      float64
}

// Run scans rows for significant patterns and registers the survivors into
// reg as CANDIDATE edges, capped at cfg.MaxEdgesPerRun and preferring
// higher-scoring patterns. It is deterministic given the same rows and cfg.
// metrics may be nil; when set, scan counts and run duration are recorded
// against it.
func Run(ctx context.Context, cfg config.DiscoveryConfig, rows []Row, reg *edge.Registry, metrics *telemetry.Registry) (Result, error) {
	start := time.Now()
	candidates := enumerate(rows)

	limiter := rate.NewLimiter(rate.Limit(cfg.ScanRatePerSec), 1)
	var survivors []scored
	for _, c := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("discovery: scan canceled: %w", err)
		}
		s, ok := test(c, rows, cfg)
		if ok {
			survivors = append(survivors, s)
		}
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].score > survivors[j].score
	})

	registered := 0
	for i, s := range survivors {
		if i >= cfg.MaxEdgesPerRun {
			break
		}
		registerCandidate(reg, s)
		registered++
	}

	if metrics != nil {
		metrics.DiscoveryPatternsScanned.Add(float64(len(candidates)))
		metrics.DiscoveryEdgesRegistered.Add(float64(registered))
		metrics.DiscoveryRunDuration.Observe(time.Since(start).Seconds())
	}

	return Result{
		PatternsScanned:           len(candidates),
		PatternsTestedSignificant: len(survivors),
		EdgeCandidatesGenerated:   len(survivors),
		EdgeCandidatesRegistered:  registered,
		Metadata: map[string]interface{}{
			"seed":           cfg.Seed,
			"minSupport":     cfg.MinSupport,
			"returnThresh":   cfg.ReturnThreshold,
			"tStatThreshold": cfg.TStatThreshold,
		},
	}, nil
}

// enumerate builds two candidate families (spec.md §4.5's "threshold,
// cluster, quantile families"):
//
//   - threshold family: one candidate per (feature, quantile threshold,
//     operator, regime) combination.
//   - pairwise-cluster family: one candidate per pair of distinct features,
//     each split at its median, requiring both to land on the same side
//     (jointly high or jointly low) — a weak-signal-combination pattern in
//     in the style of a multi-gate composition.
//
// regime ranges over the distinct regimes observed in rows plus "" (any
// regime) in both families.
func enumerate(rows []Row) []candidate {
	featureValues := make(map[string][]float64)
	regimeSet := map[string]bool{"": true}
	for _, r := range rows {
		for f, v := range r.Features {
			featureValues[f] = append(featureValues[f], v)
		}
		if r.Regime != "" {
			regimeSet[r.Regime] = true
		}
	}

	features := sortedKeys(featureValues)
	regimes := sortedRegimes(regimeSet)

	sortedValues := make(map[string][]float64, len(features))
	for _, f := range features {
		values := append([]float64(nil), featureValues[f]...)
		sort.Float64s(values)
		sortedValues[f] = values
	}

	var out []candidate
	for _, f := range features {
		values := sortedValues[f]
		for _, q := range quantilePoints {
			threshold := quantile(values, q)
			for _, op := range operators {
				for _, regime := range regimes {
					out = append(out, candidate{
						conditions: []edge.Condition{{Feature: f, Operator: op, Value: threshold}},
						regime:     regime,
					})
				}
			}
		}
	}

	for i := 0; i < len(features); i++ {
		for j := i + 1; j < len(features); j++ {
			fi, fj := features[i], features[j]
			medianI := quantile(sortedValues[fi], 0.5)
			medianJ := quantile(sortedValues[fj], 0.5)
			for _, op := range operators {
				for _, regime := range regimes {
					out = append(out, candidate{
						conditions: []edge.Condition{
							{Feature: fi, Operator: op, Value: medianI},
							{Feature: fj, Operator: op, Value: medianJ},
						},
						regime: regime,
					})
				}
			}
		}
	}
	return out
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

// test evaluates one candidate's significance: it gathers the forward
// returns of every row the candidate's condition matches, then applies the
// three-part filter (effect size, t-stat, support) from spec.md §4.5.
func test(c candidate, rows []Row, cfg config.DiscoveryConfig) (scored, bool) {
	var forwardReturns []float64
	for _, r := range rows {
		if c.regime != "" && r.Regime != c.regime {
			continue
		}
		if !matchesAll(c.conditions, r.Features) {
			continue
		}
		forwardReturns = append(forwardReturns, r.ForwardReturn)
	}

	n := len(forwardReturns)
	if n < cfg.MinSupport {
		return scored{}, false
	}

	mean, std := meanStd(forwardReturns)
	tStat := tStatistic(mean, std, n)

	if math.Abs(mean) < cfg.ReturnThreshold {
		return scored{}, false
	}
	if math.Abs(tStat) < cfg.TStatThreshold {
		return scored{}, false
	}

	direction := "LONG"
	if mean < 0 {
		direction = "SHORT"
	}

	var regimes []string
	if c.regime != "" {
		regimes = []string{c.regime}
	}

	pattern := edge.Pattern{
		Conditions:     c.conditions,
		Direction:      direction,
		HorizonMs:      horizonMs,
		Regimes:        regimes,
		Support:        n,
		ForwardReturns: forwardReturns,
	}
	tr := edge.TestResult{Mean: mean, Std: std, TStat: tStat, PValue: bucketPValue(tStat)}

	return scored{pattern: pattern, testResult: tr, score: math.Abs(tStat) * math.Abs(mean)}, true
}

func matches(op string, v, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case "<":
		return v < threshold
	default:
		return false
	}
}

// matchesAll applies every condition as a conjunction, the same evaluation
// rule edge.BuildPredicates uses for the registered pattern: a missing
// feature makes the whole candidate inactive for that row rather than an
// error, since discovery rows can have gaps the way live feature vectors do.
func matchesAll(conditions []edge.Condition, features map[string]float64) bool {
	for _, c := range conditions {
		v, ok := features[c.Feature]
		if !ok {
			return false
		}
		if !matches(c.Operator, v, c.Value) {
			return false
		}
	}
	return true
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	for _, v := range values {
		mean += v
	}
	mean /= n
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	if len(values) > 1 {
		std = math.Sqrt(sumSq / (n - 1))
	}
	return mean, std
}

func tStatistic(mean, std float64, n int) float64 {
	if std == 0 {
		if mean == 0 {
			return 0
		}
		if mean > 0 {
			return math.Inf(1)
		}
		return math.Inf(-1)
	}
	return mean / (std / math.Sqrt(float64(n)))
}

// bucketPValue mirrors the coarse significance buckets used throughout the
// learning subsystem rather than an exact t-distribution CDF, which would
// need a stats library no example repo carries.
func bucketPValue(tStat float64) float64 {
	abs := math.Abs(tStat)
	switch {
	case abs > 2.6:
		return 0.01
	case abs > 2.0:
		return 0.05
	case abs > 1.5:
		return 0.15
	default:
		return 0.5
	}
}

// registerCandidate turns a surviving pattern into a CANDIDATE edge and
// registers it. The edge ID is derived deterministically from the
// pattern's contents via a SHA-1 name-based UUID rather than a random one,
// so the same data and config always produce the same edge IDs.
func registerCandidate(reg *edge.Registry, s scored) {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(patternKey(s.pattern))).String()
	regimeLabel := "any"
	if len(s.pattern.Regimes) > 0 {
		regimeLabel = s.pattern.Regimes[0]
	}
	name := fmt.Sprintf("discovered-%s-%s-%s", conditionSummary(s.pattern.Conditions), regimeLabel, s.pattern.Direction)

	winRate := winRateOf(s.pattern.ForwardReturns)
	sharpe := 0.0
	if s.testResult.Std != 0 {
		sharpe = s.testResult.Mean / s.testResult.Std
	}
	advantage := edge.Advantage{Mean: s.testResult.Mean, Std: s.testResult.Std, Sharpe: sharpe, WinRate: winRate}

	entryFn, exitFn := edge.BuildPredicates(s.pattern)
	e := edge.New(id, name, horizonMs, advantage, entryFn, exitFn)
	if len(s.pattern.Regimes) > 0 {
		e.Regimes = make(map[string]bool, len(s.pattern.Regimes))
		for _, r := range s.pattern.Regimes {
			e.Regimes[r] = true
		}
	}
	reg.Register(e, &edge.Definition{Pattern: s.pattern, TestResult: s.testResult})
}

func winRateOf(forwardReturns []float64) float64 {
	if len(forwardReturns) == 0 {
		return 0
	}
	wins := 0
	for _, v := range forwardReturns {
		if v > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(forwardReturns))
}

func conditionSummary(conditions []edge.Condition) string {
	out := ""
	for i, c := range conditions {
		if i > 0 {
			out += "&"
		}
		out += fmt.Sprintf("%s%s%.4g", c.Feature, c.Operator, c.Value)
	}
	return out
}

func patternKey(p edge.Pattern) string {
	regime := "any"
	if len(p.Regimes) > 0 {
		regime = p.Regimes[0]
	}
	return fmt.Sprintf("%s|%s|%d|%s", conditionSummary(p.Conditions), p.Direction, p.HorizonMs, regime)
}

func sortedKeys(m map[string][]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedRegimes(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
