// Package importance implements FeatureImportanceTracker (C10): per-edge
// correlation, significance, quartile win-rate, and effect-size analysis
// of entry features against realized PnL. Grounded on the
// statistical-summary idiom in internal/domain/indicators/technical.go.
package importance

import (
	"context"
	"math"
	"sort"
	"time"
)

// FeatureAnalysis is the statistical summary for one feature in one
// analysis run.
type FeatureAnalysis struct {
	Feature          string
	Correlation      float64
	TStat            float64
	PValue           float64
	QuartileWinRates [4]float64
	EffectSize       float64
	Importance       float64
}

// EdgeAnalysis is one snapshot of every analyzed feature for an edge.
type EdgeAnalysis struct {
	EdgeID    string
	Timestamp time.Time
	Features  map[string]FeatureAnalysis
}

// Trend classifies the direction of an importance time series.
type Trend string

const (
	Rising  Trend = "RISING"
	Falling Trend = "FALLING"
	Stable  Trend = "STABLE"
)

// Tracker accumulates a bounded rolling history of analyses per edge.
type Tracker struct {
	minOutcomes  int
	historyDepth int
	history      map[string][]EdgeAnalysis
}

func New(minOutcomes, historyDepth int) *Tracker {
	if minOutcomes <= 0 {
		minOutcomes = 10
	}
	if historyDepth <= 0 {
		historyDepth = 10
	}
	return &Tracker{minOutcomes: minOutcomes, historyDepth: historyDepth, history: make(map[string][]EdgeAnalysis)}
}

// Analyze computes a FeatureAnalysis for every feature present in every
// entry vector, given aligned entryFeatures[i] <-> pnls[i]. Returns nil if
// fewer than minOutcomes outcomes are supplied, or if ctx is canceled
// before the scan completes (checked between feature iterations).
func (t *Tracker) Analyze(ctx context.Context, edgeID string, entryFeatures []map[string]float64, pnls []float64) *EdgeAnalysis {
	n := len(pnls)
	if n < t.minOutcomes || len(entryFeatures) != n {
		return nil
	}

	common := commonFeatureNames(entryFeatures)
	a := EdgeAnalysis{EdgeID: edgeID, Timestamp: time.Now(), Features: make(map[string]FeatureAnalysis, len(common))}
	for _, feat := range common {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		values := make([]float64, n)
		for i, fv := range entryFeatures {
			values[i] = fv[feat]
		}
		a.Features[feat] = analyzeFeature(feat, values, pnls)
	}

	hist := append(t.history[edgeID], a)
	if len(hist) > t.historyDepth {
		hist = hist[len(hist)-t.historyDepth:]
	}
	t.history[edgeID] = hist

	return &a
}

// History returns the retained analyses for an edge, oldest first.
func (t *Tracker) History(edgeID string) []EdgeAnalysis {
	return t.history[edgeID]
}

// Trend classifies the last-5-snapshot delta in composite importance for
// one feature of one edge.
func (t *Tracker) Trend(edgeID, feature string) Trend {
	hist := t.history[edgeID]
	if len(hist) < 2 {
		return Stable
	}
	window := hist
	if len(window) > 5 {
		window = window[len(window)-5:]
	}
	first, ok1 := window[0].Features[feature]
	last, ok2 := window[len(window)-1].Features[feature]
	if !ok1 || !ok2 {
		return Stable
	}
	delta := last.Importance - first.Importance
	switch {
	case delta > 0.1:
		return Rising
	case delta < -0.1:
		return Falling
	default:
		return Stable
	}
}

func commonFeatureNames(vectors []map[string]float64) []string {
	if len(vectors) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, v := range vectors {
		for k := range v {
			counts[k]++
		}
	}
	var names []string
	for k, c := range counts {
		if c == len(vectors) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func analyzeFeature(name string, values, pnls []float64) FeatureAnalysis {
	r := pearson(values, pnls)
	n := float64(len(values))

	var tStat float64
	if r*r < 1 {
		tStat = r * math.Sqrt((n-2)/(1-r*r))
	} else if r > 0 {
		tStat = math.Inf(1)
	} else {
		tStat = math.Inf(-1)
	}
	p := bucketPValue(tStat)

	effect := cohensEffectSize(values, pnls)
	importance := clamp01(0.5*math.Abs(r) + 0.3*(1-p) + 0.2*effect)

	return FeatureAnalysis{
		Feature:          name,
		Correlation:      r,
		TStat:            tStat,
		PValue:           p,
		QuartileWinRates: quartileWinRates(values, pnls),
		EffectSize:       effect,
		Importance:       importance,
	}
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

func bucketPValue(t float64) float64 {
	at := math.Abs(t)
	switch {
	case at > 2.6:
		return 0.01
	case at > 2.0:
		return 0.05
	case at > 1.5:
		return 0.15
	default:
		return 0.5
	}
}

func quartileWinRates(values, pnls []float64) [4]float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })

	binSize := n / 4
	var out [4]float64
	for bin := 0; bin < 4; bin++ {
		start := bin * binSize
		end := start + binSize
		if bin == 3 {
			end = n // last bin absorbs the remainder
		}
		if start >= end {
			continue
		}
		var wins, total int
		for _, i := range idx[start:end] {
			total++
			if pnls[i] > 0 {
				wins++
			}
		}
		if total > 0 {
			out[bin] = float64(wins) / float64(total)
		}
	}
	return out
}

func cohensEffectSize(values, pnls []float64) float64 {
	var win, loss []float64
	for i, pnl := range pnls {
		if pnl > 0 {
			win = append(win, values[i])
		} else {
			loss = append(loss, values[i])
		}
	}
	if len(win) < 2 || len(loss) < 2 {
		return 0
	}
	meanWin, varWin := meanVar(win)
	meanLoss, varLoss := meanVar(loss)
	nWin, nLoss := float64(len(win)), float64(len(loss))
	pooled := ((nWin-1)*varWin + (nLoss-1)*varLoss) / (nWin + nLoss - 2)
	if pooled <= 0 {
		return 0
	}
	d := (meanWin - meanLoss) / math.Sqrt(pooled)
	return clamp01(math.Abs(d) / 0.8)
}

func meanVar(xs []float64) (mean, variance float64) {
	n := float64(len(xs))
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / n
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	variance = sq / n
	return mean, variance
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
