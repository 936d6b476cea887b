// Package feature implements FeatureBuilderV1, the deterministic batch pass
// over a sorted BBO table that produces the fixed v1 feature/label schema
// (spec.md §4.1). It mirrors the incremental-smoothing idiom used for
// technical indicators in internal/domain/indicators/technical.go, applied
// to a forward-labeled, time-windowed BBO sequence instead of OHLC bars.
package feature

import (
	"math"
	"sort"

	"github.com/edgecore/quantedge/internal/bbo"
)

const (
	coldStartMs  = 30_000
	labelHorizon = 10_000
	volWindowMs  = 10_000
)

var returnWindowsMs = [4]int64{1_000, 5_000, 10_000, 30_000}

// BuildV1 runs the full FeatureBuilderV1 contract over rows and returns the
// accepted feature vectors in (ts_event, seq) order. rows need not be
// pre-sorted; BuildV1 sorts a copy stably by (ts_event ASC, seq ASC).
func BuildV1(rows []bbo.Event) []bbo.FeatureVector {
	if len(rows) == 0 {
		return nil
	}

	sorted := make([]bbo.Event, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return bbo.Less(sorted[i], sorted[j]) })

	n := len(sorted)
	mid := make([]float64, n)
	for i, r := range sorted {
		mid[i] = (r.BidPrice + r.AskPrice) / 2
	}

	rets := make([][4]float64, n)
	for w, windowMs := range returnWindowsMs {
		j := 0
		for i := 0; i < n; i++ {
			threshold := sorted[i].TsEvent - windowMs
			// advance j to the last index with ts <= threshold
			for j < n-1 && sorted[j+1].TsEvent <= threshold {
				j++
			}
			if sorted[j].TsEvent <= threshold && mid[j] > 0 && mid[i] > 0 {
				rets[i][w] = math.Log(mid[i] / mid[j])
			} else {
				rets[i][w] = math.NaN()
			}
		}
	}
	ret1s := make([]float64, n)
	for i := range ret1s {
		ret1s[i] = rets[i][0]
	}

	vol10s := rollingVolatility(sorted, ret1s)

	firstTs := sorted[0].TsEvent
	out := make([]bbo.FeatureVector, 0, n)

	fwd := 0
	for i := 0; i < n; i++ {
		if sorted[i].TsEvent < firstTs+coldStartMs {
			continue
		}

		target := sorted[i].TsEvent + labelHorizon
		if fwd < i {
			fwd = i
		}
		for fwd < n && sorted[fwd].TsEvent < target {
			fwd++
		}
		if fwd >= n {
			continue // no forward sample exists; drop
		}

		var label int32
		if mid[fwd] > mid[i] {
			label = 1
		}

		bidQty, askQty := sorted[i].BidQty, sorted[i].AskQty
		imbalance := math.NaN()
		microprice := mid[i]
		if bidQty+askQty > 0 {
			imbalance = (bidQty - askQty) / (bidQty + askQty)
			microprice = (sorted[i].BidPrice*askQty + sorted[i].AskPrice*bidQty) / (bidQty + askQty)
		}

		spread := sorted[i].AskPrice - sorted[i].BidPrice
		spreadBps := math.NaN()
		if mid[i] != 0 {
			spreadBps = spread / mid[i] * 10_000
		}

		v := bbo.FeatureVector{
			TsEvent:     sorted[i].TsEvent,
			Mid:         mid[i],
			Spread:      spread,
			SpreadBps:   spreadBps,
			Imbalance:   imbalance,
			Microprice:  microprice,
			Ret1s:       rets[i][0],
			Ret5s:       rets[i][1],
			Ret10s:      rets[i][2],
			Ret30s:      rets[i][3],
			Vol10s:      vol10s[i],
			LabelDir10s: label,
		}

		if !vectorFinite(v) {
			continue
		}

		out = append(out, v)
	}

	return out
}

// rollingVolatility maintains a 10s sliding window over ret1s using
// incremental sum/sum_sq, windowed by event timestamp (not sample count —
// this is the batch path; see internal/streamfeature for the streaming
// Volatility operator's sample-count window, which is a deliberately
// different, spec-preserved behavior).
func rollingVolatility(sorted []bbo.Event, ret1s []float64) []float64 {
	n := len(sorted)
	out := make([]float64, n)

	start := 0
	var sum, sumSq float64
	var count int

	for i := 0; i < n; i++ {
		if !math.IsNaN(ret1s[i]) {
			sum += ret1s[i]
			sumSq += ret1s[i] * ret1s[i]
			count++
		}

		threshold := sorted[i].TsEvent - volWindowMs
		for start < i && sorted[start].TsEvent < threshold {
			if !math.IsNaN(ret1s[start]) {
				sum -= ret1s[start]
				sumSq -= ret1s[start] * ret1s[start]
				count--
			}
			start++
		}

		if count < 2 {
			out[i] = math.NaN()
			continue
		}

		mean := sum / float64(count)
		variance := sumSq/float64(count) - mean*mean
		out[i] = math.Sqrt(math.Max(0, variance))
	}

	return out
}

func vectorFinite(v bbo.FeatureVector) bool {
	vals := []float64{v.Mid, v.Spread, v.SpreadBps, v.Imbalance, v.Microprice,
		v.Ret1s, v.Ret5s, v.Ret10s, v.Ret30s, v.Vol10s}
	for _, x := range vals {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return v.LabelDir10s == 0 || v.LabelDir10s == 1
}
