package streamfeature

// VolatilityRegime buckets the ratio of a short-window to a long-window
// volatility estimate into {0: calm, 1: normal, 2: turbulent}, mirroring
// a threshold-vote regime shape.
type VolatilityRegime struct {
	shortVol, longVol *Volatility
	lowT, highT       float64
}

func NewVolatilityRegime(shortWindow, longWindow int, lowT, highT float64) *VolatilityRegime {
	return &VolatilityRegime{
		shortVol: NewVolatility(shortWindow),
		longVol:  NewVolatility(longWindow),
		lowT:     lowT,
		highT:    highT,
	}
}

func (o *VolatilityRegime) Name() string { return "volatility_regime" }
func (o *VolatilityRegime) Reset()       { o.shortVol.Reset(); o.longVol.Reset() }
func (o *VolatilityRegime) OnEvent(e rawEvent) (float64, bool) {
	sv, okS := o.shortVol.OnEvent(e)
	lv, okL := o.longVol.OnEvent(e)
	if !okS || !okL || lv == 0 {
		return 1, false
	}
	ratio := sv / lv
	switch {
	case ratio < o.lowT:
		return 0, true
	case ratio > o.highT:
		return 2, true
	default:
		return 1, true
	}
}

// TrendRegime compares a short and long EMA and classifies the normalized
// slope into {-1: down, 0: flat, 1: up}.
type TrendRegime struct {
	short, long     *EMA
	slopeThreshold  float64
}

func NewTrendRegime(shortPeriod, longPeriod int, slopeThreshold float64) *TrendRegime {
	return &TrendRegime{short: NewEMA(shortPeriod), long: NewEMA(longPeriod), slopeThreshold: slopeThreshold}
}

func (o *TrendRegime) Name() string { return "trend_regime" }
func (o *TrendRegime) Reset()       { o.short.Reset(); o.long.Reset() }
func (o *TrendRegime) OnEvent(e rawEvent) (float64, bool) {
	sv, okS := o.short.OnEvent(e)
	lv, okL := o.long.OnEvent(e)
	if !okS || !okL || lv == 0 {
		return 0, false
	}
	slope := (sv - lv) / lv
	switch {
	case slope > o.slopeThreshold:
		return 1, true
	case slope < -o.slopeThreshold:
		return -1, true
	default:
		return 0, true
	}
}

// SpreadRegime compares the current spread to its running average,
// classifying into {0: tight, 1: normal, 2: wide}.
type SpreadRegime struct {
	window      int
	count       int
	sum         float64
	lowT, highT float64
}

func NewSpreadRegime(window int, lowT, highT float64) *SpreadRegime {
	return &SpreadRegime{window: window, lowT: lowT, highT: highT}
}

func (o *SpreadRegime) Name() string { return "spread_regime" }
func (o *SpreadRegime) Reset()       { o.count, o.sum = 0, 0 }
func (o *SpreadRegime) OnEvent(e rawEvent) (float64, bool) {
	spread := e.AskPrice - e.BidPrice
	o.sum += spread
	o.count++
	avg := o.sum / float64(o.count)
	if o.count < o.window {
		return 1, false
	}
	if avg == 0 {
		return 1, true
	}
	ratio := spread / avg
	switch {
	case ratio < o.lowT:
		return 0, true
	case ratio > o.highT:
		return 2, true
	default:
		return 1, true
	}
}

// RegimeStability reports, in [0,1], the fraction of the last lookback
// readings of an underlying regime operator that match the most recent
// reading — a high value means the regime has been steady.
type RegimeStability struct {
	underlying Operator
	lookback   int
	hist       []float64
}

func NewRegimeStability(underlying Operator, lookback int) *RegimeStability {
	return &RegimeStability{underlying: underlying, lookback: lookback}
}

func (o *RegimeStability) Name() string { return "regime_stability" }
func (o *RegimeStability) Reset() {
	o.underlying.Reset()
	o.hist = o.hist[:0]
}
func (o *RegimeStability) OnEvent(e rawEvent) (float64, bool) {
	v, ok := o.underlying.OnEvent(e)
	if !ok {
		return 0, false
	}
	o.hist = append(o.hist, v)
	if len(o.hist) > o.lookback {
		o.hist = o.hist[len(o.hist)-o.lookback:]
	}
	if len(o.hist) < o.lookback {
		return 0, false
	}
	current := o.hist[len(o.hist)-1]
	matches := 0
	for _, h := range o.hist {
		if h == current {
			matches++
		}
	}
	return float64(matches) / float64(len(o.hist)), true
}
