package streamfeature

import "math"

// ImbalanceEMA is an exponential moving average of order-book imbalance,
// warm once period events have elapsed.
type ImbalanceEMA struct {
	period  int
	alpha   float64
	value   float64
	count   int
}

func NewImbalanceEMA(period int) *ImbalanceEMA {
	if period < 1 {
		period = 1
	}
	return &ImbalanceEMA{period: period, alpha: 2 / (float64(period) + 1)}
}

func (o *ImbalanceEMA) Name() string { return "imbalance_ema" }
func (o *ImbalanceEMA) Reset()       { o.value, o.count = 0, 0 }
func (o *ImbalanceEMA) OnEvent(e rawEvent) (float64, bool) {
	imb := 0.0
	if e.BidQty+e.AskQty != 0 {
		imb = (e.BidQty - e.AskQty) / (e.BidQty + e.AskQty)
	}
	if o.count == 0 {
		o.value = imb
	} else {
		o.value = o.alpha*imb + (1-o.alpha)*o.value
	}
	o.count++
	return o.value, o.count >= o.period
}

// EMASlope is the normalized change of an underlying EMA over the last
// lookback events: (ema_now - ema_lookback_ago) / lookback.
type EMASlope struct {
	ema      *EMA
	lookback int
	hist     []float64
}

func NewEMASlope(period, lookback int) *EMASlope {
	return &EMASlope{ema: NewEMA(period), lookback: lookback}
}

func (o *EMASlope) Name() string { return "ema_slope" }
func (o *EMASlope) Reset()       { o.ema.Reset(); o.hist = o.hist[:0] }
func (o *EMASlope) OnEvent(e rawEvent) (float64, bool) {
	v, ok := o.ema.OnEvent(e)
	if !ok {
		return 0, false
	}
	o.hist = append(o.hist, v)
	if len(o.hist) > o.lookback+1 {
		o.hist = o.hist[len(o.hist)-(o.lookback+1):]
	}
	if len(o.hist) <= o.lookback {
		return 0, false
	}
	return (v - o.hist[0]) / float64(o.lookback), true
}

// BollingerPosition reports where mid price sits relative to an SMA±k·std
// band, as a z-score-like ratio (mid-sma)/(k*std); 0 when std is 0.
type BollingerPosition struct {
	period int
	k      float64
	buf    []float64
}

func NewBollingerPosition(period int, k float64) *BollingerPosition {
	return &BollingerPosition{period: period, k: k}
}

func (o *BollingerPosition) Name() string { return "bollinger_position" }
func (o *BollingerPosition) Reset()       { o.buf = o.buf[:0] }
func (o *BollingerPosition) OnEvent(e rawEvent) (float64, bool) {
	mid := (e.BidPrice + e.AskPrice) / 2
	o.buf = append(o.buf, mid)
	if len(o.buf) > o.period {
		o.buf = o.buf[len(o.buf)-o.period:]
	}
	if len(o.buf) < o.period {
		return 0, false
	}
	var sum, sumSq float64
	for _, v := range o.buf {
		sum += v
		sumSq += v * v
	}
	n := float64(len(o.buf))
	mean := sum / n
	variance := sumSq/n - mean*mean
	std := math.Sqrt(math.Max(0, variance))
	if std == 0 || o.k == 0 {
		return 0, true
	}
	return (mid - mean) / (o.k * std), true
}

// LiquidityPressure combines order-book imbalance with how wide the
// current spread is relative to a running baseline, in [-1,1]: positive
// means buy-side pressure with a tight book, negative the converse.
type LiquidityPressure struct {
	spreadBaseline *EMA
	count          int
	warmAt         int
}

func NewLiquidityPressure(baselinePeriod int) *LiquidityPressure {
	return &LiquidityPressure{spreadBaseline: NewEMA(baselinePeriod), warmAt: baselinePeriod}
}

func (o *LiquidityPressure) Name() string { return "liquidity_pressure" }
func (o *LiquidityPressure) Reset()       { o.spreadBaseline.Reset(); o.count = 0 }
func (o *LiquidityPressure) OnEvent(e rawEvent) (float64, bool) {
	// reuse EMA's mid-tracking machinery by feeding it a synthetic event whose
	// mid equals the spread, so spreadBaseline ends up an EMA of spread.
	synthetic := e
	synthetic.BidPrice, synthetic.AskPrice = 0, 2*(e.AskPrice-e.BidPrice)
	avgSpread, ok := o.spreadBaseline.OnEvent(synthetic)
	o.count++
	if !ok {
		return 0, false
	}
	imb := 0.0
	if e.BidQty+e.AskQty != 0 {
		imb = (e.BidQty - e.AskQty) / (e.BidQty + e.AskQty)
	}
	spread := e.AskPrice - e.BidPrice
	normSpread := 0.0
	if avgSpread > 0 {
		normSpread = clamp(0, 1, spread/avgSpread-1)
	}
	return clamp(-1, 1, imb*(1-normSpread)), true
}

// ReturnMomentum normalizes a short EMA of Return1 by recent volatility,
// bounded to [-1,1] via tanh.
type ReturnMomentum struct {
	retEMA *EMA
	vol    *Volatility
	ret1   Return1
	window int
}

func NewReturnMomentum(period, volWindow int) *ReturnMomentum {
	return &ReturnMomentum{retEMA: NewEMA(period), vol: NewVolatility(volWindow), window: volWindow}
}

func (o *ReturnMomentum) Name() string { return "return_momentum" }
func (o *ReturnMomentum) Reset()       { o.retEMA.Reset(); o.vol.Reset(); o.ret1.Reset() }
func (o *ReturnMomentum) OnEvent(e rawEvent) (float64, bool) {
	r, okR := o.ret1.OnEvent(e)
	v, okV := o.vol.OnEvent(e)
	// drive retEMA off mid as usual; it tracks price, we want EMA of return
	// so feed it a synthetic event encoding the return as the mid.
	synthetic := e
	synthetic.BidPrice, synthetic.AskPrice = 0, 2*r
	ema, okE := o.retEMA.OnEvent(synthetic)
	if !okR || !okV || !okE || v == 0 {
		return 0, false
	}
	return math.Tanh(ema / v), true
}

// SpreadCompression reports (avgSpread - spread)/avgSpread in [-1,1]:
// positive when the book is tighter than its recent average.
type SpreadCompression struct {
	baseline *EMA
}

func NewSpreadCompression(period int) *SpreadCompression {
	return &SpreadCompression{baseline: NewEMA(period)}
}

func (o *SpreadCompression) Name() string { return "spread_compression" }
func (o *SpreadCompression) Reset()       { o.baseline.Reset() }
func (o *SpreadCompression) OnEvent(e rawEvent) (float64, bool) {
	spread := e.AskPrice - e.BidPrice
	synthetic := e
	synthetic.BidPrice, synthetic.AskPrice = 0, 2*spread
	avg, ok := o.baseline.OnEvent(synthetic)
	if !ok || avg == 0 {
		return 0, false
	}
	return clamp(-1, 1, (avg-spread)/avg), true
}

// ImbalanceAcceleration is the clamped tick-over-tick change in imbalance.
type ImbalanceAcceleration struct {
	haveLast bool
	last     float64
}

func (o *ImbalanceAcceleration) Name() string { return "imbalance_acceleration" }
func (o *ImbalanceAcceleration) Reset()       { o.haveLast, o.last = false, 0 }
func (o *ImbalanceAcceleration) OnEvent(e rawEvent) (float64, bool) {
	imb := 0.0
	if e.BidQty+e.AskQty != 0 {
		imb = (e.BidQty - e.AskQty) / (e.BidQty + e.AskQty)
	}
	if !o.haveLast {
		o.last, o.haveLast = imb, true
		return 0, false
	}
	delta := imb - o.last
	o.last = imb
	return clamp(-1, 1, delta), true
}

// MicroReversion reports, in [0,1], the fraction of the last window ticks
// where the sign of Return1 flipped from the previous tick — a proxy for
// mean-reverting microstructure behavior.
type MicroReversion struct {
	ret1     Return1
	window   int
	haveSign bool
	lastSign int
	flips    []float64 // 1 if flip, 0 otherwise, ring history
}

func NewMicroReversion(window int) *MicroReversion {
	return &MicroReversion{window: window}
}

func (o *MicroReversion) Name() string { return "micro_reversion" }
func (o *MicroReversion) Reset() {
	o.ret1.Reset()
	o.haveSign, o.lastSign = false, 0
	o.flips = o.flips[:0]
}
func (o *MicroReversion) OnEvent(e rawEvent) (float64, bool) {
	r, ok := o.ret1.OnEvent(e)
	if !ok {
		return 0, false
	}
	sign := 0
	switch {
	case r > 0:
		sign = 1
	case r < 0:
		sign = -1
	}
	flip := 0.0
	if o.haveSign && sign != 0 && o.lastSign != 0 && sign != o.lastSign {
		flip = 1
	}
	if sign != 0 {
		o.lastSign, o.haveSign = sign, true
	}
	o.flips = append(o.flips, flip)
	if len(o.flips) > o.window {
		o.flips = o.flips[len(o.flips)-o.window:]
	}
	if len(o.flips) < o.window {
		return 0, false
	}
	var sum float64
	for _, f := range o.flips {
		sum += f
	}
	return sum / float64(len(o.flips)), true
}

// QuoteIntensity reports, in [0,1], the percentile rank of the current
// event rate (events/sec, measured over a short bucket) against a long
// rolling history of such rates.
type QuoteIntensity struct {
	bucketMs  int64
	longN     int
	bucketTs  int64
	bucketCnt int
	rates     []float64
	haveFirst bool
}

func NewQuoteIntensity(bucketMs int64, longN int) *QuoteIntensity {
	return &QuoteIntensity{bucketMs: bucketMs, longN: longN}
}

func (o *QuoteIntensity) Name() string { return "quote_intensity" }
func (o *QuoteIntensity) Reset() {
	o.bucketTs, o.bucketCnt = 0, 0
	o.rates = o.rates[:0]
	o.haveFirst = false
}
func (o *QuoteIntensity) OnEvent(e rawEvent) (float64, bool) {
	if !o.haveFirst {
		o.bucketTs, o.haveFirst = e.TsEvent, true
	}
	if e.TsEvent-o.bucketTs >= o.bucketMs {
		rate := float64(o.bucketCnt) / (float64(o.bucketMs) / 1000)
		o.rates = append(o.rates, rate)
		if len(o.rates) > o.longN {
			o.rates = o.rates[len(o.rates)-o.longN:]
		}
		o.bucketTs, o.bucketCnt = e.TsEvent, 0
	}
	o.bucketCnt++

	if len(o.rates) < 2 {
		return 0, false
	}
	current := o.rates[len(o.rates)-1]
	below := 0
	for _, r := range o.rates {
		if r <= current {
			below++
		}
	}
	return float64(below) / float64(len(o.rates)), true
}
