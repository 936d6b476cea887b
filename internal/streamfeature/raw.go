package streamfeature

import (
	"math"

	"github.com/edgecore/quantedge/internal/bbo"
)

// rawEvent is a local alias so operator signatures read without the bbo
// package qualifier everywhere in this file.
type rawEvent = bbo.Event

// MidPrice reports (bid+ask)/2. Never warming: valid from the first event.
type MidPrice struct{}

func (MidPrice) Name() string { return "mid_price" }
func (MidPrice) Reset()       {}
func (MidPrice) OnEvent(e rawEvent) (float64, bool) {
	return (e.BidPrice + e.AskPrice) / 2, true
}

// Spread reports ask-bid.
type Spread struct{}

func (Spread) Name() string { return "spread" }
func (Spread) Reset()       {}
func (Spread) OnEvent(e rawEvent) (float64, bool) {
	return e.AskPrice - e.BidPrice, true
}

// Microprice weights each side's price by the opposite side's resting
// quantity; falls back to the plain mid when both sizes are zero.
type Microprice struct{}

func (Microprice) Name() string { return "microprice" }
func (Microprice) Reset()       {}
func (Microprice) OnEvent(e rawEvent) (float64, bool) {
	if e.BidQty+e.AskQty == 0 {
		return (e.BidPrice + e.AskPrice) / 2, true
	}
	return (e.BidPrice*e.AskQty + e.AskPrice*e.BidQty) / (e.BidQty + e.AskQty), true
}

// Imbalance reports (bid_qty-ask_qty)/(bid_qty+ask_qty), 0 when both sides
// are empty.
type Imbalance struct{}

func (Imbalance) Name() string { return "imbalance" }
func (Imbalance) Reset()       {}
func (Imbalance) OnEvent(e rawEvent) (float64, bool) {
	if e.BidQty+e.AskQty == 0 {
		return 0, true
	}
	return (e.BidQty - e.AskQty) / (e.BidQty + e.AskQty), true
}

// Return1 is the proportional change in mid price between consecutive
// events; null until a previous mid is available.
type Return1 struct {
	havePrev bool
	prevMid  float64
}

func (o *Return1) Name() string { return "return_1" }
func (o *Return1) Reset()       { o.havePrev, o.prevMid = false, 0 }
func (o *Return1) OnEvent(e rawEvent) (float64, bool) {
	mid := (e.BidPrice + e.AskPrice) / 2
	if !o.havePrev {
		o.prevMid, o.havePrev = mid, true
		return 0, false
	}
	prev := o.prevMid
	o.prevMid = mid
	if prev == 0 {
		return 0, false
	}
	return (mid - prev) / prev, true
}

// Volatility is the rolling standard deviation of Return1 over the last
// window samples (a sample-count window, not a time window — see the
// batch builder's time-windowed vol_10s for the deliberately different
// batch-path behavior).
type Volatility struct {
	window int
	ret1   Return1
	buf    []float64
	pos    int
	filled int
}

func NewVolatility(window int) *Volatility {
	if window < 2 {
		window = 2
	}
	return &Volatility{window: window, buf: make([]float64, window)}
}

func (o *Volatility) Name() string { return "volatility" }
func (o *Volatility) Reset() {
	o.ret1.Reset()
	o.pos, o.filled = 0, 0
	for i := range o.buf {
		o.buf[i] = 0
	}
}
func (o *Volatility) OnEvent(e rawEvent) (float64, bool) {
	r, ok := o.ret1.OnEvent(e)
	if !ok {
		return 0, false
	}
	o.buf[o.pos] = r
	o.pos = (o.pos + 1) % o.window
	if o.filled < o.window {
		o.filled++
	}
	if o.filled < 2 {
		return 0, false
	}
	var sum, sumSq float64
	for i := 0; i < o.filled; i++ {
		v := o.buf[i]
		sum += v
		sumSq += v * v
	}
	n := float64(o.filled)
	mean := sum / n
	variance := sumSq/n - mean*mean
	return math.Sqrt(math.Max(0, variance)), true
}

// EMA is an exponential moving average of mid price with alpha=2/(N+1),
// seeded at the first mid and warm once period events have been observed.
type EMA struct {
	period int
	alpha  float64
	value  float64
	count  int
}

func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{period: period, alpha: 2 / (float64(period) + 1)}
}

func (o *EMA) Name() string { return "ema" }
func (o *EMA) Reset()       { o.value, o.count = 0, 0 }
func (o *EMA) OnEvent(e rawEvent) (float64, bool) {
	mid := (e.BidPrice + e.AskPrice) / 2
	if o.count == 0 {
		o.value = mid
	} else {
		o.value = o.alpha*mid + (1-o.alpha)*o.value
	}
	o.count++
	return o.value, o.count >= o.period
}

// RSI is the average-gain/average-loss oscillator over the last period
// mid-to-mid changes, in [0,100].
type RSI struct {
	period    int
	prevMid   float64
	haveMid   bool
	gains     []float64
	losses    []float64
	pos       int
	filled    int
}

func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{period: period, gains: make([]float64, period), losses: make([]float64, period)}
}

func (o *RSI) Name() string { return "rsi" }
func (o *RSI) Reset() {
	o.haveMid, o.pos, o.filled = false, 0, 0
	for i := range o.gains {
		o.gains[i], o.losses[i] = 0, 0
	}
}
func (o *RSI) OnEvent(e rawEvent) (float64, bool) {
	mid := (e.BidPrice + e.AskPrice) / 2
	if !o.haveMid {
		o.prevMid, o.haveMid = mid, true
		return 50, false
	}
	delta := mid - o.prevMid
	o.prevMid = mid
	if delta > 0 {
		o.gains[o.pos], o.losses[o.pos] = delta, 0
	} else {
		o.gains[o.pos], o.losses[o.pos] = 0, -delta
	}
	o.pos = (o.pos + 1) % o.period
	if o.filled < o.period {
		o.filled++
	}
	var avgGain, avgLoss float64
	for i := 0; i < o.filled; i++ {
		avgGain += o.gains[i]
		avgLoss += o.losses[i]
	}
	avgGain /= float64(o.filled)
	avgLoss /= float64(o.filled)
	if avgLoss == 0 {
		return 100, o.filled >= o.period
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), o.filled >= o.period
}

// ATR is the simple moving average of max(spread, |Δmid|) over period events.
type ATR struct {
	period  int
	haveMid bool
	prevMid float64
	buf     []float64
	pos     int
	filled  int
}

func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	return &ATR{period: period, buf: make([]float64, period)}
}

func (o *ATR) Name() string { return "atr" }
func (o *ATR) Reset() {
	o.haveMid, o.pos, o.filled = false, 0, 0
	for i := range o.buf {
		o.buf[i] = 0
	}
}
func (o *ATR) OnEvent(e rawEvent) (float64, bool) {
	mid := (e.BidPrice + e.AskPrice) / 2
	trueRange := e.AskPrice - e.BidPrice
	if o.haveMid {
		trueRange = math.Max(trueRange, math.Abs(mid-o.prevMid))
	}
	o.prevMid, o.haveMid = mid, true

	o.buf[o.pos] = trueRange
	o.pos = (o.pos + 1) % o.period
	if o.filled < o.period {
		o.filled++
	}
	var sum float64
	for i := 0; i < o.filled; i++ {
		sum += o.buf[i]
	}
	return sum / float64(o.filled), o.filled >= o.period
}

// ROC is the percentage change in mid over the last period events.
type ROC struct {
	period int
	hist   []float64 // most recent period+1 mids, oldest first
}

func NewROC(period int) *ROC {
	if period < 1 {
		period = 1
	}
	return &ROC{period: period}
}

func (o *ROC) Name() string { return "roc" }
func (o *ROC) Reset()       { o.hist = o.hist[:0] }
func (o *ROC) OnEvent(e rawEvent) (float64, bool) {
	mid := (e.BidPrice + e.AskPrice) / 2
	o.hist = append(o.hist, mid)
	if len(o.hist) > o.period+1 {
		o.hist = o.hist[len(o.hist)-(o.period+1):]
	}
	if len(o.hist) <= o.period {
		return 0, false
	}
	oldest := o.hist[0]
	if oldest == 0 {
		return 0, false
	}
	return (mid - oldest) / oldest, true
}
