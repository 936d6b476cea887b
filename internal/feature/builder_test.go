package feature

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecore/quantedge/internal/bbo"
)

func synthRows(n int, startTs int64, stepMs int64) []bbo.Event {
	rows := make([]bbo.Event, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += (rand.Float64() - 0.5) * 0.01
		rows[i] = bbo.Event{
			TsEvent:  startTs + int64(i)*stepMs,
			Seq:      int64(i),
			BidPrice: price - 0.01,
			AskPrice: price + 0.01,
			BidQty:   100,
			AskQty:   100,
			Symbol:   "BTC-USD",
		}
	}
	return rows
}

func TestBuildV1_DropsColdStartAndUnlabeledTail(t *testing.T) {
	rows := synthRows(200, 0, 500) // 100s of data at 2Hz
	out := BuildV1(rows)
	require.NotEmpty(t, out)

	for _, v := range out {
		assert.GreaterOrEqual(t, v.TsEvent, int64(coldStartMs))
		assert.LessOrEqual(t, v.TsEvent, rows[len(rows)-1].TsEvent-labelHorizon)
	}
}

func TestBuildV1_SortsUnorderedInput(t *testing.T) {
	ordered := synthRows(100, 0, 500)
	shuffled := make([]bbo.Event, len(ordered))
	copy(shuffled, ordered)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	got := BuildV1(shuffled)
	want := BuildV1(ordered)
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i], got[i])
	}
}

func TestBuildV1_MicropriceFormula(t *testing.T) {
	rows := []bbo.Event{
		{TsEvent: 0, Seq: 0, BidPrice: 100, AskPrice: 102, BidQty: 100, AskQty: 50},
	}
	// extend with enough history/future to survive cold-start and label drop
	base := synthRows(80, -40_000, 500)
	base = append(base, rows...)
	more := synthRows(60, 10_500, 500)
	base = append(base, more...)

	out := BuildV1(base)
	found := false
	for _, v := range out {
		if v.TsEvent == 0 {
			found = true
			assert.InDelta(t, 101.333, v.Microprice, 0.01)
		}
	}
	assert.True(t, found, "expected row at ts_event=0 to survive")
}

func TestBuildV1_AllFeaturesFinite(t *testing.T) {
	rows := synthRows(500, 0, 200)
	out := BuildV1(rows)
	require.NotEmpty(t, out)
	for _, v := range out {
		assert.False(t, math.IsNaN(v.Mid))
		assert.False(t, math.IsNaN(v.Vol10s))
		assert.False(t, math.IsInf(v.Ret1s, 0))
	}
}

func TestBuildV1_EmptyInput(t *testing.T) {
	assert.Nil(t, BuildV1(nil))
}

func TestConfigHash_Stable(t *testing.T) {
	a := ConfigHash()
	b := ConfigHash()
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}
