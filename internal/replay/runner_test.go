package replay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecore/quantedge/internal/bbo"
)

type recordingStrategy struct {
	initCalled     bool
	finalizeCalled bool
	seen           []bbo.Event
	failOnSeq      int64
	failErr        error
}

func (s *recordingStrategy) OnInit(ctx *Context) error {
	s.initCalled = true
	return nil
}

func (s *recordingStrategy) OnEvent(ctx *Context, e bbo.Event) error {
	if s.failOnSeq != 0 && e.Seq == s.failOnSeq {
		return s.failErr
	}
	s.seen = append(s.seen, e)
	ctx.PlaceOrder(OrderIntent{Symbol: e.Symbol, Side: "BUY", Qty: 1, Price: e.BidPrice})
	return nil
}

func (s *recordingStrategy) OnFinalize(ctx *Context) error {
	s.finalizeCalled = true
	return nil
}

type cancelingStrategy struct {
	cancelOnSeq int64
	runner      *Runner
	seen        []bbo.Event
}

func (s *cancelingStrategy) OnInit(ctx *Context) error { s.runner = ctx.runner; return nil }

func (s *cancelingStrategy) OnEvent(ctx *Context, e bbo.Event) error {
	s.seen = append(s.seen, e)
	if e.Seq == s.cancelOnSeq {
		s.runner.Cancel()
	}
	return nil
}

func (s *cancelingStrategy) OnFinalize(ctx *Context) error { return nil }

type fakeEngine struct{ n int }

func (f *fakeEngine) PlaceOrder(intent OrderIntent) FillResult {
	f.n++
	return FillResult{OrderID: "o", FilledQty: intent.Qty, FillPrice: intent.Price, Timestamp: int64(f.n)}
}

func sampleEvents() []bbo.Event {
	return []bbo.Event{
		{TsEvent: 1, Seq: 1, BidPrice: 100, AskPrice: 101, Symbol: "X"},
		{TsEvent: 2, Seq: 2, BidPrice: 100.1, AskPrice: 101.1, Symbol: "X"},
		{TsEvent: 3, Seq: 3, BidPrice: 100.2, AskPrice: 101.2, Symbol: "X"},
	}
}

func TestRunner_FullLifecycleReachesDone(t *testing.T) {
	strat := &recordingStrategy{}
	r := New(Config{Seed: 1, DatasetID: "d", StrategyID: "s", Version: "v1", OrderingPolicy: OrderingStrict, ErrorPolicy: ErrorFailFast}, strat, &fakeEngine{}, sampleEvents())

	require.NoError(t, r.Init())
	assert.Equal(t, StateReady, r.State())
	require.NoError(t, r.Run())

	assert.Equal(t, StateDone, r.State())
	assert.True(t, strat.initCalled)
	assert.True(t, strat.finalizeCalled)
	assert.Len(t, strat.seen, 3)
	assert.Equal(t, 3, r.Cursor())
}

func TestRunner_RunIDStableForSameConfig(t *testing.T) {
	cfg := Config{Seed: 42, DatasetID: "d1", StrategyID: "strat1", Version: "v1"}
	r1 := New(cfg, &recordingStrategy{}, &fakeEngine{}, sampleEvents())
	r2 := New(cfg, &recordingStrategy{}, &fakeEngine{}, sampleEvents())
	assert.Equal(t, r1.RunID(), r2.RunID())
}

func TestRunner_RunIDDiffersOnSeed(t *testing.T) {
	base := Config{Seed: 1, DatasetID: "d1", StrategyID: "strat1", Version: "v1"}
	other := base
	other.Seed = 2
	r1 := New(base, &recordingStrategy{}, &fakeEngine{}, sampleEvents())
	r2 := New(other, &recordingStrategy{}, &fakeEngine{}, sampleEvents())
	assert.NotEqual(t, r1.RunID(), r2.RunID())
}

func TestRunner_OrderingViolationStrictIsFatal(t *testing.T) {
	events := []bbo.Event{
		{TsEvent: 5, Seq: 1},
		{TsEvent: 1, Seq: 2}, // precedes prior event -> violation
	}
	r := New(Config{OrderingPolicy: OrderingStrict, ErrorPolicy: ErrorFailFast}, &recordingStrategy{}, &fakeEngine{}, events)
	require.NoError(t, r.Init())
	err := r.Run()
	require.Error(t, err)
	assert.Equal(t, StateFailed, r.State())
}

func TestRunner_OrderingViolationWarnContinues(t *testing.T) {
	events := []bbo.Event{
		{TsEvent: 5, Seq: 1},
		{TsEvent: 1, Seq: 2},
	}
	strat := &recordingStrategy{}
	r := New(Config{OrderingPolicy: OrderingWarn, ErrorPolicy: ErrorFailFast}, strat, &fakeEngine{}, events)
	require.NoError(t, r.Init())
	require.NoError(t, r.Run())
	assert.Equal(t, StateDone, r.State())
	assert.Len(t, strat.seen, 2)
}

func TestRunner_ErrorPolicyFailFast(t *testing.T) {
	strat := &recordingStrategy{failOnSeq: 2, failErr: errors.New("boom")}
	r := New(Config{ErrorPolicy: ErrorFailFast}, strat, &fakeEngine{}, sampleEvents())
	require.NoError(t, r.Init())
	err := r.Run()
	require.Error(t, err)
	assert.Equal(t, StateFailed, r.State())
	assert.Equal(t, 1, r.Cursor()) // stopped on the failing event
}

func TestRunner_ErrorPolicySkipAndLogContinues(t *testing.T) {
	strat := &recordingStrategy{failOnSeq: 2, failErr: errors.New("boom")}
	r := New(Config{ErrorPolicy: ErrorSkipAndLog}, strat, &fakeEngine{}, sampleEvents())
	require.NoError(t, r.Init())
	require.NoError(t, r.Run())
	assert.Equal(t, StateDone, r.State())
	assert.Len(t, strat.seen, 2) // seq 2 skipped, 1 and 3 recorded
}

func TestRunner_ErrorPolicyQuarantineRecordsAndContinues(t *testing.T) {
	strat := &recordingStrategy{failOnSeq: 2, failErr: errors.New("boom")}
	r := New(Config{ErrorPolicy: ErrorQuarantine}, strat, &fakeEngine{}, sampleEvents())
	require.NoError(t, r.Init())
	require.NoError(t, r.Run())
	assert.Equal(t, StateDone, r.State())
	require.Len(t, r.Quarantined(), 1)
	assert.Equal(t, int64(2), r.Quarantined()[0].Event.Seq)
}

func TestRunner_PauseBeforeRunIsNoOp(t *testing.T) {
	strat := &recordingStrategy{}
	events := sampleEvents()
	r := New(Config{}, strat, &fakeEngine{}, events)
	require.NoError(t, r.Init())

	// Pause only acts on a RUNNING runner; after Init the state is READY,
	// so an idle pause call must leave it unchanged.
	r.Pause()
	assert.Equal(t, StateReady, r.State())
}

func TestRunner_SnapshotIncludesFillsHash(t *testing.T) {
	strat := &recordingStrategy{}
	r := New(Config{}, strat, &fakeEngine{}, sampleEvents())
	require.NoError(t, r.Init())
	require.NoError(t, r.Run())

	snap := r.Snapshot()
	assert.Equal(t, r.RunID(), snap.RunID)
	assert.Equal(t, StateDone, snap.State)
	assert.NotEmpty(t, snap.FillsHash)
}

func TestRunner_CancelSkipsFinalize(t *testing.T) {
	strat := &recordingStrategy{}
	r := New(Config{}, strat, &fakeEngine{}, sampleEvents())
	require.NoError(t, r.Init())
	r.Cancel()
	assert.Equal(t, StateCanceled, r.State())
	assert.False(t, strat.finalizeCalled)
}

func TestRunner_CancelMidRunStopsAtEventBoundaryAndEmitsManifest(t *testing.T) {
	strat := &cancelingStrategy{cancelOnSeq: 2}
	r := New(Config{Seed: 1, DatasetID: "d", StrategyID: "s", Version: "v1"}, strat, &fakeEngine{}, sampleEvents())

	require.NoError(t, r.Init())
	require.NoError(t, r.Run())

	assert.Equal(t, StateCanceled, r.State())
	assert.Len(t, strat.seen, 2, "the third event must never be dispatched once canceled")
	assert.Equal(t, 2, r.Cursor())

	m := r.LastManifest()
	require.NotNil(t, m)
	assert.Equal(t, r.RunID(), m.RunID)
	assert.Equal(t, StateCanceled, m.State)
	assert.Equal(t, 3, m.EventsTotal)
	assert.Equal(t, 2, m.EventsProcessed)
}
