// Package replay implements the Deterministic Replay Runner (C14): it
// drives a strictly ordered event sequence through a strategy, enforcing
// ordering and error policies, and produces hash-stable run identity and
// snapshots. Grounded on the staged-lifecycle backtest runner in
// internal/application/backtest/runner.go.
package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/edgecore/quantedge/internal/bbo"
)

// State is a runner lifecycle stage.
type State string

const (
	StateCreated      State = "CREATED"
	StateInitializing State = "INITIALIZING"
	StateReady        State = "READY"
	StateRunning      State = "RUNNING"
	StatePaused       State = "PAUSED"
	StateFinalizing   State = "FINALIZING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
	StateCanceled     State = "CANCELED"
)

// OrderingPolicy governs how a non-monotonic (ts_event, seq) pair is
// handled.
type OrderingPolicy string

const (
	OrderingStrict OrderingPolicy = "STRICT"
	OrderingWarn   OrderingPolicy = "WARN"
)

// ErrorPolicy governs how a strategy error on one event is handled.
type ErrorPolicy string

const (
	ErrorFailFast    ErrorPolicy = "FAIL_FAST"
	ErrorSkipAndLog  ErrorPolicy = "SKIP_AND_LOG"
	ErrorQuarantine  ErrorPolicy = "QUARANTINE"
)

// Config is the run's identity material; RunID hashes over it.
type Config struct {
	Seed           int64
	DatasetID      string
	StrategyID     string
	Version        string
	OrderingPolicy OrderingPolicy
	ErrorPolicy    ErrorPolicy
	Params         map[string]string
}

// OrderIntent is what a strategy submits to the execution engine.
type OrderIntent struct {
	Symbol string
	Side   string
	Qty    float64
	Price  float64
}

// FillResult is what the execution engine returns for a submitted order.
type FillResult struct {
	OrderID    string
	FilledQty  float64
	FillPrice  float64
	Timestamp  int64
}

// ExecutionEngine routes order intents to fills. Implementations external
// to this package decide matching/slippage semantics.
type ExecutionEngine interface {
	PlaceOrder(intent OrderIntent) FillResult
}

// Snapshotter is implemented by strategies/engines that expose inspectable
// state for Runner.Snapshot.
type Snapshotter interface {
	Snapshot() interface{}
}

// Context is what a strategy receives at each callback; PlaceOrder routes
// through the runner's execution engine and records the fill.
type Context struct {
	runner *Runner
	Event  bbo.Event
}

func (c *Context) PlaceOrder(intent OrderIntent) FillResult {
	fill := c.runner.engine.PlaceOrder(intent)
	c.runner.fills = append(c.runner.fills, fill)
	return fill
}

// Strategy is driven event-by-event by the runner.
type Strategy interface {
	OnInit(ctx *Context) error
	OnEvent(ctx *Context, event bbo.Event) error
	OnFinalize(ctx *Context) error
}

// Snapshot combines execution state, strategy state, cursor position, and
// a hash of the ordered fills list, suitable for persistence at a
// suspension point.
type Snapshot struct {
	RunID          string
	State          State
	Cursor         int
	ExecutionState interface{}
	StrategyState  interface{}
	FillsHash      string
}

// Manifest records how far a replay got before it stopped short of DONE —
// emitted when a run is canceled, so a partial run leaves behind an
// auditable record of exactly what it did and did not process.
type Manifest struct {
	RunID            string `json:"runId"`
	State            State  `json:"state"`
	EventsTotal      int    `json:"eventsTotal"`
	EventsProcessed  int    `json:"eventsProcessed"`
	FillsCount       int    `json:"fillsCount"`
	QuarantinedCount int    `json:"quarantinedCount"`
	FillsHash        string `json:"fillsHash"`
}

// Runner drives a fixed event sequence through a strategy under the
// lifecycle CREATED -> INITIALIZING -> READY -> RUNNING -> (PAUSED) ->
// FINALIZING -> (DONE|FAILED|CANCELED).
type Runner struct {
	cfg      Config
	strategy Strategy
	engine   ExecutionEngine
	events   []bbo.Event

	runID       string
	state       State
	cursor      int
	fills       []FillResult
	quarantined []QuarantinedEvent
	err         error
	manifest    *Manifest
}

func New(cfg Config, strategy Strategy, engine ExecutionEngine, events []bbo.Event) *Runner {
	return &Runner{
		cfg:      cfg,
		strategy: strategy,
		engine:   engine,
		events:   events,
		runID:    computeRunID(cfg),
		state:    StateCreated,
	}
}

func (r *Runner) RunID() string { return r.runID }
func (r *Runner) State() State  { return r.state }
func (r *Runner) Cursor() int   { return r.cursor }
func (r *Runner) Err() error    { return r.err }

// Init runs the strategy's onInit hook, the first suspension point.
func (r *Runner) Init() error {
	if r.state != StateCreated {
		return fmt.Errorf("replay: init invalid from state %s", r.state)
	}
	r.state = StateInitializing
	if err := r.strategy.OnInit(&Context{runner: r}); err != nil {
		r.state = StateFailed
		r.err = err
		return err
	}
	r.state = StateReady
	return nil
}

// Run drives events from the current cursor until exhaustion, a pause, a
// cancellation, or a fatal condition. A paused run resumes exactly where it
// left off; a canceled run does not — cancellation is terminal and emits a
// partial run manifest in place of running onFinalize.
func (r *Runner) Run() error {
	if r.state != StateReady && r.state != StatePaused {
		return fmt.Errorf("replay: run invalid from state %s", r.state)
	}
	r.state = StateRunning

	for r.cursor < len(r.events) {
		if r.state == StatePaused {
			return nil
		}
		if r.state == StateCanceled {
			r.emitManifest()
			return nil
		}

		e := r.events[r.cursor]
		if r.cursor > 0 {
			if err := r.checkOrdering(r.events[r.cursor-1], e); err != nil {
				r.state = StateFailed
				r.err = err
				return err
			}
		}

		if err := r.dispatch(e); err != nil {
			r.state = StateFailed
			r.err = err
			return err
		}

		r.cursor++
	}

	return r.Finalize()
}

func (r *Runner) checkOrdering(prev, cur bbo.Event) error {
	if bbo.Less(cur, prev) {
		msg := fmt.Sprintf("replay: ordering violation at cursor %d: (%d,%d) precedes (%d,%d)", r.cursor, cur.TsEvent, cur.Seq, prev.TsEvent, prev.Seq)
		if r.cfg.OrderingPolicy == OrderingStrict {
			return errors.New(msg)
		}
		log.Warn().Msg(msg)
	}
	return nil
}

func (r *Runner) dispatch(e bbo.Event) error {
	err := r.strategy.OnEvent(&Context{runner: r, Event: e}, e)
	if err == nil {
		return nil
	}
	switch r.cfg.ErrorPolicy {
	case ErrorFailFast:
		return err
	case ErrorQuarantine:
		r.quarantine(e, err)
		return nil
	default: // ErrorSkipAndLog and unset default to log-and-continue
		log.Warn().Err(err).Int64("ts_event", e.TsEvent).Int64("seq", e.Seq).Msg("replay: strategy error, skipping event")
		return nil
	}
}

func (r *Runner) quarantine(e bbo.Event, err error) {
	log.Warn().Err(err).Int64("ts_event", e.TsEvent).Int64("seq", e.Seq).Msg("replay: strategy error, quarantining event")
	r.quarantined = append(r.quarantined, QuarantinedEvent{Event: e, Error: err.Error()})
}

// QuarantinedEvent records one event skipped under the QUARANTINE error
// policy, along with the error that triggered it.
type QuarantinedEvent struct {
	Event bbo.Event
	Error string
}

// Pause requests suspension at the next event boundary.
func (r *Runner) Pause() {
	if r.state == StateRunning {
		r.state = StatePaused
	}
}

// Cancel marks the run canceled; it does not run onFinalize. The running
// Run() call observes this at the next event boundary, stops, and emits a
// partial run manifest rather than completing the sequence.
func (r *Runner) Cancel() {
	r.state = StateCanceled
}

// emitManifest builds and logs the partial run manifest for a canceled run.
func (r *Runner) emitManifest() {
	m := Manifest{
		RunID:            r.runID,
		State:            r.state,
		EventsTotal:      len(r.events),
		EventsProcessed:  r.cursor,
		FillsCount:       len(r.fills),
		QuarantinedCount: len(r.quarantined),
		FillsHash:        hashFills(r.fills),
	}
	r.manifest = &m
	log.Warn().Str("run_id", m.RunID).Int("events_processed", m.EventsProcessed).
		Int("events_total", m.EventsTotal).Msg("replay: canceled, emitting partial run manifest")
}

// LastManifest returns the manifest emitted by the most recent cancellation,
// or nil if this run was never canceled.
func (r *Runner) LastManifest() *Manifest {
	return r.manifest
}

// Finalize runs the strategy's onFinalize hook, the last suspension point.
func (r *Runner) Finalize() error {
	r.state = StateFinalizing
	if err := r.strategy.OnFinalize(&Context{runner: r}); err != nil {
		r.state = StateFailed
		r.err = err
		return err
	}
	r.state = StateDone
	return nil
}

// Snapshot captures the current state for persistence at a suspension
// point.
func (r *Runner) Snapshot() Snapshot {
	var execState, strategyState interface{}
	if s, ok := r.engine.(Snapshotter); ok {
		execState = s.Snapshot()
	}
	if s, ok := r.strategy.(Snapshotter); ok {
		strategyState = s.Snapshot()
	}
	return Snapshot{
		RunID:          r.runID,
		State:          r.state,
		Cursor:         r.cursor,
		ExecutionState: execState,
		StrategyState:  strategyState,
		FillsHash:      hashFills(r.fills),
	}
}

// Quarantined returns every event skipped under the QUARANTINE error
// policy, in the order encountered.
func (r *Runner) Quarantined() []QuarantinedEvent {
	return r.quarantined
}

func computeRunID(cfg Config) string {
	h := sha256.New()
	fmt.Fprintf(h, "seed=%d|dataset=%s|strategy=%s|version=%s|ordering=%s|errors=%s|",
		cfg.Seed, cfg.DatasetID, cfg.StrategyID, cfg.Version, cfg.OrderingPolicy, cfg.ErrorPolicy)
	keys := sortedKeys(cfg.Params)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s;", k, cfg.Params[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func hashFills(fills []FillResult) string {
	h := sha256.New()
	for _, f := range fills {
		fmt.Fprintf(h, "%s|%f|%f|%d;", f.OrderID, f.FilledQty, f.FillPrice, f.Timestamp)
	}
	return hex.EncodeToString(h.Sum(nil))
}
