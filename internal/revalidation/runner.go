// Package revalidation implements EdgeRevalidationRunner (C9):
// cooldown-gated, concurrency-capped re-validation fanned out across
// edges, with a circuit breaker around the injected validation pipeline.
// Grounded on the "evaluate N gates, collect first blocking reason" shape
// in internal/application/guards/evaluator.go, bounded fan-out
// via golang.org/x/sync/errgroup, and github.com/sony/gobreaker around the
// pipeline call.
package revalidation

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/edgecore/quantedge/internal/confidence"
	"github.com/edgecore/quantedge/internal/edge"
	"github.com/edgecore/quantedge/internal/validation"
)

const (
	SkipAlreadyRunning    = "ALREADY_RUNNING"
	SkipMaxConcurrent     = "MAX_CONCURRENT_REACHED"
	SkipCooldown          = "COOLDOWN"
)

// Config holds the gating thresholds.
type Config struct {
	MinDataRows    int
	CooldownHours  int
	MaxConcurrent  int
	CircuitTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{MinDataRows: 500, CooldownHours: 24, MaxConcurrent: 3, CircuitTimeout: 30 * time.Second}
}

// HistoryEntry records one revalidation attempt, successful, skipped, or
// errored.
type HistoryEntry struct {
	EdgeID         string
	PreviousStatus edge.Status
	NewStatus      edge.Status
	Score          float64
	Trigger        string
	RevalidatedAt  time.Time
	StatusChanged  bool
	Status         string // OK | ERROR | SKIPPED
	SkipReason     string
	Error          string
}

// Runner drives revalidation attempts against an injected pipeline.
type Runner struct {
	cfg      Config
	pipeline validation.Pipeline
	cb       *gobreaker.CircuitBreaker

	mu               sync.Mutex
	running          map[string]bool
	lastRevalidation map[string]time.Time
	history          []HistoryEntry
}

func New(cfg Config, pipeline validation.Pipeline) *Runner {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "edge-revalidation",
		Timeout: cfg.CircuitTimeout,
	})
	return &Runner{
		cfg:              cfg,
		pipeline:         pipeline,
		cb:               cb,
		running:          make(map[string]bool),
		lastRevalidation: make(map[string]time.Time),
	}
}

// ClearCooldown is a manual override removing the cooldown floor for an
// edge, so the next call can proceed immediately.
func (r *Runner) ClearCooldown(edgeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastRevalidation, edgeID)
}

func (r *Runner) History() []HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]HistoryEntry, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Runner) eligible(edgeID string, now time.Time) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[edgeID] {
		return false, SkipAlreadyRunning
	}
	if len(r.running) >= r.cfg.MaxConcurrent {
		return false, SkipMaxConcurrent
	}
	if last, ok := r.lastRevalidation[edgeID]; ok {
		if now.Sub(last) < time.Duration(r.cfg.CooldownHours)*time.Hour {
			return false, SkipCooldown
		}
	}
	return true, ""
}

func (r *Runner) markRunning(edgeID string, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if running {
		r.running[edgeID] = true
	} else {
		delete(r.running, edgeID)
	}
}

func (r *Runner) recordHistory(h HistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, h)
}

// revalidateOne performs the eligibility check, the circuit-breaker-guarded
// pipeline call, and history recording for a single edge. trigger names why
// this edge was selected (an alert type, or "scheduled").
func (r *Runner) revalidateOne(e *edge.Edge, dataset validation.Dataset, trigger string) HistoryEntry {
	now := time.Now()
	if ok, reason := r.eligible(e.ID, now); !ok {
		h := HistoryEntry{EdgeID: e.ID, Status: "SKIPPED", SkipReason: reason, RevalidatedAt: now, Trigger: trigger}
		r.recordHistory(h)
		return h
	}

	r.markRunning(e.ID, true)
	defer r.markRunning(e.ID, false)

	previousStatus := e.Status
	result, err := r.cb.Execute(func() (interface{}, error) {
		return r.pipeline.Revalidate(e, dataset)
	})

	r.mu.Lock()
	r.lastRevalidation[e.ID] = now
	r.mu.Unlock()

	if err != nil {
		h := HistoryEntry{EdgeID: e.ID, PreviousStatus: previousStatus, Status: "ERROR", Error: err.Error(), RevalidatedAt: now, Trigger: trigger}
		r.recordHistory(h)
		return h
	}

	res := result.(validation.Result)
	e.Status = res.NewStatus
	h := HistoryEntry{
		EdgeID:         e.ID,
		PreviousStatus: previousStatus,
		NewStatus:      res.NewStatus,
		Score:          res.Score,
		Trigger:        trigger,
		RevalidatedAt:  now,
		StatusChanged:  previousStatus != res.NewStatus,
		Status:         "OK",
	}
	r.recordHistory(h)
	return h
}

// ProcessAlerts attempts revalidation for every edge named in alerts,
// fanned out with bounded concurrency.
func (r *Runner) ProcessAlerts(alerts []confidence.Alert, dataset validation.Dataset, edges map[string]*edge.Edge) []HistoryEntry {
	if dataset.Len() < r.cfg.MinDataRows {
		return nil
	}

	seen := make(map[string]bool)
	var targets []*edge.Edge
	for _, a := range alerts {
		if seen[a.EdgeID] {
			continue
		}
		seen[a.EdgeID] = true
		if e, ok := edges[a.EdgeID]; ok {
			targets = append(targets, e)
		}
	}

	return r.fanOut(targets, dataset, "alert")
}

// RevalidateAll attempts revalidation for every supplied edge.
func (r *Runner) RevalidateAll(dataset validation.Dataset, edges []*edge.Edge) []HistoryEntry {
	if dataset.Len() < r.cfg.MinDataRows {
		return nil
	}
	return r.fanOut(edges, dataset, "scheduled")
}

func (r *Runner) fanOut(edges []*edge.Edge, dataset validation.Dataset, trigger string) []HistoryEntry {
	results := make([]HistoryEntry, len(edges))
	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrent)
	for i, e := range edges {
		i, e := i, e
		g.Go(func() error {
			results[i] = r.revalidateOne(e, dataset, trigger)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
