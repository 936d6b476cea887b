// Package learning implements LearningScheduler (C12), the cadenced driver
// that ties the outcome log, confidence updater, revalidation runner,
// importance tracker, and refinement engine into daily/weekly/monthly
// maintenance runs. Grounded on the scheduled-job shape in
// internal/application/scheduler, adapted to a closed learning loop.
package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edgecore/quantedge/internal/atomicio"
	"github.com/edgecore/quantedge/internal/confidence"
	"github.com/edgecore/quantedge/internal/edge"
	"github.com/edgecore/quantedge/internal/importance"
	"github.com/edgecore/quantedge/internal/outcome"
	"github.com/edgecore/quantedge/internal/refinement"
	"github.com/edgecore/quantedge/internal/revalidation"
	"github.com/edgecore/quantedge/internal/validation"
)

type RunType string

const (
	Daily   RunType = "DAILY"
	Weekly  RunType = "WEEKLY"
	Monthly RunType = "MONTHLY"
)

// RunRecord is the structured summary of one scheduled run, retained in
// history and returned to the caller.
type RunRecord struct {
	Type                RunType                `json:"type"`
	Timestamp           time.Time               `json:"timestamp"`
	Skipped             bool                    `json:"skipped,omitempty"`
	SkipReason          string                  `json:"skipReason,omitempty"`
	OutcomesAnalyzed    int                     `json:"outcomesAnalyzed"`
	AlertCount          int                     `json:"alertCount,omitempty"`
	FlaggedForRevalid   []string                `json:"flaggedForRevalidation,omitempty"`
	StatusChanges       int                     `json:"statusChanges,omitempty"`
	EdgesAnalyzed       int                     `json:"edgesAnalyzed,omitempty"`
	ProposalsGenerated  int                     `json:"proposalsGenerated,omitempty"`
	ProposalsOutputPath string                  `json:"proposalsOutputPath,omitempty"`
	RevalidationResults []revalidation.HistoryEntry `json:"-"`
}

// Config holds the scheduler's own knobs; the collaborators it drives carry
// their own configuration.
type Config struct {
	OutcomeDir            string
	EnableAutoRevalidation bool
	HistoryDepth          int
}

// Scheduler wires the learning-subsystem collaborators together.
type Scheduler struct {
	cfg          Config
	confidence   *confidence.Updater
	revalidation *revalidation.Runner
	importance   *importance.Tracker
	refinement   *refinement.Engine

	history []RunRecord
}

func New(cfg Config, confidenceUpdater *confidence.Updater, revalidationRunner *revalidation.Runner, importanceTracker *importance.Tracker, refinementEngine *refinement.Engine) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		confidence:   confidenceUpdater,
		revalidation: revalidationRunner,
		importance:   importanceTracker,
		refinement:   refinementEngine,
	}
}

// RunDaily reads the last 24h of outcomes, feeds the confidence updater for
// every matching edge, and — if EnableAutoRevalidation — flags (but does
// not execute) the affected edges for revalidation.
func (s *Scheduler) RunDaily(edges map[string]*edge.Edge) RunRecord {
	now := time.Now()
	since := now.Add(-24 * time.Hour)

	outcomes, err := outcome.Read(s.cfg.OutcomeDir, outcome.Filter{Since: since})
	if err != nil {
		log.Warn().Err(err).Msg("learning scheduler: daily outcome read failed")
	}
	if len(outcomes) == 0 {
		rec := RunRecord{Type: Daily, Timestamp: now, Skipped: true, SkipReason: "no_outcomes"}
		s.record(rec)
		return rec
	}

	var allAlerts []confidence.Alert
	for _, o := range outcomes {
		e, ok := edges[o.EdgeID]
		if !ok {
			continue
		}
		allAlerts = append(allAlerts, s.confidence.Update(e, o.PnL)...)
	}

	rec := RunRecord{Type: Daily, Timestamp: now, OutcomesAnalyzed: len(outcomes), AlertCount: len(allAlerts)}
	if s.cfg.EnableAutoRevalidation {
		rec.FlaggedForRevalid = dedupeEdgeIDs(allAlerts)
	}
	s.record(rec)
	return rec
}

// RunWeekly runs the daily pass first, then revalidates every supplied
// edge against dataset.
func (s *Scheduler) RunWeekly(dataset validation.Dataset, edges map[string]*edge.Edge) RunRecord {
	daily := s.RunDaily(edges)

	edgeList := make([]*edge.Edge, 0, len(edges))
	for _, e := range edges {
		edgeList = append(edgeList, e)
	}
	results := s.revalidation.RevalidateAll(dataset, edgeList)

	statusChanges := 0
	for _, h := range results {
		if h.StatusChanged {
			statusChanges++
		}
	}

	rec := RunRecord{
		Type:                Weekly,
		Timestamp:           time.Now(),
		OutcomesAnalyzed:    daily.OutcomesAnalyzed,
		AlertCount:          daily.AlertCount,
		StatusChanges:       statusChanges,
		RevalidationResults: results,
	}
	s.record(rec)
	return rec
}

// ProposalsFile is the on-disk shape of a monthly refinement output.
type ProposalsFile struct {
	Timestamp          time.Time              `json:"timestamp"`
	OutcomesAnalyzed   int                    `json:"outcomesAnalyzed"`
	EdgesAnalyzed      int                    `json:"edgesAnalyzed"`
	ProposalsGenerated int                    `json:"proposalsGenerated"`
	Proposals          []refinement.Proposal  `json:"proposals"`
}

// RunMonthly runs the weekly pass first, then analyzes 30 days of outcomes
// for feature importance and persists refinement proposals to outputDir.
// The feature-importance scan checks ctx for cancellation between features.
func (s *Scheduler) RunMonthly(ctx context.Context, dataset validation.Dataset, edges map[string]*edge.Edge, definitions map[string]edge.Definition, outputDir string) (RunRecord, error) {
	weekly := s.RunWeekly(dataset, edges)

	since := time.Now().Add(-30 * 24 * time.Hour)
	outcomes, err := outcome.Read(s.cfg.OutcomeDir, outcome.Filter{Since: since})
	if err != nil {
		log.Warn().Err(err).Msg("learning scheduler: monthly outcome read failed")
	}

	grouped := make(map[string][]outcome.Outcome)
	for _, o := range outcomes {
		grouped[o.EdgeID] = append(grouped[o.EdgeID], o)
	}

	analyses := make(map[string]importance.EdgeAnalysis)
	for edgeID, group := range grouped {
		feats := make([]map[string]float64, len(group))
		pnls := make([]float64, len(group))
		for i, o := range group {
			feats[i] = o.EntryFeatures
			pnls[i] = o.PnL
		}
		if a := s.importance.Analyze(ctx, edgeID, feats, pnls); a != nil {
			analyses[edgeID] = *a
		}
	}

	proposals := s.refinement.Generate(analyses, definitions)

	now := time.Now()
	rec := RunRecord{
		Type:               Monthly,
		Timestamp:          now,
		OutcomesAnalyzed:   weekly.OutcomesAnalyzed + len(outcomes),
		StatusChanges:      weekly.StatusChanges,
		EdgesAnalyzed:      len(analyses),
		ProposalsGenerated: len(proposals),
	}

	if outputDir != "" {
		payload := ProposalsFile{
			Timestamp:          now,
			OutcomesAnalyzed:   len(outcomes),
			EdgesAnalyzed:      len(analyses),
			ProposalsGenerated: len(proposals),
			Proposals:          proposals,
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return rec, fmt.Errorf("learning: marshal proposals: %w", err)
		}
		path := filepath.Join(outputDir, fmt.Sprintf("refinement-proposals-%s.json", now.UTC().Format("20060102T150405Z")))
		if err := atomicio.WriteFile(path, data, 0644); err != nil {
			return rec, fmt.Errorf("learning: write proposals: %w", err)
		}
		rec.ProposalsOutputPath = path
	}

	s.record(rec)
	return rec, nil
}

// HistoryFilter narrows a History call.
type HistoryFilter struct {
	Type  RunType
	Since time.Time
	Limit int
}

func (s *Scheduler) History(filter HistoryFilter) []RunRecord {
	var out []RunRecord
	for _, r := range s.history {
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if !filter.Since.IsZero() && r.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, r)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

func (s *Scheduler) record(r RunRecord) {
	s.history = append(s.history, r)
	if s.cfg.HistoryDepth > 0 && len(s.history) > s.cfg.HistoryDepth {
		s.history = s.history[len(s.history)-s.cfg.HistoryDepth:]
	}
}

func dedupeEdgeIDs(alerts []confidence.Alert) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range alerts {
		if !seen[a.EdgeID] {
			seen[a.EdgeID] = true
			out = append(out, a.EdgeID)
		}
	}
	return out
}
