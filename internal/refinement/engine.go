// Package refinement implements BehaviorRefinementEngine (C11): it turns
// per-edge feature-importance analyses into actionable proposals for
// weight adjustment, feature pruning, and new-feature discovery. Grounded
// on the rule-scoring shape in internal/application/guards, adapted into a
// proposal generator rather than a gate.
package refinement

import (
	"sort"
	"time"

	"github.com/edgecore/quantedge/internal/edge"
	"github.com/edgecore/quantedge/internal/importance"
)

type ProposalType string

const (
	WeightAdjust     ProposalType = "WEIGHT_ADJUST"
	PruneCandidate   ProposalType = "PRUNE_CANDIDATE"
	NewFeatureSignal ProposalType = "NEW_FEATURE_SIGNAL"
)

type Priority string

const (
	High   Priority = "HIGH"
	Medium Priority = "MEDIUM"
	Low    Priority = "LOW"
)

var priorityRank = map[Priority]int{High: 0, Medium: 1, Low: 2}

// Proposal is one actionable suggestion surfaced by a refinement run.
// EdgeID is empty for cross-edge proposals (PRUNE_CANDIDATE, NEW_FEATURE_SIGNAL).
type Proposal struct {
	Type        ProposalType           `json:"type"`
	EdgeID      string                 `json:"edgeId,omitempty"`
	FeatureName string                 `json:"featureName"`
	Reasoning   string                 `json:"reasoning"`
	Data        map[string]interface{} `json:"data"`
	Timestamp   time.Time              `json:"timestamp"`
	Priority    Priority               `json:"priority"`
}

// Config holds the thresholds governing proposal generation.
type Config struct {
	HighImportanceThreshold float64
	LowImportanceThreshold  float64
	MinEdgesForPrune        int
	NewFeatureCorrelation   float64
	HistoryDepth            int
}

func DefaultConfig() Config {
	return Config{
		HighImportanceThreshold: 0.6,
		LowImportanceThreshold:  0.2,
		MinEdgesForPrune:        3,
		NewFeatureCorrelation:   0.5,
		HistoryDepth:            20,
	}
}

// Engine generates and retains a bounded history of refinement proposals.
type Engine struct {
	cfg     Config
	history []Proposal
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Generate produces a sorted (HIGH -> MEDIUM -> LOW) proposal set from one
// round of per-edge feature analyses and the edges' current definitions.
func (eng *Engine) Generate(analyses map[string]importance.EdgeAnalysis, definitions map[string]edge.Definition) []Proposal {
	var proposals []Proposal
	proposals = append(proposals, eng.weightAdjustProposals(analyses, definitions)...)
	proposals = append(proposals, eng.pruneProposals(analyses)...)
	proposals = append(proposals, eng.newFeatureProposals(analyses, definitions)...)

	sort.SliceStable(proposals, func(i, j int) bool {
		return priorityRank[proposals[i].Priority] < priorityRank[proposals[j].Priority]
	})

	eng.history = append(eng.history, proposals...)
	if eng.cfg.HistoryDepth > 0 && len(eng.history) > eng.cfg.HistoryDepth {
		eng.history = eng.history[len(eng.history)-eng.cfg.HistoryDepth:]
	}

	return proposals
}

func (eng *Engine) History() []Proposal {
	return eng.history
}

func (eng *Engine) weightAdjustProposals(analyses map[string]importance.EdgeAnalysis, definitions map[string]edge.Definition) []Proposal {
	var out []Proposal
	for edgeID, analysis := range analyses {
		def := definitions[edgeID]
		for feat, fa := range analysis.Features {
			if fa.Importance < eng.cfg.HighImportanceThreshold {
				continue
			}
			priority := Medium
			if !conditionHasFeature(def, feat) {
				priority = High
			}
			out = append(out, Proposal{
				Type:        WeightAdjust,
				EdgeID:      edgeID,
				FeatureName: feat,
				Reasoning:   "feature shows high importance for this edge's outcomes",
				Data:        map[string]interface{}{"importance": fa.Importance, "correlation": fa.Correlation},
				Timestamp:   analysis.Timestamp,
				Priority:    priority,
			})
		}
	}
	return out
}

func (eng *Engine) pruneProposals(analyses map[string]importance.EdgeAnalysis) []Proposal {
	counts := make(map[string]int)
	for _, analysis := range analyses {
		for feat, fa := range analysis.Features {
			if fa.Importance < eng.cfg.LowImportanceThreshold {
				counts[feat]++
			}
		}
	}

	var out []Proposal
	now := time.Now()
	for feat, count := range counts {
		if count < eng.cfg.MinEdgesForPrune {
			continue
		}
		priority := Medium
		if count >= 5 {
			priority = High
		}
		out = append(out, Proposal{
			Type:        PruneCandidate,
			FeatureName: feat,
			Reasoning:   "feature shows low importance across multiple edges",
			Data:        map[string]interface{}{"lowImportanceEdgeCount": count},
			Timestamp:   now,
			Priority:    priority,
		})
	}
	return out
}

func (eng *Engine) newFeatureProposals(analyses map[string]importance.EdgeAnalysis, definitions map[string]edge.Definition) []Proposal {
	var sumCorr = make(map[string]float64)
	var n = make(map[string]int)
	var usedCount = make(map[string]int)
	total := len(analyses)

	for edgeID, analysis := range analyses {
		for feat, fa := range analysis.Features {
			sumCorr[feat] += abs(fa.Correlation)
			n[feat]++
			if conditionHasFeature(definitions[edgeID], feat) {
				usedCount[feat]++
			}
		}
	}

	var out []Proposal
	now := time.Now()
	for feat, count := range n {
		avgCorr := sumCorr[feat] / float64(count)
		if avgCorr < eng.cfg.NewFeatureCorrelation {
			continue
		}
		usageFraction := 0.0
		if total > 0 {
			usageFraction = float64(usedCount[feat]) / float64(total)
		}
		if usageFraction >= 0.3 {
			continue
		}
		priority := Medium
		if avgCorr > 0.7 {
			priority = High
		}
		out = append(out, Proposal{
			Type:        NewFeatureSignal,
			FeatureName: feat,
			Reasoning:   "feature correlates strongly with outcomes but is rarely used in edge definitions",
			Data:        map[string]interface{}{"avgCorrelation": avgCorr, "usageFraction": usageFraction},
			Timestamp:   now,
			Priority:    priority,
		})
	}
	return out
}

func conditionHasFeature(def edge.Definition, feature string) bool {
	for _, c := range def.Pattern.Conditions {
		if c.Feature == feature {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
