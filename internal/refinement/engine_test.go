package refinement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecore/quantedge/internal/edge"
	"github.com/edgecore/quantedge/internal/importance"
)

func analysis(features map[string]importance.FeatureAnalysis) importance.EdgeAnalysis {
	return importance.EdgeAnalysis{Timestamp: time.Now(), Features: features}
}

func TestGenerate_WeightAdjustHighWhenFeatureNotInConditions(t *testing.T) {
	eng := New(DefaultConfig())
	analyses := map[string]importance.EdgeAnalysis{
		"e1": analysis(map[string]importance.FeatureAnalysis{
			"imbalance": {Importance: 0.8, Correlation: 0.7},
		}),
	}
	definitions := map[string]edge.Definition{
		"e1": {Pattern: edge.Pattern{Conditions: []edge.Condition{{Feature: "spread", Operator: ">", Value: 0}}}},
	}

	got := eng.Generate(analyses, definitions)
	// correlation 0.7 on an unused feature also yields a MEDIUM
	// NEW_FEATURE_SIGNAL, which sorts after the HIGH weight adjustment.
	require.Len(t, got, 2)
	assert.Equal(t, WeightAdjust, got[0].Type)
	assert.Equal(t, High, got[0].Priority)
}

func TestGenerate_WeightAdjustMediumWhenFeatureAlreadyUsed(t *testing.T) {
	eng := New(DefaultConfig())
	analyses := map[string]importance.EdgeAnalysis{
		"e1": analysis(map[string]importance.FeatureAnalysis{
			"imbalance": {Importance: 0.8},
		}),
	}
	definitions := map[string]edge.Definition{
		"e1": {Pattern: edge.Pattern{Conditions: []edge.Condition{{Feature: "imbalance", Operator: ">", Value: 0}}}},
	}

	got := eng.Generate(analyses, definitions)
	require.Len(t, got, 1)
	assert.Equal(t, Medium, got[0].Priority)
}

func TestGenerate_PruneCandidateAcrossEdges(t *testing.T) {
	eng := New(DefaultConfig())
	analyses := map[string]importance.EdgeAnalysis{
		"e1": analysis(map[string]importance.FeatureAnalysis{"noise": {Importance: 0.05}}),
		"e2": analysis(map[string]importance.FeatureAnalysis{"noise": {Importance: 0.05}}),
		"e3": analysis(map[string]importance.FeatureAnalysis{"noise": {Importance: 0.05}}),
	}
	got := eng.Generate(analyses, map[string]edge.Definition{})
	require.Len(t, got, 1)
	assert.Equal(t, PruneCandidate, got[0].Type)
	assert.Equal(t, Medium, got[0].Priority) // count=3, below 5
}

func TestGenerate_PruneCandidateHighPriorityAtFiveEdges(t *testing.T) {
	eng := New(DefaultConfig())
	analyses := map[string]importance.EdgeAnalysis{}
	for i := 0; i < 5; i++ {
		analyses[string(rune('a'+i))] = analysis(map[string]importance.FeatureAnalysis{"noise": {Importance: 0.05}})
	}
	got := eng.Generate(analyses, map[string]edge.Definition{})
	require.Len(t, got, 1)
	assert.Equal(t, High, got[0].Priority)
}

func TestGenerate_NewFeatureSignalRequiresLowUsage(t *testing.T) {
	eng := New(DefaultConfig())
	analyses := map[string]importance.EdgeAnalysis{
		"e1": analysis(map[string]importance.FeatureAnalysis{"micro_reversion": {Correlation: 0.9, Importance: 0.9}}),
		"e2": analysis(map[string]importance.FeatureAnalysis{"micro_reversion": {Correlation: 0.8, Importance: 0.8}}),
	}
	definitions := map[string]edge.Definition{} // used in 0% of definitions

	got := eng.Generate(analyses, definitions)
	// importance 0.9/0.8 also yields one HIGH WEIGHT_ADJUST per edge; those
	// are generated first and the stable sort keeps them ahead.
	require.Len(t, got, 3)
	assert.Equal(t, NewFeatureSignal, got[2].Type)
	assert.Equal(t, High, got[2].Priority)
}

func TestGenerate_NewFeatureSignalSuppressedWhenWidelyUsed(t *testing.T) {
	eng := New(DefaultConfig())
	analyses := map[string]importance.EdgeAnalysis{
		"e1": analysis(map[string]importance.FeatureAnalysis{"imbalance": {Correlation: 0.9}}),
	}
	definitions := map[string]edge.Definition{
		"e1": {Pattern: edge.Pattern{Conditions: []edge.Condition{{Feature: "imbalance", Operator: ">", Value: 0}}}},
	}
	got := eng.Generate(analyses, definitions)
	assert.Empty(t, got)
}

func TestGenerate_SortedByPriority(t *testing.T) {
	eng := New(DefaultConfig())
	analyses := map[string]importance.EdgeAnalysis{
		"e1": analysis(map[string]importance.FeatureAnalysis{
			"used_feature": {Importance: 0.65, Correlation: 0.1}, // weight-adjust, MEDIUM (used)
		}),
	}
	definitions := map[string]edge.Definition{
		"e1": {Pattern: edge.Pattern{Conditions: []edge.Condition{{Feature: "used_feature", Operator: ">", Value: 0}}}},
	}
	got := eng.Generate(analyses, definitions)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, priorityRank[got[i-1].Priority], priorityRank[got[i].Priority])
	}
}

func TestHistory_BoundedToDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistoryDepth = 2
	eng := New(cfg)
	analyses := map[string]importance.EdgeAnalysis{
		"e1": analysis(map[string]importance.FeatureAnalysis{"noise": {Importance: 0.05}}),
		"e2": analysis(map[string]importance.FeatureAnalysis{"noise": {Importance: 0.05}}),
		"e3": analysis(map[string]importance.FeatureAnalysis{"noise": {Importance: 0.05}}),
	}
	eng.Generate(analyses, map[string]edge.Definition{})
	eng.Generate(analyses, map[string]edge.Definition{})
	assert.LessOrEqual(t, len(eng.History()), 2)
}
