package revalidation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecore/quantedge/internal/confidence"
	"github.com/edgecore/quantedge/internal/edge"
	"github.com/edgecore/quantedge/internal/validation"
)

type fakeDataset struct{ n int }

func (f fakeDataset) Len() int { return f.n }

type fakePipeline struct {
	newStatus edge.Status
	score     float64
	err       error
}

func (f fakePipeline) Revalidate(e *edge.Edge, dataset validation.Dataset) (validation.Result, error) {
	if f.err != nil {
		return validation.Result{}, f.err
	}
	return validation.Result{NewStatus: f.newStatus, Score: f.score}, nil
}

func testConfig() Config {
	c := DefaultConfig()
	c.MinDataRows = 100
	return c
}

func TestRevalidateAll_InsufficientData(t *testing.T) {
	r := New(testConfig(), fakePipeline{newStatus: edge.StatusValidated})
	e := edge.New("e1", "t", 1000, edge.Advantage{}, nil, nil)
	got := r.RevalidateAll(fakeDataset{n: 10}, []*edge.Edge{e})
	assert.Nil(t, got)
}

func TestRevalidateAll_Success(t *testing.T) {
	r := New(testConfig(), fakePipeline{newStatus: edge.StatusValidated, score: 0.8})
	e := edge.New("e1", "t", 1000, edge.Advantage{}, nil, nil)
	e.Status = edge.StatusCandidate

	got := r.RevalidateAll(fakeDataset{n: 500}, []*edge.Edge{e})
	require.Len(t, got, 1)
	assert.Equal(t, "OK", got[0].Status)
	assert.True(t, got[0].StatusChanged)
	assert.Equal(t, edge.StatusValidated, e.Status)
}

func TestRevalidateAll_CooldownOnSecondCall(t *testing.T) {
	r := New(testConfig(), fakePipeline{newStatus: edge.StatusValidated})
	e := edge.New("e1", "t", 1000, edge.Advantage{}, nil, nil)

	first := r.RevalidateAll(fakeDataset{n: 500}, []*edge.Edge{e})
	require.Len(t, first, 1)
	assert.Equal(t, "OK", first[0].Status)

	second := r.RevalidateAll(fakeDataset{n: 500}, []*edge.Edge{e})
	require.Len(t, second, 1)
	assert.Equal(t, "SKIPPED", second[0].Status)
	assert.Equal(t, SkipCooldown, second[0].SkipReason)
}

func TestClearCooldown_AllowsImmediateRetry(t *testing.T) {
	r := New(testConfig(), fakePipeline{newStatus: edge.StatusValidated})
	e := edge.New("e1", "t", 1000, edge.Advantage{}, nil, nil)

	r.RevalidateAll(fakeDataset{n: 500}, []*edge.Edge{e})
	r.ClearCooldown("e1")
	second := r.RevalidateAll(fakeDataset{n: 500}, []*edge.Edge{e})
	require.Len(t, second, 1)
	assert.Equal(t, "OK", second[0].Status)
}

func TestRevalidateAll_ErrorRecordedNotCrashed(t *testing.T) {
	r := New(testConfig(), fakePipeline{err: errors.New("boom")})
	e := edge.New("e1", "t", 1000, edge.Advantage{}, nil, nil)

	got := r.RevalidateAll(fakeDataset{n: 500}, []*edge.Edge{e})
	require.Len(t, got, 1)
	assert.Equal(t, "ERROR", got[0].Status)
	assert.Contains(t, got[0].Error, "boom")
}

func TestProcessAlerts_DedupesByEdge(t *testing.T) {
	r := New(testConfig(), fakePipeline{newStatus: edge.StatusValidated})
	e := edge.New("e1", "t", 1000, edge.Advantage{}, nil, nil)
	edges := map[string]*edge.Edge{"e1": e}
	alerts := []confidence.Alert{
		{EdgeID: "e1", Type: confidence.ConfidenceDrop},
		{EdgeID: "e1", Type: confidence.ConsecutiveLosses},
	}
	got := r.ProcessAlerts(alerts, fakeDataset{n: 500}, edges)
	assert.Len(t, got, 1)
}

func TestMaxConcurrent_Respected(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 2
	r := New(cfg, fakePipeline{newStatus: edge.StatusValidated})

	var edges []*edge.Edge
	for i := 0; i < 6; i++ {
		edges = append(edges, edge.New(string(rune('a'+i)), "t", 1000, edge.Advantage{}, nil, nil))
	}
	got := r.RevalidateAll(fakeDataset{n: 500}, edges)
	require.Len(t, got, 6)
	for _, h := range got {
		assert.Equal(t, "OK", h.Status)
	}
}
