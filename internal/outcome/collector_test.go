package outcome

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExit_MissingEntryReturnsNil(t *testing.T) {
	c := New(t.TempDir(), 100, time.Hour, 1<<20, 6)
	got := c.RecordExit("nope", ExitInfo{Price: 1, Timestamp: time.Now()})
	assert.Nil(t, got)
}

func TestRecordEntryExit_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, 100, time.Hour, 1<<20, 4)
	entryTs := time.Now()
	c.RecordEntry("t1", EntrySnapshot{
		Features:  map[string]float64{"rsi": 71.23456},
		Regime:    "trend",
		EdgeID:    "e1",
		Direction: "LONG",
		Price:     100,
		Timestamp: entryTs,
	})

	got := c.RecordExit("t1", ExitInfo{Price: 101, Timestamp: entryTs.Add(5 * time.Second), PnL: 1, ExitReason: "target"})
	require.NotNil(t, got)
	assert.Equal(t, "e1", got.EdgeID)
	assert.Equal(t, 71.2346, got.EntryFeatures["rsi"])
	assert.Equal(t, int64(5000), got.HoldingPeriodMs)

	require.NoError(t, c.Flush())
	read, err := Read(dir, Filter{})
	require.NoError(t, err)
	require.Len(t, read, 1)
	assert.Equal(t, "t1", read[0].TradeID)
	require.NoError(t, c.Close())
}

func TestFlush_ThresholdTrigger(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, 3, time.Hour, 1<<20, 6)
	base := time.Now()
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		c.RecordEntry(id, EntrySnapshot{Timestamp: base, EdgeID: "e1"})
		c.RecordExit(id, ExitInfo{Timestamp: base.Add(time.Second), PnL: 1})
	}
	read, err := Read(dir, Filter{})
	require.NoError(t, err)
	assert.Len(t, read, 3)
}

func TestRead_FiltersByEdgeIDAndLimit(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, 10, time.Hour, 1<<20, 6)
	base := time.Now()
	for i, edgeID := range []string{"e1", "e2", "e1"} {
		id := string(rune('a' + i))
		c.RecordEntry(id, EntrySnapshot{Timestamp: base, EdgeID: edgeID})
		c.RecordExit(id, ExitInfo{Timestamp: base.Add(time.Second), PnL: 1})
	}
	require.NoError(t, c.Flush())

	read, err := Read(dir, Filter{EdgeID: "e1"})
	require.NoError(t, err)
	assert.Len(t, read, 2)

	limited, err := Read(dir, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
