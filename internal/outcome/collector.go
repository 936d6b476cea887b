// Package outcome implements TradeOutcomeCollector (C7): an append-only
// JSONL log of entry/exit pairs with compacted feature vectors, buffered
// and size/time-triggered flush, and byte-threshold segment rotation.
// Grounded on the buffered-writer-with-metrics shape in
// internal/data/cold/parquet_store.go, and internal/atomicio for the
// rotation boundary.
package outcome

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EntrySnapshot is what recordEntry buffers until the matching exit.
type EntrySnapshot struct {
	Features  map[string]float64
	Regime    string
	EdgeID    string
	Direction string
	Price     float64
	Timestamp time.Time
}

// ExitInfo is what recordExit supplies to complete a trade.
type ExitInfo struct {
	Price      float64
	Timestamp  time.Time
	PnL        float64
	ExitReason string
}

// Outcome is one completed trade, the exact JSONL record shape (spec §3).
type Outcome struct {
	TradeID         string             `json:"tradeId"`
	EdgeID          string             `json:"edgeId"`
	Direction       string             `json:"direction"`
	EntryPrice      float64            `json:"entryPrice"`
	EntryTimestamp  int64              `json:"entryTimestamp"`
	EntryFeatures   map[string]float64 `json:"entryFeatures"`
	EntryRegime     string             `json:"entryRegime"`
	ExitPrice       float64            `json:"exitPrice"`
	ExitTimestamp   int64              `json:"exitTimestamp"`
	PnL             float64            `json:"pnl"`
	ExitReason      string             `json:"exitReason"`
	HoldingPeriodMs int64              `json:"holdingPeriodMs"`
}

// Collector buffers trade outcomes in memory and flushes them to rotating
// JSONL segments under Dir.
type Collector struct {
	mu sync.Mutex

	dir             string
	flushBufferSize int
	flushInterval   time.Duration
	rotateBytes     int64
	featureDecimals int

	pending map[string]EntrySnapshot
	buffer  []Outcome

	file         *os.File
	fileBytes    int64
	stopTicker   chan struct{}
	tickerClosed bool
}

// New constructs a Collector. featureDecimals <= 0 defaults to 6.
func New(dir string, flushBufferSize int, flushInterval time.Duration, rotateBytes int64, featureDecimals int) *Collector {
	if featureDecimals <= 0 {
		featureDecimals = 6
	}
	return &Collector{
		dir:             dir,
		flushBufferSize: flushBufferSize,
		flushInterval:   flushInterval,
		rotateBytes:     rotateBytes,
		featureDecimals: featureDecimals,
		pending:         make(map[string]EntrySnapshot),
		stopTicker:      make(chan struct{}),
	}
}

// Start launches the periodic flush timer. Callers must call Close to stop
// it and flush any remainder.
func (c *Collector) Start() {
	go func() {
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Flush(); err != nil {
					log.Warn().Err(err).Msg("outcome collector periodic flush failed")
				}
			case <-c.stopTicker:
				return
			}
		}
	}()
}

// RecordEntry buffers an entry snapshot under tradeId.
func (c *Collector) RecordEntry(tradeID string, snap EntrySnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[tradeID] = snap
}

// RecordExit completes a trade and emits the outcome. A missing entry
// returns nil and logs a warning rather than erroring.
func (c *Collector) RecordExit(tradeID string, exit ExitInfo) *Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.pending[tradeID]
	if !ok {
		log.Warn().Str("trade_id", tradeID).Msg("recordExit: no matching entry")
		return nil
	}
	delete(c.pending, tradeID)

	o := Outcome{
		TradeID:         tradeID,
		EdgeID:          entry.EdgeID,
		Direction:       entry.Direction,
		EntryPrice:      entry.Price,
		EntryTimestamp:  entry.Timestamp.UnixMilli(),
		EntryFeatures:   compact(entry.Features, c.featureDecimals),
		EntryRegime:     entry.Regime,
		ExitPrice:       exit.Price,
		ExitTimestamp:   exit.Timestamp.UnixMilli(),
		PnL:             exit.PnL,
		ExitReason:      exit.ExitReason,
		HoldingPeriodMs: exit.Timestamp.Sub(entry.Timestamp).Milliseconds(),
	}
	c.buffer = append(c.buffer, o)

	if len(c.buffer) >= c.flushBufferSize {
		if err := c.flushLocked(); err != nil {
			log.Warn().Err(err).Msg("outcome collector threshold flush failed")
		}
	}

	return &o
}

func compact(features map[string]float64, decimals int) map[string]float64 {
	out := make(map[string]float64, len(features))
	mult := math.Pow(10, float64(decimals))
	for k, v := range features {
		out[k] = math.Round(v*mult) / mult
	}
	return out
}

// Flush writes any buffered outcomes to disk.
func (c *Collector) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Collector) flushLocked() error {
	if len(c.buffer) == 0 {
		return nil
	}
	if c.file == nil {
		if err := c.rotateLocked(); err != nil {
			return err
		}
	}

	var written int64
	for _, o := range c.buffer {
		line, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("outcome: marshal: %w", err)
		}
		line = append(line, '\n')
		n, err := c.file.Write(line)
		if err != nil {
			return fmt.Errorf("outcome: write: %w", err)
		}
		written += int64(n)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("outcome: sync: %w", err)
	}
	c.fileBytes += written
	c.buffer = c.buffer[:0]

	if c.fileBytes >= c.rotateBytes {
		return c.rotateLocked()
	}
	return nil
}

// rotateLocked closes the current segment (if any) and opens a new one,
// the atomic boundary the concurrency model requires: the prior segment
// is fully closed before the next is opened.
func (c *Collector) rotateLocked() error {
	if c.file != nil {
		if err := c.file.Close(); err != nil {
			return fmt.Errorf("outcome: close segment: %w", err)
		}
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("outcome: mkdir: %w", err)
	}
	name := fmt.Sprintf("outcomes-%s.jsonl", time.Now().UTC().Format("20060102T150405.000000000Z"))
	f, err := os.OpenFile(filepath.Join(c.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("outcome: open segment: %w", err)
	}
	c.file, c.fileBytes = f, 0
	return nil
}

// Close stops the periodic flush timer and flushes any remainder.
func (c *Collector) Close() error {
	if !c.tickerClosed {
		close(c.stopTicker)
		c.tickerClosed = true
	}
	if err := c.Flush(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}
