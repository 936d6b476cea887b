// Package confidence implements EdgeConfidenceUpdater (C8): EMA updates to
// an edge's confidence score from realized outcomes, with drift alerts
// raised against a baseline. Grounded on the threshold/indicator pattern in
// internal/domain/regime/detector.go, applied to a single scalar EMA
// instead of a multi-indicator vote.
package confidence

import "github.com/edgecore/quantedge/internal/edge"

// AlertType names a drift condition.
type AlertType string

const (
	ConfidenceDrop    AlertType = "CONFIDENCE_DROP"
	ConsecutiveLosses AlertType = "CONSECUTIVE_LOSSES"
	WinRateDrop       AlertType = "WINRATE_DROP"
)

// Alert is one drift signal raised for an edge.
type Alert struct {
	EdgeID string
	Type   AlertType
	Detail string
}

// Config holds the thresholds governing the EMA update and drift checks.
type Config struct {
	MinSampleSize              int
	Alpha                      float64
	ConfidenceDropThreshold    float64
	ConsecutiveLossesThreshold int
	WinRateDropThreshold       float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinSampleSize:              30,
		Alpha:                      0.05,
		ConfidenceDropThreshold:    0.15,
		ConsecutiveLossesThreshold: 10,
		WinRateDropThreshold:       0.10,
	}
}

// Updater applies the EMA confidence update and drift detection for one or
// more edges, sharing the same thresholds.
type Updater struct {
	cfg Config
}

func New(cfg Config) *Updater { return &Updater{cfg: cfg} }

// Update folds one outcome's PnL into e's stats (delegated to Edge) and,
// once trades reach MinSampleSize, updates the confidence EMA. Drift
// alerts only fire if e.Confidence.Baseline was previously set. Returns
// nil if no alerts fired.
func (u *Updater) Update(e *edge.Edge, pnl float64) []Alert {
	winIndicator := 0.0
	if pnl > 0 {
		winIndicator = 1
	}
	e.UpdateStats(edge.Trade{Return: pnl})

	if e.Stats.Trades >= u.cfg.MinSampleSize {
		a := u.cfg.Alpha
		e.Confidence.Score = (1-a)*e.Confidence.Score + a*winIndicator
	}

	baseline := e.Confidence.Baseline
	if baseline == nil {
		return nil
	}

	var alerts []Alert
	if baseline.Confidence-e.Confidence.Score > u.cfg.ConfidenceDropThreshold {
		alerts = append(alerts, Alert{EdgeID: e.ID, Type: ConfidenceDrop})
	}
	if e.Stats.ConsecutiveLosses >= u.cfg.ConsecutiveLossesThreshold {
		alerts = append(alerts, Alert{EdgeID: e.ID, Type: ConsecutiveLosses})
	}
	if e.Stats.Trades >= u.cfg.MinSampleSize {
		winRate := float64(e.Stats.Wins) / float64(e.Stats.Trades)
		if baseline.WinRate-winRate > u.cfg.WinRateDropThreshold {
			alerts = append(alerts, Alert{EdgeID: e.ID, Type: WinRateDrop})
		}
	}

	if len(alerts) == 0 {
		return nil
	}
	return alerts
}
