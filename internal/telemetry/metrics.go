package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the Prometheus metrics emitted by the core pipeline.
// Construction registers every metric; callers own a single Registry per
// process the way a single long-lived MetricsRegistry does.
type Registry struct {
	DiscoveryPatternsScanned prometheus.Counter
	DiscoveryEdgesRegistered prometheus.Counter
	DiscoveryRunDuration     prometheus.Histogram

	OutcomeRecordsFlushed prometheus.Counter
	OutcomeFlushDuration  prometheus.Histogram

	RevalidationRuns      *prometheus.CounterVec
	RevalidationDuration  prometheus.Histogram
	RevalidationSkipped   *prometheus.CounterVec
	RevalidationConcurrent prometheus.Gauge

	GateDecisions *prometheus.CounterVec

	ConfidenceDriftAlerts *prometheus.CounterVec
}

// NewRegistry builds and registers all quantedge metrics against reg.
// Pass prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry across test runs.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		DiscoveryPatternsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantedge_discovery_patterns_scanned_total",
			Help: "Total number of candidate patterns examined by the discovery pipeline.",
		}),
		DiscoveryEdgesRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantedge_discovery_edges_registered_total",
			Help: "Total number of candidate edges registered by the discovery pipeline.",
		}),
		DiscoveryRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantedge_discovery_run_duration_seconds",
			Help:    "Duration of a full discovery pipeline run.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		OutcomeRecordsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantedge_outcome_records_flushed_total",
			Help: "Total number of trade outcomes flushed to disk.",
		}),
		OutcomeFlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantedge_outcome_flush_duration_seconds",
			Help:    "Duration of an outcome buffer flush.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		RevalidationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantedge_revalidation_runs_total",
			Help: "Total revalidation attempts by resulting status.",
		}, []string{"status"}),
		RevalidationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantedge_revalidation_duration_seconds",
			Help:    "Duration of a single edge revalidation call.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30},
		}),
		RevalidationSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantedge_revalidation_skipped_total",
			Help: "Total revalidation attempts skipped, by reason.",
		}, []string{"reason"}),
		RevalidationConcurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantedge_revalidation_concurrent",
			Help: "Number of revalidations currently in flight.",
		}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantedge_gate_decisions_total",
			Help: "Total evaluation gate outcomes by status and reason.",
		}, []string{"status", "reason"}),
		ConfidenceDriftAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantedge_confidence_drift_alerts_total",
			Help: "Total confidence drift alerts raised, by alert type.",
		}, []string{"alert_type"}),
	}

	reg.MustRegister(
		r.DiscoveryPatternsScanned,
		r.DiscoveryEdgesRegistered,
		r.DiscoveryRunDuration,
		r.OutcomeRecordsFlushed,
		r.OutcomeFlushDuration,
		r.RevalidationRuns,
		r.RevalidationDuration,
		r.RevalidationSkipped,
		r.RevalidationConcurrent,
		r.GateDecisions,
		r.ConfidenceDriftAlerts,
	)

	return r
}

// StepTimer times an operation and records it into a Prometheus histogram
// on Stop, mirroring a StartStepTimer/Stop pairing.
type StepTimer struct {
	hist  prometheus.Histogram
	start time.Time
}

// StartTimer begins timing against the given histogram.
func StartTimer(hist prometheus.Histogram) *StepTimer {
	return &StepTimer{hist: hist, start: time.Now()}
}

// Stop records the elapsed duration.
func (t *StepTimer) Stop() time.Duration {
	d := time.Since(t.start)
	t.hist.Observe(d.Seconds())
	return d
}
