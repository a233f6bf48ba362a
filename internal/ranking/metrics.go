package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricSessionsStarted   = "ranking_sessions_started_total"
	MetricSessionsCompleted = "ranking_sessions_completed_total"
	MetricSessionsFailed    = "ranking_sessions_failed_total"
	MetricPairwiseUpdates   = "ranking_pairwise_updates_total"
	MetricManualResequences = "ranking_manual_resequences_total"
	MetricKanbanMoves       = "ranking_kanban_moves_total"
	MetricSubmitDuration    = "ranking_submit_duration_seconds"
)

// Metrics contains Prometheus metrics for ranking operations.
// All operations are thread-safe.
type Metrics struct {
	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	sessionsFailed    *prometheus.CounterVec
	pairwiseUpdates   prometheus.Counter
	manualResequences prometheus.Counter
	kanbanMoves       prometheus.Counter
	submitDuration    *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSessionsStarted,
				Help: "Total number of ranking sessions started, by mode",
			},
			[]string{"mode"},
		),
		sessionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSessionsCompleted,
				Help: "Total number of ranking sessions submitted successfully, by mode",
			},
			[]string{"mode"},
		),
		sessionsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSessionsFailed,
				Help: "Total number of ranking sessions that entered the failed state, by mode",
			},
			[]string{"mode"},
		),
		pairwiseUpdates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricPairwiseUpdates,
				Help: "Total number of pairwise Elo updates applied",
			},
		),
		manualResequences: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricManualResequences,
				Help: "Total number of manual rank resequences persisted",
			},
		),
		kanbanMoves: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricKanbanMoves,
				Help: "Total number of kanban card moves persisted",
			},
		),
		submitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSubmitDuration,
				Help:    "Ranking session submit duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"mode"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		m.sessionsStarted,
		m.sessionsCompleted,
		m.sessionsFailed,
		m.pairwiseUpdates,
		m.manualResequences,
		m.kanbanMoves,
		m.submitDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordSessionStarted increments the started counter for a mode.
func (m *Metrics) RecordSessionStarted(mode Mode) {
	m.sessionsStarted.WithLabelValues(string(mode)).Inc()
}

// RecordSessionCompleted increments the completed counter for a mode.
func (m *Metrics) RecordSessionCompleted(mode Mode) {
	m.sessionsCompleted.WithLabelValues(string(mode)).Inc()
}

// RecordSessionFailed increments the failed counter for a mode.
func (m *Metrics) RecordSessionFailed(mode Mode) {
	m.sessionsFailed.WithLabelValues(string(mode)).Inc()
}

// RecordPairwiseUpdates adds n applied pairwise updates.
func (m *Metrics) RecordPairwiseUpdates(n int) {
	m.pairwiseUpdates.Add(float64(n))
}

// RecordManualResequence increments the resequence counter.
func (m *Metrics) RecordManualResequence() {
	m.manualResequences.Inc()
}

// RecordKanbanMove increments the kanban move counter.
func (m *Metrics) RecordKanbanMove() {
	m.kanbanMoves.Inc()
}

// ObserveSubmitDuration records a session submit duration.
func (m *Metrics) ObserveSubmitDuration(mode Mode, seconds float64) {
	m.submitDuration.WithLabelValues(string(mode)).Observe(seconds)
}
