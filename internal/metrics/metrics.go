// Package metrics exposes Prometheus instrumentation for the reading engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "readtrack"

// Metrics holds the engine's collectors and the registry they belong to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted    prometheus.Counter
	sessionsCompleted  prometheus.Counter
	sessionsAbandoned  *prometheus.CounterVec
	progressUpdates    prometheus.Counter
	goalCompletions    *prometheus.CounterVec
	goalUpdateFailures prometheus.Counter
	pointsAwarded      prometheus.Counter
	activityErrors     *prometheus.CounterVec
	completionDuration prometheus.Histogram
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of reading sessions started",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of reading sessions completed",
		}),
		sessionsAbandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_abandoned_total",
			Help:      "Total number of reading sessions abandoned",
		}, []string{"reason"}),
		progressUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_updates_total",
			Help:      "Total number of progress updates applied",
		}),
		goalCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goal_completions_total",
			Help:      "Total number of goal periods completed",
		}, []string{"type"}),
		goalUpdateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goal_update_failures_total",
			Help:      "Total number of goal writes that failed during session completion",
		}),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Total points awarded for completed sessions",
		}),
		activityErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_cache_errors_total",
			Help:      "Total number of failed daily activity cache operations",
		}, []string{"operation"}),
		completionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_completion_duration_seconds",
			Help:      "Time spent finalizing a session, including stats, goals and points",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsStarted,
		m.sessionsCompleted,
		m.sessionsAbandoned,
		m.progressUpdates,
		m.goalCompletions,
		m.goalUpdateFailures,
		m.pointsAwarded,
		m.activityErrors,
		m.completionDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *Metrics) SessionCompleted(took time.Duration) {
	if m == nil {
		return
	}
	m.sessionsCompleted.Inc()
	m.completionDuration.Observe(took.Seconds())
}

// SessionsAbandoned counts n sessions abandoned for reason.
func (m *Metrics) SessionsAbandoned(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsAbandoned.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) ProgressUpdated() {
	if m == nil {
		return
	}
	m.progressUpdates.Inc()
}

func (m *Metrics) GoalCompleted(goalType string) {
	if m == nil {
		return
	}
	m.goalCompletions.WithLabelValues(goalType).Inc()
}

func (m *Metrics) GoalUpdateFailed() {
	if m == nil {
		return
	}
	m.goalUpdateFailures.Inc()
}

func (m *Metrics) PointsAwarded(points int64) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.Add(float64(points))
}

// ActivityCacheError counts a failed cache operation ("record" or "read").
func (m *Metrics) ActivityCacheError(operation string) {
	if m == nil {
		return
	}
	m.activityErrors.WithLabelValues(operation).Inc()
}
