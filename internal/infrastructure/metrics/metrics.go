// Package metrics defines the Prometheus metrics for IMPERIUM. All metrics are
// registered against a caller-supplied registry so tests can use their own.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imperium"

// Metrics holds every custom collector.
type Metrics struct {
	gatherer prometheus.Gatherer

	// ── Progression ──────────────────────────────────────────────────────────

	// XPAwardedTotal sums XP granted. Label reason: trial, task, council.
	XPAwardedTotal *prometheus.CounterVec

	// RankChangesTotal counts promotions. Label rank: the new rank.
	RankChangesTotal *prometheus.CounterVec

	// StreakTransitionsTotal counts streak moves. Label change: extended, reset.
	StreakTransitionsTotal *prometheus.CounterVec

	// ── Activities ───────────────────────────────────────────────────────────

	// TrialAttemptsTotal counts graded submissions. Label result: passed, failed.
	TrialAttemptsTotal *prometheus.CounterVec

	// TasksCompletedTotal counts tasks moved to done. Label source.
	TasksCompletedTotal *prometheus.CounterVec

	// CouncilSummonsTotal counts council requests. Label result: summoned, gated.
	CouncilSummonsTotal *prometheus.CounterVec

	// ── Event bus ────────────────────────────────────────────────────────────

	EventsPublishedTotal    *prometheus.CounterVec
	EventHandlerErrorsTotal *prometheus.CounterVec
	EventHandlerDuration    *prometheus.HistogramVec
}

// New registers all metrics with reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		XPAwardedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_awarded_total",
			Help:      "Total XP awarded, by reason.",
		}, []string{"reason"}),

		RankChangesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_changes_total",
			Help:      "Total rank promotions, by new rank.",
		}, []string{"rank"}),

		StreakTransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streak_transitions_total",
			Help:      "Total streak extensions and restarts.",
		}, []string{"change"}),

		TrialAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trial_attempts_total",
			Help:      "Total graded trial submissions, by result.",
		}, []string{"result"}),

		TasksCompletedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total tasks completed, by source.",
		}, []string{"source"}),

		CouncilSummonsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "council_summons_total",
			Help:      "Total council summon requests, by result.",
		}, []string{"result"}),

		EventsPublishedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total domain events published, by type.",
		}, []string{"event_type"}),

		EventHandlerErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_errors_total",
			Help:      "Total event handler failures, by event type.",
		}, []string{"event_type"}),

		EventHandlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Duration of synchronous event handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
}

// NewDefault registers the metrics plus the Go and process collectors on a
// fresh registry.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// ObservePublish implements the event bus observer.
func (m *Metrics) ObservePublish(eventType string) {
	m.EventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// ObserveHandler implements the event bus observer.
func (m *Metrics) ObserveHandler(eventType string, d time.Duration, err error) {
	m.EventHandlerDuration.WithLabelValues(eventType).Observe(d.Seconds())
	if err != nil {
		m.EventHandlerErrorsTotal.WithLabelValues(eventType).Inc()
	}
}
