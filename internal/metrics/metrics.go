package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec

	// Model turn metrics
	ModelTurnsTotal   *prometheus.CounterVec
	ModelTurnDuration *prometheus.HistogramVec
	ModelRetriesTotal prometheus.Counter

	// Tool metrics
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	// Budget metrics
	BudgetExceededTotal *prometheus.CounterVec

	// Stream metrics
	EventsEmittedTotal *prometheus.CounterVec

	// Tool cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
}

// New creates and registers all metrics on a dedicated registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "research_sessions_active",
				Help: "Number of currently active research sessions",
			},
		),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_sessions_total",
				Help: "Total research sessions by terminal state",
			},
			[]string{"state"},
		),

		ModelTurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_turns_total",
				Help: "Total model turns by provider and status",
			},
			[]string{"provider", "status"},
		),
		ModelTurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "model_turn_duration_seconds",
				Help:    "Duration of model turns in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		ModelRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "model_turn_retries_total",
				Help: "Total model turn retries after transient errors",
			},
		),

		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Total tool calls by tool name and status",
			},
			[]string{"tool", "status"},
		),
		ToolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),

		BudgetExceededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_exceeded_total",
				Help: "Sessions that hit a budget ceiling, by budget kind",
			},
			[]string{"kind"},
		),

		EventsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_events_emitted_total",
				Help: "Stream events emitted to callers by event kind",
			},
			[]string{"kind"},
		),

		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tool_cache_hits_total",
				Help: "Tool result cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tool_cache_misses_total",
				Help: "Tool result cache misses",
			},
		),
	}

	registry.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.ModelTurnsTotal,
		m.ModelTurnDuration,
		m.ModelRetriesTotal,
		m.ToolCallsTotal,
		m.ToolCallDuration,
		m.BudgetExceededTotal,
		m.EventsEmittedTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveToolCall records one dispatched tool call
func (m *Metrics) ObserveToolCall(tool, status string, d time.Duration) {
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveModelTurn records one completed model turn
func (m *Metrics) ObserveModelTurn(provider, status string, d time.Duration) {
	m.ModelTurnsTotal.WithLabelValues(provider, status).Inc()
	m.ModelTurnDuration.WithLabelValues(provider).Observe(d.Seconds())
}

var (
	defaultOnce sync.Once
	defaultM    *Metrics
)

// Default returns the process-wide metrics instance
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultM = New()
	})
	return defaultM
}
