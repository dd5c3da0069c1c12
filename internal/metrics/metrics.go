// Package metrics exposes tracker and HTTP activity as Prometheus series.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/escrow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple services never collide
// on the global one.
type Metrics struct {
	registry *prometheus.Registry

	opened        prometheus.Counter
	taskUpdates   *prometheus.CounterVec
	stageAdvances *prometheus.CounterVec
	overrides     *prometheus.CounterVec
	conflicts     prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers every series on a fresh registry, including Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrow_transactions_opened_total",
			Help: "Total number of transactions opened from accepted offers",
		}),
		taskUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_task_updates_total",
				Help: "Total number of task completion toggles",
			},
			[]string{"completed"},
		),
		stageAdvances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_stage_advances_total",
				Help: "Total number of automatic stage advances",
			},
			[]string{"from", "to"},
		),
		overrides: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_stage_overrides_total",
				Help: "Total number of manual status overrides",
			},
			[]string{"to"},
		),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrow_advance_conflicts_total",
			Help: "Total number of stage advances that lost a compare-and-set race",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "escrow_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.opened,
		m.taskUpdates,
		m.stageAdvances,
		m.overrides,
		m.conflicts,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry the series live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks records tracker events.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransactionOpened: func(context.Context, *domain.StageEvent) {
			m.opened.Inc()
		},
		OnTaskUpdated: func(_ context.Context, e *domain.TaskEvent) {
			m.taskUpdates.WithLabelValues(strconv.FormatBool(e.Completed)).Inc()
		},
		OnStageAdvanced: func(_ context.Context, e *domain.StageEvent) {
			m.stageAdvances.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
		OnStageOverridden: func(_ context.Context, e *domain.StageEvent) {
			m.overrides.WithLabelValues(string(e.To)).Inc()
		},
		OnAdvanceConflict: func(context.Context, *domain.StageEvent) {
			m.conflicts.Inc()
		},
	}
}

// ObserveHTTP records a served request. route is the matched pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
