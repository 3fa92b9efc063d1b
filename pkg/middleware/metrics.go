package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/isorender/pkg/location"
	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/store"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "isorender").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for navigation and preload
	// durations. Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "isorender",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type metrics struct {
	navigationsTotal   *prometheus.CounterVec
	navigationDuration *prometheus.HistogramVec
	navigationErrors   *prometheus.CounterVec
	commitsTotal       *prometheus.CounterVec
	preloadsPending    prometheus.Gauge
	preloadsTotal      *prometheus.CounterVec
	preloadDuration    prometheus.Histogram
	liveSessions       prometheus.Gauge
	liveResumes        prometheus.Counter
	liveErrors         *prometheus.CounterVec

	config MetricsConfig

	mu      sync.Mutex
	started map[store.API]time.Time
}

// The collectors are registered once per process: promauto panics on
// duplicate registration.
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	return &metrics{
		navigationsTotal: counter("navigations_total",
			"Navigation intents by history action and result", "action", "result"),

		navigationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_duration_seconds",
			Help:        "Time from navigation intent to commit, redirect or failure",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"result"}),

		navigationErrors: counter("navigation_errors_total",
			"Failed navigations by error type", "error_type"),

		commitsTotal: counter("commits_total",
			"Committed navigations by history operation", "operation", "instant"),

		preloadsPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "preloads_pending",
			Help:        "Preload sessions currently running",
			ConstLabels: config.ConstLabels,
		}),

		preloadsTotal: counter("preloads_total",
			"Settled preload sessions by status", "status"),

		preloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "preload_duration_seconds",
			Help:        "Preload session duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		liveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_sessions",
			Help:        "Open live WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		liveResumes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_resumes_total",
			Help:        "Live sessions resumed from a snapshot",
			ConstLabels: config.ConstLabels,
		}),

		liveErrors: counter("live_errors_total",
			"Live WebSocket errors by type", "type"),

		config:  config,
		started: make(map[store.API]time.Time),
	}
}

// Prometheus returns store middleware that records navigation and preload
// metrics. Put it before the preloader middleware so it sees Navigate
// intents as they arrive.
//
// The collectors are created by the first call in the process. Later calls
// share them and their options cannot change the namespace, subsystem or
// registry; a mismatch is logged as a warning.
//
// Metrics collected:
//   - isorender_navigations_total: intents by action (PUSH, REPLACE, POP) and result
//   - isorender_navigation_duration_seconds: intent duration by result
//   - isorender_navigation_errors_total: failures by error type
//   - isorender_commits_total: commits by operation (push, replace)
//   - isorender_preloads_pending: running preload sessions
//   - isorender_preloads_total: settled sessions by status
//   - isorender_preload_duration_seconds: session duration
//   - isorender_live_sessions, isorender_live_resumes_total,
//     isorender_live_errors_total: recorded by the live transport
//
// Example:
//
//	st := store.New(store.State{}, store.WithMiddleware(
//	    middleware.Prometheus(middleware.WithNamespace("myapp")),
//	    preloader.Middleware(),
//	))
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) store.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	} else if !globalMetrics.config.sameCollectors(config) {
		slog.Default().Warn("prometheus middleware already initialized, ignoring new options",
			"namespace", globalMetrics.config.Namespace,
			"ignored_namespace", config.Namespace,
			"subsystem", globalMetrics.config.Subsystem,
			"ignored_subsystem", config.Subsystem)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(api store.API) func(next store.DispatchFunc) store.DispatchFunc {
		return func(next store.DispatchFunc) store.DispatchFunc {
			return func(ctx context.Context, a store.Action) error {
				switch a := a.(type) {
				case store.Navigate:
					return m.navigate(ctx, a, next)
				case store.PreloadStarted:
					m.preloadStarted(api)
				case store.PreloadFinished:
					m.preloadSettled(api, "finished")
				case store.PreloadFailed:
					m.preloadSettled(api, "failed")
				case store.Commit:
					op := "push"
					if a.Replace {
						op = "replace"
					}
					instant := "false"
					if a.Instant {
						instant = "true"
					}
					m.commitsTotal.WithLabelValues(op, instant).Inc()
				}
				return next(ctx, a)
			}
		}
	}
}

// sameCollectors reports whether o would register the same collectors.
// Labels and buckets are not compared.
func (c MetricsConfig) sameCollectors(o MetricsConfig) bool {
	return c.Namespace == o.Namespace && c.Subsystem == o.Subsystem && c.Registry == o.Registry
}

func (m *metrics) navigate(ctx context.Context, a store.Navigate, next store.DispatchFunc) error {
	start := time.Now()
	err := next(ctx, a)

	result := "ok"
	if err != nil {
		if _, ok := preload.AsRedirect(err); ok {
			result = "redirect"
		} else if errors.Is(err, preload.ErrSuperseded) {
			result = "superseded"
		} else {
			result = "error"
			m.navigationErrors.WithLabelValues(categorizeError(err)).Inc()
		}
	}
	m.navigationDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	action := a.Location.Action
	if action == "" {
		action = location.Push
	}
	m.navigationsTotal.WithLabelValues(string(action), result).Inc()
	return err
}

// Sessions are tracked per store: each store has at most one running
// preload session.
func (m *metrics) preloadStarted(api store.API) {
	m.mu.Lock()
	m.started[api] = time.Now()
	m.mu.Unlock()
	m.preloadsPending.Inc()
}

func (m *metrics) preloadSettled(api store.API, status string) {
	m.mu.Lock()
	start, ok := m.started[api]
	delete(m.started, api)
	m.mu.Unlock()
	if !ok {
		return
	}
	m.preloadsPending.Dec()
	m.preloadsTotal.WithLabelValues(status).Inc()
	m.preloadDuration.Observe(time.Since(start).Seconds())
}

// categorizeError returns a low-cardinality label for err.
func categorizeError(err error) string {
	var (
		panicErr *preload.PanicError
		coder    interface{ StatusCode() int }
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &panicErr):
		return "panic"
	case errors.Is(err, preload.ErrLoaderContract), errors.Is(err, preload.ErrHandlerContract):
		return "contract"
	case errors.As(err, &coder):
		switch coder.StatusCode() {
		case http.StatusNotFound:
			return "not_found"
		case http.StatusUnauthorized:
			return "unauthorized"
		case http.StatusForbidden:
			return "forbidden"
		}
	}
	return "internal"
}

// RecordLiveSessionOpen records a new live session.
func RecordLiveSessionOpen() {
	if m := current(); m != nil {
		m.liveSessions.Inc()
	}
}

// RecordLiveSessionClose records a closed live session.
func RecordLiveSessionClose() {
	if m := current(); m != nil {
		m.liveSessions.Dec()
	}
}

// RecordLiveResume records a live session resumed from a snapshot.
func RecordLiveResume() {
	if m := current(); m != nil {
		m.liveResumes.Inc()
	}
}

// RecordLiveError records a live transport error.
func RecordLiveError(errorType string) {
	if m := current(); m != nil {
		m.liveErrors.WithLabelValues(errorType).Inc()
	}
}

func current() *metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	return globalMetrics
}
