package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Outcome labels shared by several metrics.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Window build outcomes.
const (
	WindowReused  = "reused"
	WindowBuilt   = "built"
	WindowRefused = "refused"
	WindowFailed  = "failed"
	WindowSilent  = "silent"
)

// Deep-link outcomes.
const (
	DeepLinkDelivered    = "delivered"
	DeepLinkDeduplicated = "deduplicated"
	DeepLinkFailed       = "failed"
)

// MetricsManager manages Prometheus metrics. A nil *MetricsManager is valid
// and records nothing.
type MetricsManager struct {
	logger   *zap.SugaredLogger
	registry *prometheus.Registry

	uptime            prometheus.Gauge
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	startupDuration   prometheus.Gauge
	startupSteps      *prometheus.HistogramVec
	windowBuilds      *prometheus.CounterVec
	readinessTimeouts prometheus.Counter
	deepLinks         *prometheus.CounterVec
	engineRestarts    *prometheus.CounterVec
	notices           *prometheus.CounterVec
}

// NewMetricsManager creates a new metrics manager
func NewMetricsManager(logger *zap.SugaredLogger) *MetricsManager {
	mm := &MetricsManager{
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	mm.initMetrics()
	mm.registerMetrics()

	return mm
}

func (mm *MetricsManager) initMetrics() {
	mm.uptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outclash_uptime_seconds",
		Help: "Time since the application started",
	})

	mm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outclash_http_requests_total",
			Help: "Total number of requests served by the embedded server",
		},
		[]string{"method", "path", "status"},
	)

	mm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outclash_http_request_duration_seconds",
			Help:    "Embedded server request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	mm.startupDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outclash_startup_duration_seconds",
		Help: "Wall time of the last startup sequence",
	})

	mm.startupSteps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outclash_startup_step_duration_seconds",
			Help:    "Duration of individual startup steps",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"step", "status"},
	)

	mm.windowBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outclash_window_requests_total",
			Help: "Ensure-visible requests by outcome",
		},
		[]string{"result"},
	)

	mm.readinessTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outclash_ui_readiness_timeouts_total",
		Help: "Times the frontend failed to report ready before the timeout",
	})

	mm.deepLinks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outclash_deeplinks_total",
			Help: "Deep-link activations by outcome",
		},
		[]string{"result"},
	)

	mm.engineRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outclash_engine_restarts_total",
			Help: "Engine restarts by outcome",
		},
		[]string{"status"},
	)

	mm.notices = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outclash_notices_total",
			Help: "Frontend notices emitted by status",
		},
		[]string{"status"},
	)
}

func (mm *MetricsManager) registerMetrics() {
	mm.registry.MustRegister(
		mm.uptime,
		mm.httpRequests,
		mm.httpDuration,
		mm.startupDuration,
		mm.startupSteps,
		mm.windowBuilds,
		mm.readinessTimeouts,
		mm.deepLinks,
		mm.engineRestarts,
		mm.notices,
	)

	mm.registry.MustRegister(collectors.NewGoCollector())
	mm.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns an HTTP handler for the /metrics endpoint
func (mm *MetricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry for custom metrics
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// SetUptime sets the uptime metric
func (mm *MetricsManager) SetUptime(startTime time.Time) {
	if mm == nil {
		return
	}
	mm.uptime.Set(time.Since(startTime).Seconds())
}

// RecordHTTPRequest records an HTTP request
func (mm *MetricsManager) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if mm == nil {
		return
	}
	mm.httpRequests.WithLabelValues(method, path, status).Inc()
	mm.httpDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordStartupStep records one orchestrator step.
func (mm *MetricsManager) RecordStartupStep(step string, err error, duration time.Duration) {
	if mm == nil {
		return
	}
	mm.startupSteps.WithLabelValues(step, statusOf(err)).Observe(duration.Seconds())
}

// SetStartupDuration records the total startup time.
func (mm *MetricsManager) SetStartupDuration(d time.Duration) {
	if mm == nil {
		return
	}
	mm.startupDuration.Set(d.Seconds())
}

// RecordWindowRequest counts an ensure-visible outcome.
func (mm *MetricsManager) RecordWindowRequest(result string) {
	if mm == nil {
		return
	}
	mm.windowBuilds.WithLabelValues(result).Inc()
}

// RecordReadinessTimeout counts a forced readiness.
func (mm *MetricsManager) RecordReadinessTimeout() {
	if mm == nil {
		return
	}
	mm.readinessTimeouts.Inc()
}

// RecordDeepLink counts a deep-link outcome.
func (mm *MetricsManager) RecordDeepLink(result string) {
	if mm == nil {
		return
	}
	mm.deepLinks.WithLabelValues(result).Inc()
}

// RecordEngineRestart counts an engine restart.
func (mm *MetricsManager) RecordEngineRestart(err error) {
	if mm == nil {
		return
	}
	mm.engineRestarts.WithLabelValues(statusOf(err)).Inc()
}

// Notify counts a frontend notice by status, so the manager can be added
// as an events sink.
func (mm *MetricsManager) Notify(status, _ string) {
	if mm == nil {
		return
	}
	mm.notices.WithLabelValues(status).Inc()
}

// HTTPMiddleware returns middleware that records HTTP metrics
func (mm *MetricsManager) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			mm.RecordHTTPRequest(r.Method, r.URL.Path, http.StatusText(ww.statusCode), time.Since(start))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
