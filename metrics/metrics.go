package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spray_attempts_total",
			Help: "Total number of credential attempts made, by module and result.",
		},
		[]string{"module", "result"},
	)
	backoffStage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spray_backoff_stage",
			Help: "Current timeout escalator stage (0, 1, or 2).",
		},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spray_queue_depth",
			Help: "Number of (username, password) pairs remaining in the work queue.",
		},
	)
	analyzerHits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spray_analyzer_hits",
			Help: "Number of likely valid credentials flagged by the analyzer so far.",
		},
	)
	notifierFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spray_notifier_failures_total",
			Help: "Total number of webhook notification failures, by event.",
		},
		[]string{"event"},
	)

	// Status server (C12) request metrics, serving only /healthz,
	// /metrics, /status.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of status server HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of status server HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var initMetricsOnce sync.Once
var registry *prometheus.Registry

// InitMetrics initializes and registers Prometheus metrics.
func InitMetrics() *prometheus.Registry {
	initMetricsOnce.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(attemptsTotal)
		registry.MustRegister(backoffStage)
		registry.MustRegister(queueDepth)
		registry.MustRegister(analyzerHits)
		registry.MustRegister(notifierFailuresTotal)
		registry.MustRegister(httpRequestsTotal)
		registry.MustRegister(httpRequestDurationSeconds)

		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		log.Info().Msg("Prometheus metrics initialized.")
	})
	return registry
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RecordAttempt increments the attempts counter for one completed
// login. The Orchestrator passes result "timeout" for a timed-out
// attempt and "success" for any attempt that got a response, whatever
// the target's verdict.
func RecordAttempt(module, result string) {
	attemptsTotal.WithLabelValues(module, result).Inc()
}

// SetBackoffStage reports the escalator's current stage (0, 1, 2).
func SetBackoffStage(stage int) {
	backoffStage.Set(float64(stage))
}

// SetQueueDepth reports the number of pairs remaining to attempt.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// SetAnalyzerHits reports the analyzer's current hit count.
func SetAnalyzerHits(n int) {
	analyzerHits.Set(float64(n))
}

// RecordNotifierFailure increments the notifier failure counter for event.
func RecordNotifierFailure(event string) {
	notifierFailuresTotal.WithLabelValues(event).Inc()
}

// HTTPMetricsMiddleware collects request metrics for the status
// server's own endpoints.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lw, r)

		duration := time.Since(start).Seconds()
		method := r.Method
		path := r.URL.Path
		status := strconv.Itoa(lw.statusCode)

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(method, path).Observe(duration)
	})
}

// loggingResponseWriter is a wrapper to capture the HTTP status code.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// GetMetricsInfo returns current metrics information as a map. The
// status server's /status endpoint does not use it; that endpoint
// serves the engine snapshot from its StatusFunc.
func GetMetricsInfo() map[string]interface{} {
	if registry == nil {
		return map[string]interface{}{
			"status": "metrics not initialized",
		}
	}

	metricFamilies, err := registry.Gather()
	if err != nil {
		log.Error().Err(err).Msg("failed to gather metrics")
		return map[string]interface{}{
			"status": "error gathering metrics",
			"error":  err.Error(),
		}
	}

	sprayMetrics := make(map[string]interface{})
	runtimeMetrics := make(map[string]interface{})

	for _, mf := range metricFamilies {
		metricName := mf.GetName()

		switch {
		case metricName == "spray_attempts_total":
			total := 0.0
			for _, metric := range mf.GetMetric() {
				if metric.Counter != nil {
					total += metric.Counter.GetValue()
				}
			}
			sprayMetrics["attempts_total"] = total

		case metricName == "spray_backoff_stage":
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].Gauge != nil {
				sprayMetrics["backoff_stage"] = int(mf.GetMetric()[0].Gauge.GetValue())
			}

		case metricName == "spray_queue_depth":
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].Gauge != nil {
				sprayMetrics["queue_depth"] = int(mf.GetMetric()[0].Gauge.GetValue())
			}

		case metricName == "spray_analyzer_hits":
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].Gauge != nil {
				sprayMetrics["analyzer_hits"] = int(mf.GetMetric()[0].Gauge.GetValue())
			}

		case strings.HasPrefix(metricName, "go_goroutines"):
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].Gauge != nil {
				runtimeMetrics["goroutines"] = int(mf.GetMetric()[0].Gauge.GetValue())
			}

		case strings.HasPrefix(metricName, "go_memstats_alloc_bytes"):
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].Gauge != nil {
				runtimeMetrics["allocated_bytes"] = int64(mf.GetMetric()[0].Gauge.GetValue())
			}

		case strings.HasPrefix(metricName, "process_resident_memory_bytes"):
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].Gauge != nil {
				runtimeMetrics["resident_memory_bytes"] = int64(mf.GetMetric()[0].Gauge.GetValue())
			}
		}
	}

	return map[string]interface{}{
		"spray":                   sprayMetrics,
		"runtime":                 runtimeMetrics,
		"total_metrics_collected": len(metricFamilies),
	}
}
