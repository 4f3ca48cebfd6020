// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts handled requests.
	// Labels: method, route (chi pattern), status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidtube",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	// HTTPDuration measures request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vidtube",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// PipelineDuration measures pipeline execution time.
	// Labels: resource, outcome (ok, error)
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vidtube",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "Pipeline execution latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"resource", "outcome"})

	// PipelineDocuments tracks how many documents a pipeline produced before paging.
	PipelineDocuments = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vidtube",
		Subsystem: "pipeline",
		Name:      "documents",
		Help:      "Documents produced per pipeline run",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"resource"})

	// MediaOperations counts media store calls.
	// Labels: operation (store, remove, reap, probe), kind, outcome
	MediaOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidtube",
		Subsystem: "media",
		Name:      "operations_total",
		Help:      "Total media store operations",
	}, []string{"operation", "kind", "outcome"})

	// BreakerState reports the media circuit breaker state (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vidtube",
		Subsystem: "media",
		Name:      "breaker_state",
		Help:      "Circuit breaker state for the media store",
	}, []string{"name"})
)

// Outcome renders an error as a low-cardinality label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency labelled by the matched chi route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
