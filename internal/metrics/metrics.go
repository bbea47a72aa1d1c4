// Package metrics provides Prometheus instrumentation for the option engine.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts completed pricing runs, partitioned by mode.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_pricing_runs_total",
		Help: "Total number of pricing runs completed",
	}, []string{"mode"})

	// PathsTotal counts simulated paths, partitioned by mode.
	PathsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_pricing_paths_total",
		Help: "Total number of Monte Carlo paths simulated",
	}, []string{"mode"})

	// PricingLatency tracks the wall time of one estimator call.
	PricingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atmx_pricing_latency_seconds",
		Help:    "Monte Carlo pricing latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"mode"})

	// LastStdErr is the standard error of the latest run per mode.
	LastStdErr = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "atmx_pricing_last_standard_error",
		Help: "Standard error of the most recent pricing run",
	}, []string{"mode"})

	// LastVarianceReduction is the naive/importance variance ratio of the
	// latest comparison.
	LastVarianceReduction = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atmx_pricing_last_variance_reduction",
		Help: "Variance reduction factor of the most recent comparison",
	})

	// SamplesInFlight tracks paths currently reserved by the sample limiter.
	SamplesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atmx_pricing_samples_in_flight",
		Help: "Monte Carlo paths currently being simulated",
	})

	// BudgetRejections counts requests refused by the sample limiter.
	BudgetRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_pricing_budget_rejections_total",
		Help: "Pricing requests rejected by the sample limiter",
	}, []string{"reason"})

	// CacheHits counts seeded requests answered from a stored run.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atmx_pricing_run_reuse_total",
		Help: "Seeded pricing requests served from a stored run",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atmx_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atmx_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern labels by the matched chi pattern (e.g. /api/v1/runs/{runID})
// to keep cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
