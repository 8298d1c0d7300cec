package rpc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_ledger_rpc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "donation_ledger_rpc_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "donation_ledger_rpc_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	rpcCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_ledger_rpc_calls_total",
			Help: "Total number of JSON-RPC calls",
		},
		[]string{"method", "code"},
	)

	rpcCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "donation_ledger_rpc_call_duration_seconds",
			Help:    "Duration of JSON-RPC calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"method"},
	)

	transactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_ledger_rpc_transactions_total",
			Help: "Total number of transactions submitted, by outcome",
		},
		[]string{"outcome"}, // "success", "failed", "rejected", "preflight_failed"
	)
)

// instrument is a chi middleware that records HTTP metrics
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func recordCall(method string, code int, duration time.Duration) {
	rpcCallsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	rpcCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}
