// Package metrics provides Prometheus instrumentation for the console gateway.
package metrics

import (
	"bufio"
	"errors"
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
	// TransactionsTotal counts transactions recorded by the mock ledger, by side.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaboost_transactions_total",
		Help: "Total number of transactions recorded by the mock ledger",
	}, []string{"side"})

	// LedgerLatency tracks mock ledger operation latency, including the
	// simulated network delay.
	LedgerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alphaboost_ledger_operation_seconds",
		Help:    "Mock ledger operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// UpstreamRequests counts calls to the remote backend by outcome
	// ("ok" or a failure kind) and status.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaboost_upstream_requests_total",
		Help: "Calls to the remote backend",
	}, []string{"method", "outcome", "status"})

	// UpstreamLatency tracks round trips to the remote backend.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alphaboost_upstream_request_seconds",
		Help:    "Remote backend round-trip time in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method"})

	// JournalEntries counts call journal entries written, by method and status.
	JournalEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaboost_journal_entries_total",
		Help: "Call journal entries written",
	}, []string{"method", "status"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alphaboost_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaboost_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alphaboost_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
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

		// Route pattern keeps tickers out of the label set.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
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

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
