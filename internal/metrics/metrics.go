// Package metrics provides Prometheus instrumentation for the exchange.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersPlaced counts placed orders, partitioned by type and outcome.
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probo_orders_placed_total",
		Help: "Total number of orders placed",
	}, []string{"type", "outcome"})

	// OrdersCanceled counts successful cancellations.
	OrdersCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probo_orders_canceled_total",
		Help: "Total number of orders canceled",
	})

	// TradesTotal counts executed fills, partitioned by kind (taker, sweep,
	// mint).
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probo_trades_total",
		Help: "Total number of fills executed",
	}, []string{"kind"})

	// TradeVolume accumulates filled quantity per symbol and kind.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probo_trade_volume_total",
		Help: "Cumulative filled quantity in tokens",
	}, []string{"symbol", "kind"})

	// EngineOpDuration tracks engine operation latency by operation.
	EngineOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "probo_engine_op_duration_seconds",
		Help:    "Engine operation latency in seconds",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
	}, []string{"op"})

	// ActiveSymbols tracks the number of registered symbols.
	ActiveSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "probo_active_symbols",
		Help: "Number of registered market symbols",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "probo_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// EventsDropped counts events discarded by the outbound queue.
	EventsDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "probo_events_dropped_total",
		Help: "Events discarded because the outbound queue was full",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probo_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "probo_http_request_duration_seconds",
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

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
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
