// Package metrics provides Prometheus instrumentation for the ledger.
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
	// TransfersTotal counts transfer and redemption requests by outcome.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koi_transfers_total",
		Help: "Total number of transfer and redemption requests",
	}, []string{"outcome"})

	// FeesCollected is the cumulative amount of fees and penalties routed
	// to the issuer.
	FeesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koi_fees_collected_total",
		Help: "Fees and early-claim penalties credited to the issuer",
	})

	// InterestMinted is the cumulative interest funded by the issuer.
	InterestMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koi_interest_minted_total",
		Help: "Interest debited from the issuer during settlement",
	})

	// LotteryPayouts counts redistribution lottery payouts.
	LotteryPayouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "koi_lottery_payouts_total",
		Help: "Number of lottery payouts executed",
	})

	// IssuerReserve tracks the issuer's spendable balance.
	IssuerReserve = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "koi_issuer_reserve",
		Help: "Issuer wallet balance",
	})

	// LogEntries tracks the length of the transaction log.
	LogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "koi_log_entries",
		Help: "Number of entries in the transaction log",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "koi_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// SinkErrors counts failed journal/publisher deliveries.
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koi_sink_errors_total",
		Help: "Failed deliveries to external sinks",
	}, []string{"sink"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koi_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "koi_http_request_duration_seconds",
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
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps wallet names out of the label set.
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

// Hijack lets WebSocket upgrades pass through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
