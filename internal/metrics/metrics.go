package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics for the futures client and gateway
var (
	// Exchange API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_api_requests_total",
			Help: "Total number of exchange API requests by outcome",
		},
		[]string{"method", "path", "outcome"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "futures_api_request_duration_seconds",
			Help:    "Exchange API request latency including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_api_retries_total",
			Help: "Total number of retried exchange API attempts",
		},
		[]string{"path"},
	)

	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_api_errors_total",
			Help: "Total number of exchange API errors by server code",
		},
		[]string{"path", "code"},
	)

	// Rate limiter metrics
	WeightUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "futures_rate_limit_weight_used",
			Help: "Request weight used in the current minute as reported by the exchange",
		},
	)

	CircuitOpens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "futures_circuit_breaker_opens_total",
			Help: "Total number of times the rate limit circuit breaker opened",
		},
	)

	// Routing metrics
	OrdersRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_orders_routed_total",
			Help: "Total number of orders by endpoint and routing outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_not_found_fallbacks_total",
			Help: "Total number of cross-endpoint fallbacks after a not-found response",
		},
		[]string{"operation", "target", "outcome"},
	)

	BatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "futures_batch_entries",
			Help:    "Number of entries per batch split by endpoint",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Gateway metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_gateway_requests_total",
			Help: "Total number of gateway HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "futures_gateway_request_duration_seconds",
			Help:    "Gateway HTTP request latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
)

// Timer is a helper for measuring operation duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram
func (t *Timer) ObserveDuration(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// RecordAPIRequest records the final outcome of an exchange call
func RecordAPIRequest(method, path, outcome string) {
	APIRequests.WithLabelValues(method, path, outcome).Inc()
}

// RecordAPIRetry records one retried attempt
func RecordAPIRetry(path string) {
	APIRetries.WithLabelValues(path).Inc()
}

// RecordAPIError records a structured server error
func RecordAPIError(path string, code int) {
	APIErrors.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

// RecordWeightUsed records the exchange-reported weight
func RecordWeightUsed(weight int) {
	WeightUsed.Set(float64(weight))
}

// RecordCircuitOpen records a circuit breaker trip
func RecordCircuitOpen() {
	CircuitOpens.Inc()
}

// RecordOrderRouted records where an order went and how
func RecordOrderRouted(endpoint, outcome string) {
	OrdersRouted.WithLabelValues(endpoint, outcome).Inc()
}

// RecordFallback records a not-found fallback attempt
func RecordFallback(operation, target string, success bool) {
	outcome := "error"
	if success {
		outcome = "success"
	}
	Fallbacks.WithLabelValues(operation, target, outcome).Inc()
}

// RecordBatch records how a batch was split
func RecordBatch(legacy, algo int) {
	BatchSize.WithLabelValues("legacy").Observe(float64(legacy))
	BatchSize.WithLabelValues("algo").Observe(float64(algo))
}

// RecordHTTPRequest records a gateway request
func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server serves /metrics on a dedicated port
type Server struct {
	addr   string
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start starts the metrics server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("Starting metrics server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the metrics server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
