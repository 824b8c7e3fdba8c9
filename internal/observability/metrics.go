// Package observability provides Prometheus metrics and the process logger.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Comparison metrics
	ComparisonRunsTotal *prometheus.CounterVec
	MethodDuration      *prometheus.HistogramVec
	ActiveJobs          prometheus.Gauge

	// Optimizer metrics
	OptimizerCalls     *prometheus.CounterVec
	OptimizerFallbacks *prometheus.CounterVec
	OptimizerDuration  *prometheus.HistogramVec

	// Engine metrics
	Rebalances        *prometheus.CounterVec
	VolatilityScaled  *prometheus.CounterVec
	BacktestsFinished *prometheus.CounterVec

	// Market data metrics
	PriceCacheRequests *prometheus.CounterVec
	ProviderLatency    *prometheus.HistogramVec
	BarsIngested       *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "portfolio_lab"
	}

	return &Metrics{
		// Comparison metrics
		ComparisonRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "runs_total",
			Help:      "Total number of comparison runs by status",
		}, []string{"status"}),
		MethodDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "method_duration_seconds",
			Help:      "Walk-forward backtest duration per method in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"method"}),
		ActiveJobs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "active",
			Help:      "Number of comparison jobs currently processing",
		}),

		// Optimizer metrics
		OptimizerCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "calls_total",
			Help:      "Total number of optimizer calls by method and outcome",
		}, []string{"method", "outcome"}),
		OptimizerFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "fallbacks_total",
			Help:      "Total number of optimizer fallbacks by method",
		}, []string{"method"}),
		OptimizerDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "duration_seconds",
			Help:      "Optimizer call duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),

		// Engine metrics
		Rebalances: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "rebalances_total",
			Help:      "Total number of rebalance cycles simulated",
		}, []string{"method"}),
		VolatilityScaled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "volatility_scaled_total",
			Help:      "Total number of rebalances where volatility targeting reduced exposure",
		}, []string{"method"}),
		BacktestsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "finished_total",
			Help:      "Total number of walk-forward runs by method and status",
		}, []string{"method", "status"}),

		// Market data metrics
		PriceCacheRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "price_cache_requests_total",
			Help:      "Price cache lookups by result (hit, miss, shared)",
		}, []string{"result"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "provider_latency_seconds",
			Help:      "Market data provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		BarsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "bars_ingested_total",
			Help:      "Total number of price bars written by source",
		}, []string{"source"}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordComparison records a finished comparison run.
func RecordComparison(status string) {
	DefaultMetrics.ComparisonRunsTotal.WithLabelValues(status).Inc()
}

// RecordMethodDuration records one method's backtest duration.
func RecordMethodDuration(method string, seconds float64) {
	DefaultMetrics.MethodDuration.WithLabelValues(method).Observe(seconds)
}

// JobStarted increments the active jobs gauge.
func JobStarted() {
	DefaultMetrics.ActiveJobs.Inc()
}

// JobFinished decrements the active jobs gauge.
func JobFinished() {
	DefaultMetrics.ActiveJobs.Dec()
}

// RecordOptimizerCall records an optimizer call. Outcome is "ok", "fallback" or "cash".
func RecordOptimizerCall(method, outcome string, seconds float64) {
	DefaultMetrics.OptimizerCalls.WithLabelValues(method, outcome).Inc()
	DefaultMetrics.OptimizerDuration.WithLabelValues(method).Observe(seconds)
	if outcome == "fallback" {
		DefaultMetrics.OptimizerFallbacks.WithLabelValues(method).Inc()
	}
}

// RecordRebalance increments the rebalance counter.
func RecordRebalance(method string, volScaled bool) {
	DefaultMetrics.Rebalances.WithLabelValues(method).Inc()
	if volScaled {
		DefaultMetrics.VolatilityScaled.WithLabelValues(method).Inc()
	}
}

// RecordBacktest records a finished walk-forward run.
func RecordBacktest(method, status string) {
	DefaultMetrics.BacktestsFinished.WithLabelValues(method, status).Inc()
}

// RecordPriceCache records a cache lookup result.
func RecordPriceCache(result string) {
	DefaultMetrics.PriceCacheRequests.WithLabelValues(result).Inc()
}

// RecordProviderLatency records market data provider latency.
func RecordProviderLatency(provider string, seconds float64) {
	DefaultMetrics.ProviderLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordBarsIngested adds n ingested bars for source.
func RecordBarsIngested(source string, n int) {
	DefaultMetrics.BarsIngested.WithLabelValues(source).Add(float64(n))
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(route, code string) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
