// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	SignalsReceived    prometheus.Counter
	SignalsRejected    *prometheus.CounterVec
	AlertAuditFailures prometheus.Counter
	TradeLogsRecorded  prometheus.Counter

	// Execution metrics
	ExecutionsTotal    *prometheus.CounterVec
	ExecutionLatency   prometheus.Histogram
	ExchangeCallErrors prometheus.Counter

	// Optimization metrics
	OptimizationRunsTotal *prometheus.CounterVec
	PromotionsTotal       prometheus.Counter
	AdvisoryLatency       prometheus.Histogram

	// Backtest metrics
	BacktestRunsTotal prometheus.Counter
	ConfigsEvaluated  prometheus.Counter
	BacktestDuration  prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulOptimization prometheus.Gauge
	UptimeSeconds              prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trade_signal_lab"
	}

	return &Metrics{
		// Ingestion metrics
		SignalsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "signals_received_total",
			Help:      "Total number of signals received",
		}),
		SignalsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "signals_rejected_total",
			Help:      "Total number of signals rejected by reason",
		}, []string{"reason"}),
		AlertAuditFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "alert_audit_failures_total",
			Help:      "Total number of failed alert audit writes",
		}),
		TradeLogsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "trade_logs_recorded_total",
			Help:      "Total number of trade closure entries recorded",
		}),

		// Execution metrics
		ExecutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Total number of executions by status",
		}, []string{"status"}),
		ExecutionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "execution_latency_seconds",
			Help:      "Order execution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ExchangeCallErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "exchange_call_errors_total",
			Help:      "Total number of exchange API call errors",
		}),

		// Optimization metrics
		OptimizationRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Total number of optimization runs by status",
		}, []string{"status"}),
		PromotionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "promotions_total",
			Help:      "Total number of configuration promotions",
		}),
		AdvisoryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "advisory_latency_seconds",
			Help:      "Advisory call latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30},
		}),

		// Backtest metrics
		BacktestRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs",
		}),
		ConfigsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "configs_evaluated_total",
			Help:      "Total number of configurations evaluated",
		}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),

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

		// Health metrics
		LastSuccessfulOptimization: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_optimization_timestamp",
			Help:      "Unix timestamp of last successful optimization run",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSignalReceived increments the signals received counter.
func RecordSignalReceived() {
	DefaultMetrics.SignalsReceived.Inc()
}

// RecordSignalRejected records a gate rejection.
func RecordSignalRejected(reason string) {
	DefaultMetrics.SignalsRejected.WithLabelValues(reason).Inc()
}

// RecordAlertAuditFailure increments the failed audit write counter.
func RecordAlertAuditFailure() {
	DefaultMetrics.AlertAuditFailures.Inc()
}

// RecordTradeLog increments the trade closure counter.
func RecordTradeLog() {
	DefaultMetrics.TradeLogsRecorded.Inc()
}

// RecordExecution records an execution by terminal status.
func RecordExecution(status string, seconds float64) {
	DefaultMetrics.ExecutionsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ExecutionLatency.Observe(seconds)
}

// RecordExchangeCallError increments the exchange call error counter.
func RecordExchangeCallError() {
	DefaultMetrics.ExchangeCallErrors.Inc()
}

// RecordOptimizationRun records an optimization run.
func RecordOptimizationRun(status string) {
	DefaultMetrics.OptimizationRunsTotal.WithLabelValues(status).Inc()
}

// RecordPromotion increments the promotions counter.
func RecordPromotion() {
	DefaultMetrics.PromotionsTotal.Inc()
}

// RecordBacktest records a backtest run.
func RecordBacktest(configs int, seconds float64) {
	DefaultMetrics.BacktestRunsTotal.Inc()
	DefaultMetrics.ConfigsEvaluated.Add(float64(configs))
	DefaultMetrics.BacktestDuration.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
