// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Listener metrics
	TokensDetected     *prometheus.CounterVec
	TokensDropped      *prometheus.CounterVec
	TokensAccepted     prometheus.Counter
	DecodeErrors       *prometheus.CounterVec
	ListenerReconnects prometheus.Counter

	// Trading metrics
	Trades        *prometheus.CounterVec
	Exits         *prometheus.CounterVec
	OpenPositions prometheus.Gauge
	QueueDropped  *prometheus.CounterVec

	// Chain metrics
	SendRetries    prometheus.Counter
	RPCCallLatency *prometheus.HistogramVec
	PriorityFee    prometheus.Histogram
	BlockhashAge   prometheus.Gauge

	// Cleanup metrics
	Cleanups *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered on reg. A nil reg
// uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "pump_agent"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Listener metrics
		TokensDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "tokens_detected_total",
			Help:      "Total number of token creations decoded by variant",
		}, []string{"variant"}),
		TokensDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "tokens_dropped_total",
			Help:      "Total number of tokens rejected by filter rule",
		}, []string{"rule"}),
		TokensAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "tokens_accepted_total",
			Help:      "Total number of tokens passing every filter",
		}),
		DecodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "decode_errors_total",
			Help:      "Total number of undecodable notifications by variant",
		}, []string{"variant"}),
		ListenerReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),

		// Trading metrics
		Trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "trades_total",
			Help:      "Total number of buy and sell attempts by result",
		}, []string{"side", "result"}),
		Exits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "exits_total",
			Help:      "Total number of position exits by reason",
		}, []string{"reason"}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "open_positions",
			Help:      "Number of trade pipelines currently holding a slot",
		}),
		QueueDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "queue_dropped_total",
			Help:      "Total number of queued tokens dropped by reason",
		}, []string{"reason"}),

		// Chain metrics
		SendRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "send_retries_total",
			Help:      "Total number of transaction submission retries",
		}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		PriorityFee: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "priority_fee_micro_lamports",
			Help:      "Priority fee attached to transactions",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 8),
		}),
		BlockhashAge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "blockhash_age_seconds",
			Help:      "Age of the cached blockhash at last send",
		}),

		// Cleanup metrics
		Cleanups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Total number of account cleanups by mode and outcome",
		}, []string{"mode", "outcome"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		UptimeSeconds: f.NewCounter(prometheus.CounterOpts{
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
var DefaultMetrics = NewMetrics("", nil)

// RecordTokenDetected counts a decoded token creation.
func RecordTokenDetected(variant string) {
	DefaultMetrics.TokensDetected.WithLabelValues(variant).Inc()
}

// RecordTokenDropped counts a token rejected by rule.
func RecordTokenDropped(rule string) {
	DefaultMetrics.TokensDropped.WithLabelValues(rule).Inc()
}

// RecordTokenAccepted counts a token delivered to the agent.
func RecordTokenAccepted() {
	DefaultMetrics.TokensAccepted.Inc()
}

// RecordDecodeError counts a notification that could not be decoded.
func RecordDecodeError(variant string) {
	DefaultMetrics.DecodeErrors.WithLabelValues(variant).Inc()
}

// RecordReconnect counts a WebSocket reconnect.
func RecordReconnect() {
	DefaultMetrics.ListenerReconnects.Inc()
}

// RecordTrade counts a buy or sell outcome.
func RecordTrade(side string, success bool) {
	result := "failed"
	if success {
		result = "ok"
	}
	DefaultMetrics.Trades.WithLabelValues(side, result).Inc()
}

// RecordExit counts a monitor exit.
func RecordExit(reason string) {
	DefaultMetrics.Exits.WithLabelValues(reason).Inc()
}

// SetOpenPositions updates the open positions gauge.
func SetOpenPositions(n int) {
	DefaultMetrics.OpenPositions.Set(float64(n))
}

// RecordQueueDrop counts a token dropped by the intake consumer.
func RecordQueueDrop(reason string) {
	DefaultMetrics.QueueDropped.WithLabelValues(reason).Inc()
}

// RecordSendRetry counts a transaction resubmission.
func RecordSendRetry() {
	DefaultMetrics.SendRetries.Inc()
}

// RecordRPCLatency records RPC call latency. It matches the solana client's
// observer signature.
func RecordRPCLatency(method string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.RPCCallLatency.WithLabelValues(method, status).Observe(d.Seconds())
}

// RecordPriorityFee records the fee attached to a transaction.
func RecordPriorityFee(microLamports uint64) {
	DefaultMetrics.PriorityFee.Observe(float64(microLamports))
}

// SetBlockhashAge records the cached blockhash age.
func SetBlockhashAge(d time.Duration) {
	DefaultMetrics.BlockhashAge.Set(d.Seconds())
}

// RecordCleanup counts a cleanup outcome.
func RecordCleanup(mode, outcome string) {
	DefaultMetrics.Cleanups.WithLabelValues(mode, outcome).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordUptime adds elapsed process time.
func RecordUptime(d time.Duration) {
	DefaultMetrics.UptimeSeconds.Add(d.Seconds())
}
