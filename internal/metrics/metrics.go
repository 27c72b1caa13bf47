package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed connection metrics
	FeedMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whalescan_feed_messages_received_total",
			Help: "Total number of messages received from the RTDS feed",
		},
	)

	FeedPayloadsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalescan_feed_payloads_rejected_total",
			Help: "Total number of feed payloads dropped as malformed",
		},
		[]string{"reason"}, // not_json, missing_field, bad_number, bad_side, bad_price
	)

	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whalescan_feed_reconnects_total",
			Help: "Total number of feed reconnection attempts",
		},
	)

	FeedForcedCloses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whalescan_feed_forced_closes_total",
			Help: "Total number of connections force-closed by the staleness watchdog",
		},
	)

	FeedEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whalescan_feed_events_dropped_total",
			Help: "Total number of trade events dropped because the event channel was full",
		},
	)

	FeedConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whalescan_feed_connected",
			Help: "Whether the feed connection is currently subscribed (1) or not (0)",
		},
	)

	// Trade processing metrics
	TradesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalescan_trades_processed_total",
			Help: "Total number of trade events processed",
		},
		[]string{"status"}, // whale, below_threshold, duplicate, error
	)

	TradeProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whalescan_trade_processing_duration_seconds",
			Help:    "Duration of whale trade processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Settlement metrics
	SettlementSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whalescan_settlement_sweeps_total",
			Help: "Total number of settlement sweeps",
		},
	)

	MarketsChecked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalescan_markets_checked_total",
			Help: "Total number of market resolution checks",
		},
		[]string{"result"}, // resolved, not_resolved, ambiguous, not_binary, unreachable
	)

	PositionsSettled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whalescan_positions_settled_total",
			Help: "Total number of positions settled with a win/loss verdict",
		},
	)

	SettlementSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whalescan_settlement_sweep_duration_seconds",
			Help:    "Duration of settlement sweeps",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// Enrichment metrics
	Enrichments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalescan_enrichments_total",
			Help: "Total number of wallet enrichment lookups",
		},
		[]string{"status"}, // fresh, cached, error
	)

	// Alert metrics
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalescan_alerts_sent_total",
			Help: "Total number of whale alerts sent",
		},
		[]string{"status", "type"}, // success/error, discord/smtp/log
	)

	// Database metrics
	DatabaseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalescan_database_queries_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whalescan_database_retries_total",
			Help: "Total number of retried database operations",
		},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalescan_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"},
	)
)

// RecordTradeProcessing records trade processing metrics
func RecordTradeProcessing(duration time.Duration, status string) {
	TradesProcessed.WithLabelValues(status).Inc()
	TradeProcessingDuration.Observe(duration.Seconds())
}

// RecordRejectedPayload records a malformed feed payload by reason
func RecordRejectedPayload(reason string) {
	FeedPayloadsRejected.WithLabelValues(reason).Inc()
}

// RecordSettlementSweep records settlement sweep metrics
func RecordSettlementSweep(duration time.Duration, positionsSettled int) {
	SettlementSweeps.Inc()
	PositionsSettled.Add(float64(positionsSettled))
	SettlementSweepDuration.Observe(duration.Seconds())
}

// RecordDatabaseQuery records database operation metrics
func RecordDatabaseQuery(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueries.WithLabelValues(operation, status).Inc()
}

// RecordAlert records alert delivery metrics
func RecordAlert(sendStatus, alertType string) {
	AlertsSent.WithLabelValues(sendStatus, alertType).Inc()
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
