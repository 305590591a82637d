package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not plugin-specific)
type Metrics struct {
	// State engine metrics
	ReadyStatus  prometheus.Gauge
	SwapsTotal   *prometheus.CounterVec
	SwapDuration *prometheus.HistogramVec

	// Face operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	PostsCreated      prometheus.Counter
	ScrapItems        *prometheus.CounterVec
	WatchSubscribers  *prometheus.GaugeVec

	// Twitter API metrics
	APIRequests        *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIRateLimited     prometheus.Counter

	// Toxicity gate metrics
	ToxicityChecks *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// State engine metrics
		ReadyStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "kilroy",
				Subsystem: "state",
				Name:      "ready",
				Help:      "Readiness flag (0=loading, 1=ready)",
			},
		),

		SwapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kilroy",
				Subsystem: "state",
				Name:      "swaps_total",
				Help:      "Total number of snapshot swaps",
			},
			[]string{"operation", "status"},
		),

		SwapDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kilroy",
				Subsystem: "state",
				Name:      "swap_duration_seconds",
				Help:      "Snapshot swap duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// Face operation metrics
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kilroy",
				Subsystem: "face",
				Name:      "operations_total",
				Help:      "Total number of face operations",
			},
			[]string{"operation", "status"},
		),

		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kilroy",
				Subsystem: "face",
				Name:      "operation_duration_seconds",
				Help:      "Face operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		PostsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kilroy",
				Subsystem: "face",
				Name:      "posts_created_total",
				Help:      "Total number of tweets posted",
			},
		),

		ScrapItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kilroy",
				Subsystem: "face",
				Name:      "scrap_items_total",
				Help:      "Total number of scraped items by outcome (emitted, skipped)",
			},
			[]string{"status"},
		),

		WatchSubscribers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "kilroy",
				Subsystem: "face",
				Name:      "watch_subscribers",
				Help:      "Number of active watch subscribers per stream",
			},
			[]string{"stream"},
		),

		// Twitter API metrics
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kilroy",
				Subsystem: "twitter",
				Name:      "requests_total",
				Help:      "Total number of Twitter API requests",
			},
			[]string{"endpoint", "status"},
		),

		APIRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kilroy",
				Subsystem: "twitter",
				Name:      "request_duration_seconds",
				Help:      "Twitter API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		APIRateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kilroy",
				Subsystem: "twitter",
				Name:      "rate_limited_total",
				Help:      "Total number of requests delayed or rejected by rate limits",
			},
		),

		// Toxicity gate metrics
		ToxicityChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kilroy",
				Subsystem: "toxicity",
				Name:      "checks_total",
				Help:      "Total number of toxicity evaluations by outcome (passed, rejected)",
			},
			[]string{"outcome"},
		),
	}
}

// RecordReadyStatus updates the readiness gauge
func (m *Metrics) RecordReadyStatus(ready bool) {
	value := 0.0
	if ready {
		value = 1.0
	}
	m.ReadyStatus.Set(value)
}

// RecordSwap records one snapshot swap attempt
func (m *Metrics) RecordSwap(operation, status string, duration time.Duration) {
	m.SwapsTotal.WithLabelValues(operation, status).Inc()
	m.SwapDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordOperation records one face operation
func (m *Metrics) RecordOperation(operation, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPostCreated increments the posted tweet counter
func (m *Metrics) RecordPostCreated() {
	m.PostsCreated.Inc()
}

// RecordScrapItem counts one scraped item by outcome
func (m *Metrics) RecordScrapItem(status string) {
	m.ScrapItems.WithLabelValues(status).Inc()
}

// RecordToxicityCheck counts one toxicity gate evaluation by outcome
func (m *Metrics) RecordToxicityCheck(outcome string) {
	m.ToxicityChecks.WithLabelValues(outcome).Inc()
}

// RecordWatchStart counts a new watch subscriber
func (m *Metrics) RecordWatchStart(stream string) {
	m.WatchSubscribers.WithLabelValues(stream).Inc()
}

// RecordWatchEnd counts a departed watch subscriber
func (m *Metrics) RecordWatchEnd(stream string) {
	m.WatchSubscribers.WithLabelValues(stream).Dec()
}

// RecordAPIRequest records one Twitter API request
func (m *Metrics) RecordAPIRequest(endpoint, status string, duration time.Duration) {
	m.APIRequests.WithLabelValues(endpoint, status).Inc()
	m.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRateLimited increments the rate limit counter
func (m *Metrics) RecordRateLimited() {
	m.APIRateLimited.Inc()
}
