package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	webhookMetricsOnce sync.Once
	webhookRegistry    *WebhookMetrics

	indexerMetricsOnce sync.Once
	indexerRegistry    *IndexerMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sacco",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sacco",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sacco",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sacco",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of module requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" or
// "quota_exceeded" so dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// WebhookMetrics tracks outbound webhook delivery health.
type WebhookMetrics struct {
	deliveries *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// Webhooks exposes the metrics registry for the webhook dispatcher.
func Webhooks() *WebhookMetrics {
	webhookMetricsOnce.Do(func() {
		webhookRegistry = &WebhookMetrics{
			deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sacco",
				Subsystem: "webhooks",
				Name:      "deliveries_total",
				Help:      "Count of webhook delivery attempts segmented by destination and outcome.",
			}, []string{"destination", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sacco",
				Subsystem: "webhooks",
				Name:      "failures_total",
				Help:      "Count of webhook deliveries that exhausted their retry budget.",
			}, []string{"destination"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sacco",
				Subsystem: "webhooks",
				Name:      "delivery_duration_seconds",
				Help:      "Latency distribution for webhook deliveries.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"destination"}),
		}
		prometheus.MustRegister(
			webhookRegistry.deliveries,
			webhookRegistry.failures,
			webhookRegistry.latency,
		)
	})
	return webhookRegistry
}

// ObserveDelivery records one delivery attempt against a destination.
func (m *WebhookMetrics) ObserveDelivery(destination string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	dest := labelDestination(destination)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.deliveries.WithLabelValues(dest, outcome).Inc()
	m.latency.WithLabelValues(dest).Observe(duration.Seconds())
}

// RecordExhausted marks a delivery that failed after all retries.
func (m *WebhookMetrics) RecordExhausted(destination string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(labelDestination(destination)).Inc()
}

// IndexerMetrics tracks the ledger-indexer mirror pipeline.
type IndexerMetrics struct {
	applied *prometheus.CounterVec
	errors  *prometheus.CounterVec
	cursor  prometheus.Gauge
}

// Indexer exposes the metrics registry for the ledger indexer service.
func Indexer() *IndexerMetrics {
	indexerMetricsOnce.Do(func() {
		indexerRegistry = &IndexerMetrics{
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sacco",
				Subsystem: "indexer",
				Name:      "events_applied_total",
				Help:      "Count of ledger events applied to the SQL mirror by type.",
			}, []string{"type"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sacco",
				Subsystem: "indexer",
				Name:      "errors_total",
				Help:      "Count of indexer failures segmented by pipeline stage.",
			}, []string{"stage"}),
			cursor: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "sacco",
				Subsystem: "indexer",
				Name:      "cursor_sequence",
				Help:      "Sequence number of the last event applied to the mirror.",
			}),
		}
		prometheus.MustRegister(
			indexerRegistry.applied,
			indexerRegistry.errors,
			indexerRegistry.cursor,
		)
	})
	return indexerRegistry
}

// RecordApplied counts one mirrored event and advances the cursor gauge.
func (m *IndexerMetrics) RecordApplied(eventType string, sequence uint64) {
	if m == nil {
		return
	}
	kind := strings.TrimSpace(eventType)
	if kind == "" {
		kind = "unknown"
	}
	m.applied.WithLabelValues(kind).Inc()
	m.cursor.Set(float64(sequence))
}

// RecordError counts a pipeline failure for the supplied stage.
func (m *IndexerMetrics) RecordError(stage string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	m.errors.WithLabelValues(stage).Inc()
}

func labelDestination(destination string) string {
	trimmed := strings.TrimSpace(destination)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
