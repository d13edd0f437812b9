package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline and the webhook
// dispatcher. Registered once at startup on the default registry.
type Metrics struct {
	EventsDecoded  prometheus.Counter
	EventsMapped   prometheus.Counter
	EventsIgnored  prometheus.Counter
	LinesMalformed prometheus.Counter
	BatchesDropped prometheus.Counter

	AppendFailures prometheus.Counter

	WebhookQueueDepth prometheus.Gauge
	WebhookDelivered  prometheus.Counter
	WebhookRetries    prometheus.Counter
	WebhookDeadLetter prometheus.Counter
	WebhookQueueFull  prometheus.Counter

	ScreeningFailures prometheus.Counter
	BlockedLookups    prometheus.Counter
}

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		EventsDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_events_decoded_total",
			Help: "Total number of ledger events decoded from log batches",
		}),
		EventsMapped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_events_mapped_total",
			Help: "Total number of decoded events mapped to audit records",
		}),
		EventsIgnored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_events_ignored_total",
			Help: "Total number of decoded events with no audit mapping",
		}),
		LinesMalformed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_log_lines_malformed_total",
			Help: "Total number of log lines skipped as undecodable",
		}),
		BatchesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_log_batches_dropped_total",
			Help: "Total number of log batches dropped due to a source-reported error",
		}),
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_ledger_append_failures_total",
			Help: "Total number of audit ledger append failures",
		}),
		WebhookQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "auditrelay_webhook_queue_depth",
			Help: "Current number of payloads waiting for webhook delivery",
		}),
		WebhookDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_webhook_delivered_total",
			Help: "Total number of webhook payloads delivered successfully",
		}),
		WebhookRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_webhook_retries_total",
			Help: "Total number of webhook delivery attempts beyond the first",
		}),
		WebhookDeadLetter: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_webhook_dead_letter_total",
			Help: "Total number of webhook payloads dropped after retry exhaustion",
		}),
		WebhookQueueFull: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_webhook_queue_full_total",
			Help: "Total number of webhook payloads dropped because the queue was full",
		}),
		ScreeningFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_screening_failures_total",
			Help: "Total number of failed external screening calls",
		}),
		BlockedLookups: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditrelay_blocked_lookups_total",
			Help: "Total number of compliance gate lookups that returned blocked",
		}),
	}
}
