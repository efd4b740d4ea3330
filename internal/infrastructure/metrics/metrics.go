package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WhatsApp relay metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Webhooks by provider event and pipeline result
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "webhooks_total",
			Help:      "Total webhook callbacks received by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	// Pipeline stage duration
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"stage"},
	)

	// Stage outcomes that stopped the happy path
	StageOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "stage_outcomes_total",
			Help:      "Pipeline stage outcomes by stage, category and code",
		},
		[]string{"stage", "category", "code"},
	)

	// Delivery outcomes
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "deliveries_total",
			Help:      "Outbound reply deliveries by classified outcome",
		},
		[]string{"outcome"},
	)

	// Reply generation results
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "replies_total",
			Help:      "Reply generation attempts by status",
		},
		[]string{"status"},
	)

	// Degraded payload fields
	DegradationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "payload_degradations_total",
			Help:      "Payload fields replaced by defaults during normalization",
		},
		[]string{"field"},
	)

	// Queue depth gauge
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "sweeper_queue_depth",
			Help:      "Stale webhook events picked up by the last sweep",
		},
	)

	// Background jobs counter
	BackgroundJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "background_jobs_total",
			Help:      "Total background jobs processed",
		},
		[]string{"job_type", "status"},
	)

	// Agent notification counter
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "whatsapp_relay",
			Name:      "agent_notifications_total",
			Help:      "Agent new-message notifications by status",
		},
		[]string{"status"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordWebhook records one webhook callback outcome
func RecordWebhook(event, outcome string) {
	WebhooksTotal.WithLabelValues(event, outcome).Inc()
}

// ObserveStage records a pipeline stage duration
func ObserveStage(stage string, durationSec float64) {
	StageDuration.WithLabelValues(stage).Observe(durationSec)
}

// RecordStageOutcome counts a stage outcome that left the happy path
func RecordStageOutcome(stage, category, code string) {
	StageOutcomesTotal.WithLabelValues(stage, category, code).Inc()
}

// RecordDelivery counts a classified delivery outcome
func RecordDelivery(outcome string) {
	DeliveriesTotal.WithLabelValues(outcome).Inc()
}

// RecordReply counts a reply generation attempt
func RecordReply(status string) {
	RepliesTotal.WithLabelValues(status).Inc()
}

// RecordDegradation counts a defaulted payload field
func RecordDegradation(field string) {
	DegradationsTotal.WithLabelValues(field).Inc()
}

// SetQueueDepth sets the current queue depth
func SetQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}

// RecordBackgroundJob records a background job execution
func RecordBackgroundJob(jobType, status string) {
	BackgroundJobsTotal.WithLabelValues(jobType, status).Inc()
}

// RecordNotification records an agent notification attempt
func RecordNotification(status string) {
	NotificationsTotal.WithLabelValues(status).Inc()
}
