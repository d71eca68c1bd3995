package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the mailbox subsystem's Prometheus collectors.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Conversations
	ConversationsCreated prometheus.Counter
	MessagesSent         prometheus.Counter
	MarkReadCalls        prometheus.Counter

	// Attachments
	UploadsTotal   *prometheus.CounterVec
	AttachmentSize prometheus.Histogram

	// Background synchronization
	SyncCycles  *prometheus.CounterVec
	SyncSkipped prometheus.Counter

	// Push delivery
	NotificationsDropped prometheus.Counter
}

// NewMetrics registers and returns the collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monogest_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monogest_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		ConversationsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monogest_conversations_created_total",
				Help: "Total number of conversations created",
			},
		),
		MessagesSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monogest_messages_sent_total",
				Help: "Total number of messages appended to conversations",
			},
		),
		MarkReadCalls: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monogest_mark_read_total",
				Help: "Total number of mark-read calls",
			},
		),
		UploadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monogest_attachment_uploads_total",
				Help: "Total number of attachment uploads by result",
			},
			[]string{"result"},
		),
		AttachmentSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "monogest_attachment_size_bytes",
				Help:    "Uploaded attachment size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		SyncCycles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monogest_sync_cycles_total",
				Help: "Total number of background sync cycles by result",
			},
			[]string{"result"},
		),
		SyncSkipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monogest_sync_skipped_total",
				Help: "Sync cycles skipped because the previous one was still in flight",
			},
		),
		NotificationsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monogest_notifications_dropped_total",
				Help: "Push notifications dropped because the worker queue was full",
			},
		),
	}
}

// RecordHTTPRequest records one handled request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler exposes the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
