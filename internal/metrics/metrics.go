// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons a fetched or classified message did not become a new record.
const (
	SkipFetch     = "fetch"
	SkipMalformed = "malformed"
	SkipDuplicate = "duplicate"
)

var (
	SyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_syncs_total",
			Help: "Mailbox syncs by outcome",
		},
		[]string{"outcome"}, // ok, auth_failed, error, conflict
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "triage_sync_duration_seconds",
			Help:    "Duration of a full mailbox sync in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	EmailsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_emails_inserted_total",
			Help: "Newly stored emails by category",
		},
		[]string{"category"},
	)

	MessagesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_messages_skipped_total",
			Help: "Messages that did not produce a new email record",
		},
		[]string{"reason"},
	)

	ClassifierFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_classifier_fallbacks_total",
			Help: "Classifications that fell back to the default category",
		},
	)

	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_notifications_created_total",
			Help: "Urgent notifications created",
		},
	)

	AlertsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_alerts_failed_total",
			Help: "Urgent alert emails that could not be sent",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route", "status"},
	)
)

func ObserveSync(outcome string, d time.Duration) {
	SyncsTotal.WithLabelValues(outcome).Inc()
	SyncDuration.Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
