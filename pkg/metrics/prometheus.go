package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics for the service.
type Metrics struct {
	SuggestionsServed prometheus.Counter
	ScoringTime       prometheus.Histogram
	TransitionsTotal  *prometheus.CounterVec
	VersionConflicts  prometheus.Counter
	RemindersSent     prometheus.Counter
	ReminderFailures  prometheus.Counter
}

// NewMetrics creates and registers the service metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SuggestionsServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guide_suggestions_total",
			Help:      "The total number of guide suggestion requests served",
		}),
		ScoringTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "guide_scoring_time_seconds",
			Help:      "Time taken to score and rank candidate guides",
			Buckets:   prometheus.DefBuckets,
		}),
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "The total number of booking status transitions",
		}, []string{"action"}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_version_conflicts_total",
			Help:      "The total number of optimistic-lock conflicts on booking writes",
		}),
		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "The total number of pre-visit reminders sent",
		}),
		ReminderFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_failures_total",
			Help:      "The total number of reminders that failed to send",
		}),
	}
}
