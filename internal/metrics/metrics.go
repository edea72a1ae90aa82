package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	EventsIngested       prometheus.Counter
	DuplicatesSuppressed prometheus.Counter
	EventsProcessed      prometheus.Counter
	EventsFailed         prometheus.Counter
	Retries              prometheus.Counter
	AssistantFailures    prometheus.Counter
	RepliesSent          prometheus.Counter
	JobSkips             *prometheus.CounterVec
	EventsCleaned        prometheus.Counter
	DrainDuration        prometheus.Histogram
}

// NewMetrics creates metrics registered on the default Prometheus registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered on the given registerer. Tests use
// a private registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "social_relay_events_ingested_total",
			Help: "Total number of events persisted by the webhook ingress",
		}),
		DuplicatesSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "social_relay_duplicates_suppressed_total",
			Help: "Total number of redelivered events suppressed by idempotent insert",
		}),
		EventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "social_relay_events_processed_total",
			Help: "Total number of events that reached PROCESSED status",
		}),
		EventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "social_relay_events_failed_total",
			Help: "Total number of events that reached FAILED status",
		}),
		Retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "social_relay_retries_total",
			Help: "Total number of events requeued after a transient failure",
		}),
		AssistantFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "social_relay_assistant_failures_total",
			Help: "Total number of failed AI collaborator calls",
		}),
		RepliesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "social_relay_replies_sent_total",
			Help: "Total number of outbound replies sent to platforms",
		}),
		JobSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "social_relay_job_skips_total",
			Help: "Total number of scheduler ticks skipped because the previous run had not finished",
		}, []string{"job"}),
		EventsCleaned: factory.NewCounter(prometheus.CounterOpts{
			Name: "social_relay_events_cleaned_total",
			Help: "Total number of processed events removed by the retention cleanup job",
		}),
		DrainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "social_relay_drain_duration_seconds",
			Help:    "Time spent draining a batch of queued events",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
