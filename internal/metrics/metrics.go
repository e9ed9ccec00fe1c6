package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hydration results
const (
	HydrationLoaded  = "loaded"
	HydrationAbsent  = "absent"
	HydrationCorrupt = "corrupt"
	HydrationPartial = "partial"
	HydrationError   = "error"
)

// Persist results
const (
	PersistSuccess = "success"
	PersistFailure = "failure"
)

// Metrics holds the Prometheus collectors of the personalization engine
type Metrics struct {
	// Hydration outcomes at session start, so silent fallbacks to defaults stay visible
	Hydrations *prometheus.CounterVec

	// Durable writes by result
	Persists *prometheus.CounterVec

	// Tracking calls by event type
	TrackedEvents *prometheus.CounterVec

	// Event publish failures (analytics sink)
	PublishFailures prometheus.Counter
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Hydrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_health_hydration_total",
			Help: "Session hydrations by result (loaded, partial, absent, corrupt, error)",
		}, []string{"result"}),

		Persists: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_health_persist_total",
			Help: "Snapshot writes to the durable store by result",
		}, []string{"result"}),

		TrackedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_health_tracked_events_total",
			Help: "Tracking calls applied to the session by event type",
		}, []string{"event"}),

		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "smart_health_event_publish_failures_total",
			Help: "Interaction events that could not be published",
		}),
	}
}

// Nop returns metrics bound to a private registry, for callers that do not export them
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ConsumerMetrics holds the collectors of the analytics worker
type ConsumerMetrics struct {
	// Consumed events by type
	Consumed *prometheus.CounterVec

	// Capability usage seen in feature_used events
	FeatureUsage *prometheus.CounterVec

	// Symptom names reported across all symptoms_reported events
	SymptomMentions prometheus.Counter

	// Events that failed processing and were dropped
	Rejected prometheus.Counter
}

// NewConsumer registers the analytics worker collectors with reg
func NewConsumer(reg prometheus.Registerer) *ConsumerMetrics {
	factory := promauto.With(reg)
	return &ConsumerMetrics{
		Consumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_health_consumed_events_total",
			Help: "Interaction events consumed by the analytics worker by event type",
		}, []string{"event"}),

		FeatureUsage: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_health_feature_usage_total",
			Help: "Capability usage reported by feature_used events",
		}, []string{"feature"}),

		SymptomMentions: factory.NewCounter(prometheus.CounterOpts{
			Name: "smart_health_symptom_mentions_total",
			Help: "Symptom names reported by symptoms_reported events",
		}),

		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "smart_health_rejected_events_total",
			Help: "Interaction events dropped by the analytics worker",
		}),
	}
}
