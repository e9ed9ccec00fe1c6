// Package workers holds the background consumers of interaction events.
package workers

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/smart-health/internal/metrics"
	"github.com/benvon/smart-health/internal/models"
	"github.com/benvon/smart-health/internal/queue"
	"github.com/benvon/smart-health/internal/validation"
)

// Summary is the running tally kept by an Aggregator
type Summary struct {
	Events          map[queue.EventType]int   `json:"events"`
	Features        map[models.Capability]int `json:"features"`
	SymptomMentions int                       `json:"symptomMentions"`
	Rejected        int                       `json:"rejected"`
	LastEventAt     time.Time                 `json:"lastEventAt"`
}

// Aggregator tallies interaction events for analytics
type Aggregator struct {
	metrics *metrics.ConsumerMetrics
	logger  *zap.Logger

	mu      sync.Mutex
	summary Summary
}

// NewAggregator creates an aggregator reporting to mt
func NewAggregator(mt *metrics.ConsumerMetrics, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		metrics: mt,
		logger:  logger,
		summary: Summary{
			Events:   make(map[queue.EventType]int),
			Features: make(map[models.Capability]int),
		},
	}
}

// Process applies one event to the tally
func (a *Aggregator) Process(_ context.Context, event *queue.Event) error {
	if event == nil || !event.Type.IsKnown() {
		return fmt.Errorf("unsupported event")
	}

	var feature models.Capability
	mentions := 0
	switch event.Type {
	case queue.EventFeatureUsed:
		name, _ := event.Payload["feature"].(string)
		feature = models.Capability(name)
		if err := validation.ValidateCapability(name); err != nil {
			return fmt.Errorf("feature_used event %s: %w", event.ID, err)
		}
	case queue.EventSymptomsReported:
		symptoms, ok := event.Payload["symptoms"].([]any)
		if !ok {
			return fmt.Errorf("symptoms_reported event %s has no symptom list", event.ID)
		}
		mentions = len(symptoms)
	}

	a.mu.Lock()
	a.summary.Events[event.Type]++
	if feature != "" {
		a.summary.Features[feature]++
	}
	a.summary.SymptomMentions += mentions
	if event.OccurredAt.After(a.summary.LastEventAt) {
		a.summary.LastEventAt = event.OccurredAt
	}
	a.mu.Unlock()

	a.metrics.Consumed.WithLabelValues(string(event.Type)).Inc()
	if feature != "" {
		a.metrics.FeatureUsage.WithLabelValues(string(feature)).Inc()
	}
	if mentions > 0 {
		a.metrics.SymptomMentions.Add(float64(mentions))
	}
	return nil
}

// Run processes deliveries until the channel closes or ctx is done.
// Processed events are acknowledged; events that fail are rejected.
func (a *Aggregator) Run(ctx context.Context, deliveries <-chan *queue.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				a.logger.Info("delivery_channel_closed")
				return
			}
			a.handle(ctx, d)
		}
	}
}

func (a *Aggregator) handle(ctx context.Context, d *queue.Delivery) {
	if err := a.Process(ctx, d.Event); err != nil {
		a.mu.Lock()
		a.summary.Rejected++
		a.mu.Unlock()
		a.metrics.Rejected.Inc()
		a.logger.Warn("rejecting_interaction_event", zap.Error(err))
		if rejectErr := d.Reject(); rejectErr != nil {
			a.logger.Error("failed_to_reject_event", zap.Error(rejectErr))
		}
		return
	}
	if err := d.Ack(); err != nil {
		a.logger.Error("failed_to_ack_event", zap.String("event_id", d.Event.ID.String()), zap.Error(err))
	}
}

// Summary returns a copy of the running tally
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.summary
	out.Events = maps.Clone(a.summary.Events)
	out.Features = maps.Clone(a.summary.Features)
	return out
}
