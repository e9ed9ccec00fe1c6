package queue

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the kind of tracked interaction
type EventType string

const (
	EventFeatureUsed         EventType = "feature_used"
	EventSearchPerformed     EventType = "search_performed"
	EventSearchesCleared     EventType = "searches_cleared"
	EventConditionViewed     EventType = "condition_viewed"
	EventSymptomsReported    EventType = "symptoms_reported"
	EventHealthFocusSet      EventType = "health_focus_set"
	EventFavoriteAdded       EventType = "favorite_added"
	EventFavoriteRemoved     EventType = "favorite_removed"
	EventOnboardingCompleted EventType = "onboarding_completed"
)

// Event is the envelope published for every applied tracking call
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"type"`
	InstanceID uuid.UUID      `json:"instance_id"` // Runtime instance that recorded the event
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent creates a new event
func NewEvent(eventType EventType, instanceID uuid.UUID, payload map[string]any, occurredAt time.Time) *Event {
	if payload == nil {
		payload = make(map[string]any)
	}
	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		InstanceID: instanceID,
		Payload:    payload,
		OccurredAt: occurredAt,
	}
}

// RoutingKey is the topic routing key the event is published under
func (e *Event) RoutingKey() string {
	return "interaction." + string(e.Type)
}

// IsKnown reports whether t is one of the published event types
func (t EventType) IsKnown() bool {
	switch t {
	case EventFeatureUsed, EventSearchPerformed, EventSearchesCleared, EventConditionViewed,
		EventSymptomsReported, EventHealthFocusSet, EventFavoriteAdded, EventFavoriteRemoved,
		EventOnboardingCompleted:
		return true
	default:
		return false
	}
}
