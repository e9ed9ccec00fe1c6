package queue

import (
	"context"
)

// Publisher delivers interaction events to downstream consumers (analytics,
// audit). Delivery is best effort: callers log and drop failures.
type Publisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event *Event) error

	// Close closes the publisher connection
	Close() error

	// HealthCheck verifies the publisher connection is healthy
	HealthCheck(ctx context.Context) error
}
