package providers

import (
	"context"

	"github.com/karasuemlak/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to job events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.ProgressEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ProgressEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelJobPrefix is the prefix for per-job progress channels
const EventChannelJobPrefix = "improvement:job:"

// GetJobChannel returns the channel name for a specific improvement job
func GetJobChannel(jobID string) string {
	return EventChannelJobPrefix + jobID
}
