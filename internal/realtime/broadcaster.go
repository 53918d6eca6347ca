package realtime

import (
	"context"

	"classquest-service/internal/domain"
)

// Broadcaster abstracts the pub/sub transport: one logical channel per
// classroom. Implementations live in internal/infra (memory, redis, rabbit).
type Broadcaster interface {
	// Publish delivers an event to every subscriber of the classroom channel.
	Publish(ctx context.Context, classroomID string, ev domain.Event) error
	// Subscribe opens a channel of events for a classroom. The returned cancel
	// function releases the subscription and closes the channel; it must be
	// safe to call more than once.
	Subscribe(ctx context.Context, classroomID string) (<-chan domain.Event, func(), error)
}
