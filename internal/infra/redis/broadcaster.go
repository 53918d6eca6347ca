package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"classquest-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Broadcaster carries classroom events over Redis pub/sub, one channel per
// classroom, so every node's subscribers see events published anywhere.
type Broadcaster struct {
	client *redis.Client
	log    *logrus.Entry
}

func NewBroadcaster(client *redis.Client, log *logrus.Entry) *Broadcaster {
	return &Broadcaster{client: client, log: log}
}

func (b *Broadcaster) Publish(ctx context.Context, classroomID string, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channelName(classroomID), data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (b *Broadcaster) Subscribe(ctx context.Context, classroomID string) (<-chan domain.Event, func(), error) {
	pubsub := b.client.Subscribe(ctx, channelName(classroomID))
	// Confirm the subscription before handing the channel out, so a dead
	// transport surfaces here instead of as a silently empty stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe classroom %s: %w", classroomID, err)
	}

	out := make(chan domain.Event, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.WithError(err).Warn("dropping malformed classroom event")
				continue
			}
			out <- ev
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}

func channelName(classroomID string) string {
	return "classroom." + classroomID + ".events"
}
