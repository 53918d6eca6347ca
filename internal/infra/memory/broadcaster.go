package memory

import (
	"context"
	"sync"

	"classquest-service/internal/domain"
)

// Broadcaster is the in-process pub/sub fanout used by single-node
// deployments and tests. One subscriber set per classroom channel.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[chan domain.Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]map[chan domain.Event]struct{}),
	}
}

func (b *Broadcaster) Publish(_ context.Context, classroomID string, ev domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[classroomID] {
		select {
		case ch <- ev:
		default:
			// Drop the oldest buffered event so a slow subscriber never blocks
			// the broadcast; the latest event is authoritative anyway.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
	return nil
}

func (b *Broadcaster) Subscribe(_ context.Context, classroomID string) (<-chan domain.Event, func(), error) {
	ch := make(chan domain.Event, 16)

	b.mu.Lock()
	if b.subs[classroomID] == nil {
		b.subs[classroomID] = make(map[chan domain.Event]struct{})
	}
	b.subs[classroomID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[classroomID][ch]; ok {
			delete(b.subs[classroomID], ch)
			if len(b.subs[classroomID]) == 0 {
				delete(b.subs, classroomID)
			}
			close(ch)
		}
	}
	return ch, cancel, nil
}
