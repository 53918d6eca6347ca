package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"classquest-service/internal/domain"
	"github.com/sirupsen/logrus"
)

type fakeBroadcaster struct {
	mu      sync.Mutex
	subs    map[string][]chan domain.Event
	failing bool
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{subs: make(map[string][]chan domain.Event)}
}

func (b *fakeBroadcaster) Publish(_ context.Context, classroomID string, ev domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[classroomID] {
		ch <- ev
	}
	return nil
}

func (b *fakeBroadcaster) Subscribe(_ context.Context, classroomID string) (<-chan domain.Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing {
		return nil, nil, errors.New("transport down")
	}
	ch := make(chan domain.Event, 16)
	b.subs[classroomID] = append(b.subs[classroomID], ch)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, sub := range b.subs[classroomID] {
				if sub == ch {
					b.subs[classroomID] = append(b.subs[classroomID][:i], b.subs[classroomID][i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}

func (b *fakeBroadcaster) subscriberCount(classroomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[classroomID])
}

func testLogger(t *testing.T) *logrus.Entry {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("test", t.Name())
}

func TestJoinClassroomDispatchesEvents(t *testing.T) {
	b := newFakeBroadcaster()
	c := NewClient(b, testLogger(t))
	defer c.Disconnect()

	if err := c.JoinClassroom(context.Background(), "classroom-1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if got := c.State(); got != StateConnected {
		t.Fatalf("expected connected, got %s", got)
	}

	received := make(chan domain.Event, 1)
	c.On(domain.EventQuestionCreated, func(ev domain.Event) {
		received <- ev
	})

	ev, err := domain.NewEvent(domain.EventQuestionCreated, "classroom-1", map[string]string{"id": "q1"})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if err := b.Publish(context.Background(), "classroom-1", ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-received:
		if got.Type != domain.EventQuestionCreated {
			t.Fatalf("expected question.created, got %s", got.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("handler never fired")
	}
}

func TestJoinSameClassroomIsIdempotent(t *testing.T) {
	b := newFakeBroadcaster()
	c := NewClient(b, testLogger(t))
	defer c.Disconnect()

	for i := 0; i < 3; i++ {
		if err := c.JoinClassroom(context.Background(), "classroom-1"); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	if got := b.subscriberCount("classroom-1"); got != 1 {
		t.Fatalf("repeated joins must not stack subscriptions, got %d", got)
	}
}

func TestJoinDifferentClassroomSwitchesSubscription(t *testing.T) {
	b := newFakeBroadcaster()
	c := NewClient(b, testLogger(t))
	defer c.Disconnect()

	if err := c.JoinClassroom(context.Background(), "classroom-1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := c.JoinClassroom(context.Background(), "classroom-2"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if got := b.subscriberCount("classroom-1"); got != 0 {
		t.Fatalf("old subscription must be released, got %d", got)
	}
	if got := b.subscriberCount("classroom-2"); got != 1 {
		t.Fatalf("expected one subscription on the new classroom, got %d", got)
	}
}

func TestOnReplacesPreviousHandler(t *testing.T) {
	b := newFakeBroadcaster()
	c := NewClient(b, testLogger(t))
	defer c.Disconnect()

	if err := c.JoinClassroom(context.Background(), "classroom-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	firstFired := make(chan struct{}, 4)
	c.On(domain.EventUserJoined, func(domain.Event) { firstFired <- struct{}{} })
	second := make(chan struct{}, 4)
	c.On(domain.EventUserJoined, func(domain.Event) { second <- struct{}{} })

	ev, _ := domain.NewEvent(domain.EventUserJoined, "classroom-1", nil)
	_ = b.Publish(context.Background(), "classroom-1", ev)

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatalf("replacement handler never fired")
	}
	select {
	case <-firstFired:
		t.Fatalf("replaced handler must not fire")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestJoinFailureLeavesClientUnavailable(t *testing.T) {
	b := newFakeBroadcaster()
	b.failing = true
	c := NewClient(b, testLogger(t))

	if err := c.JoinClassroom(context.Background(), "classroom-1"); err == nil {
		t.Fatalf("expected join failure")
	}
	if got := c.State(); got != StateUnavailable {
		t.Fatalf("expected unavailable, got %s", got)
	}

	// A later retry against a recovered transport succeeds.
	b.failing = false
	if err := c.JoinClassroom(context.Background(), "classroom-1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := c.State(); got != StateConnected {
		t.Fatalf("expected connected after retry, got %s", got)
	}
	c.Disconnect()
}

func TestDisconnectStopsHandlers(t *testing.T) {
	b := newFakeBroadcaster()
	c := NewClient(b, testLogger(t))

	if err := c.JoinClassroom(context.Background(), "classroom-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	var mu sync.Mutex
	fired := 0
	c.On(domain.EventUserLeft, func(domain.Event) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	c.Disconnect()
	if got := c.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", got)
	}
	if got := b.subscriberCount("classroom-1"); got != 0 {
		t.Fatalf("subscription must be released on disconnect, got %d", got)
	}

	// No handler may run once Disconnect has returned.
	mu.Lock()
	after := fired
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	if fired != after {
		mu.Unlock()
		t.Fatalf("handler fired after disconnect")
	}
	mu.Unlock()

	// Disconnecting twice is safe.
	c.Disconnect()
}

func TestTransportDeathMarksClientFailed(t *testing.T) {
	b := newFakeBroadcaster()
	c := NewClient(b, testLogger(t))

	if err := c.JoinClassroom(context.Background(), "classroom-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Close the subscription from the transport side.
	b.mu.Lock()
	ch := b.subs["classroom-1"][0]
	b.subs["classroom-1"] = nil
	b.mu.Unlock()
	close(ch)

	deadline := time.After(time.Second)
	for c.State() != StateFailed {
		select {
		case <-deadline:
			t.Fatalf("expected failed state, got %s", c.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
