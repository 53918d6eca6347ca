package realtime

import (
	"context"
	"fmt"
	"sync"

	"classquest-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// ConnState tracks the lifecycle of a classroom subscription.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	// StateUnavailable means the transport refused the subscription; callers
	// fall back to polling and may retry with JoinClassroom.
	StateUnavailable
	// StateFailed means an established subscription died underneath us.
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateUnavailable:
		return "unavailable"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handler receives one named event.
type Handler func(domain.Event)

// Client owns at most one classroom subscription at a time and dispatches
// named events to registered handlers. It is an explicitly constructed,
// owned instance: callers create one per consumer (e.g. per websocket
// connection) and tear it down with Disconnect. There is no auto-retry;
// callers re-invoke JoinClassroom to force a fresh attempt.
type Client struct {
	broadcaster Broadcaster
	log         *logrus.Entry

	mu          sync.Mutex
	classroomID string
	state       ConnState
	handlers    map[domain.EventType]Handler
	cancel      func()
	done        chan struct{}
}

func NewClient(b Broadcaster, log *logrus.Entry) *Client {
	return &Client{
		broadcaster: b,
		log:         log,
		state:       StateDisconnected,
		handlers:    make(map[domain.EventType]Handler),
	}
}

// JoinClassroom subscribes to the classroom channel. Joining the classroom the
// client is already connected to is an idempotent no-op. Joining a different
// classroom tears down the prior subscription first. On transport failure the
// client ends up Unavailable and the caller should treat realtime updates as
// absent (poll instead).
func (c *Client) JoinClassroom(ctx context.Context, classroomID string) error {
	c.mu.Lock()
	if c.classroomID == classroomID && c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	prev := c.done
	c.teardownLocked()
	c.setStateLocked(StateConnecting)
	c.classroomID = classroomID
	c.mu.Unlock()
	if prev != nil {
		<-prev
	}

	events, cancel, err := c.broadcaster.Subscribe(ctx, classroomID)
	if err != nil {
		c.mu.Lock()
		c.classroomID = ""
		c.setStateLocked(StateUnavailable)
		c.mu.Unlock()
		return fmt.Errorf("join classroom %s: %w", classroomID, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	go c.dispatch(events, done)
	return nil
}

// On registers the handler for an event type. Exactly one handler exists per
// type: re-registering replaces the previous one (last-writer-wins), which
// avoids duplicate handler leaks across re-joins.
func (c *Client) On(t domain.EventType, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = h
}

// Off removes the handler for an event type. Safe when none is registered.
func (c *Client) Off(t domain.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, t)
}

// Disconnect unregisters all handlers and releases the subscription, then
// waits for the dispatcher to finish so no handler runs after it returns. It
// is a no-op when nothing is subscribed.
func (c *Client) Disconnect() {
	c.mu.Lock()
	done := c.done
	c.teardownLocked()
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State reports the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) dispatch(events <-chan domain.Event, done chan struct{}) {
	defer close(done)
	for ev := range events {
		c.mu.Lock()
		h := c.handlers[ev.Type]
		c.mu.Unlock()
		if h != nil {
			h(ev)
		}
	}
	// The event channel closed. If this dispatcher is still the current one,
	// the transport died rather than a deliberate teardown.
	c.mu.Lock()
	if c.done == done && c.state == StateConnected {
		c.setStateLocked(StateFailed)
	}
	c.mu.Unlock()
}

func (c *Client) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.done = nil
	c.classroomID = ""
	c.handlers = make(map[domain.EventType]Handler)
	if c.state != StateDisconnected {
		c.setStateLocked(StateDisconnected)
	}
}

func (c *Client) setStateLocked(next ConnState) {
	if c.state == next {
		return
	}
	c.log.WithFields(logrus.Fields{
		"from":      c.state.String(),
		"to":        next.String(),
		"classroom": c.classroomID,
	}).Debug("realtime state change")
	c.state = next
}
