package domain

import (
	"encoding/json"
	"fmt"
)

// EventType names the events published on a classroom channel.
type EventType string

const (
	EventQuestionCreated  EventType = "question.created"
	EventQuestionClosed   EventType = "question.closed"
	EventUserJoined       EventType = "user.joined"
	EventUserLeft         EventType = "user.left"
	EventRouletteSettled  EventType = "roulette.settled"
	EventGameStateUpdated EventType = "gamestate.updated"
)

// Event is the envelope carried over the pub/sub transport. Payloads are
// pre-marshaled so every broadcaster implementation ships the same bytes.
type Event struct {
	Type        EventType       `json:"type"`
	ClassroomID string          `json:"classroomId"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an envelope with the payload marshaled to JSON.
func NewEvent(t EventType, classroomID string, payload any) (Event, error) {
	ev := Event{Type: t, ClassroomID: classroomID}
	if payload == nil {
		return ev, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	ev.Payload = data
	return ev, nil
}

// QuestionClosedPayload identifies which question was closed.
type QuestionClosedPayload struct {
	QuestionID string `json:"questionId"`
}

// RouletteSettledPayload announces the participant the spin landed on.
type RouletteSettledPayload struct {
	ParticipantID   string `json:"participantId"`
	ParticipantName string `json:"participantName"`
}
