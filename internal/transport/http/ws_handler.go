package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"classquest-service/internal/ai"
	"classquest-service/internal/app"
	"classquest-service/internal/domain"
	"classquest-service/internal/realtime"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// forwardedEvents are the classroom channel events relayed to every
// websocket client of that classroom.
var forwardedEvents = []domain.EventType{
	domain.EventQuestionCreated,
	domain.EventQuestionClosed,
	domain.EventUserJoined,
	domain.EventUserLeft,
	domain.EventRouletteSettled,
	domain.EventGameStateUpdated,
}

type WSHandler struct {
	service     *app.SessionService
	generator   *ai.Generator
	broadcaster realtime.Broadcaster
	upgrader    websocket.Upgrader
	log         *logrus.Entry
}

func NewWSHandler(service *app.SessionService, generator *ai.Generator, broadcaster realtime.Broadcaster, log *logrus.Entry) *WSHandler {
	return &WSHandler{
		service:     service,
		generator:   generator,
		broadcaster: broadcaster,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type answerPayload struct {
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"optionIndex"`
}

type topicPayload struct {
	Topic string `json:"topic"`
}

type verdictPayload struct {
	StudentID string `json:"studentId"`
	Verdict   string `json:"verdict"`
}

type tickPayload struct {
	ParticipantID string `json:"participantId"`
}

// wsSession pairs the outbound buffer with the writer goroutine's lifetime.
// The writer closes writerDone when it exits, so a write against a dead
// connection unblocks instead of wedging behind a full buffer.
type wsSession struct {
	send       chan outboundMessage[any]
	writerDone chan struct{}
}

func newWSSession() *wsSession {
	return &wsSession{
		send:       make(chan outboundMessage[any], 16),
		writerDone: make(chan struct{}),
	}
}

// write blocks until the message is buffered or the writer has exited.
func (s *wsSession) write(msg outboundMessage[any]) {
	select {
	case s.send <- msg:
	case <-s.writerDone:
	}
}

// tryWrite buffers the message only if there is room; reports whether it did.
func (s *wsSession) tryWrite(msg outboundMessage[any]) bool {
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// ServeWS upgrades the request and wires the connection into the classroom
// session: students are joined to the roster, every client gets a realtime
// subscription (own client instance, torn down with the connection), and
// inbound commands are dispatched to the session use cases. Inbound messages
// are handled one at a time per connection, which is the submission guard:
// a second submit cannot race the one in flight.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	classroomID := r.URL.Query().Get("classroomId")
	if classroomID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing classroomId")
		return
	}
	userID := UserID(r.Context())
	role := Role(r.Context())
	displayName := r.URL.Query().Get("name")
	if displayName == "" {
		displayName = userID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	var joined domain.Participant
	if role != RoleProfessor {
		joined, err = h.service.Join(r.Context(), classroomID, userID, displayName)
		if err != nil {
			_, code := mapError(err)
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Code: code, Message: err.Error()}})
			return
		}
		defer h.service.Leave(r.Context(), classroomID, userID)
	}

	sess := newWSSession()
	go func() {
		defer close(sess.writerDone)
		for msg := range sess.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	// Each connection owns its realtime client; its lifecycle is tied to the
	// connection, and Disconnect below guarantees no forward fires after the
	// send channel closes.
	rtClient := realtime.NewClient(h.broadcaster, h.log)
	if err := rtClient.JoinClassroom(r.Context(), classroomID); err != nil {
		// No realtime updates available: the connection still accepts
		// commands and clients fall back to polling the REST surface.
		h.log.WithError(err).WithField("classroom", classroomID).Warn("realtime unavailable")
		sess.write(outboundMessage[any]{Type: "realtimeUnavailable", Payload: nil})
	} else {
		forward := func(ev domain.Event) {
			if !sess.tryWrite(outboundMessage[any]{Type: string(ev.Type), Payload: ev.Payload}) {
				h.log.WithField("event", string(ev.Type)).Warn("dropping event for slow websocket client")
			}
		}
		for _, t := range forwardedEvents {
			rtClient.On(t, forward)
		}
	}

	// Initial snapshot so late joiners see the question that is already live.
	if role != RoleProfessor {
		sess.write(outboundMessage[any]{Type: "joined", Payload: joined})
	}
	if active, ok := h.service.ActiveQuestion(classroomID); ok {
		sess.write(outboundMessage[any]{Type: "question.active", Payload: active})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handleInbound(r, sess, classroomID, userID, role, inbound)
	}

	rtClient.Disconnect()
	close(sess.send)
	<-sess.writerDone
}

func (h *WSHandler) handleInbound(r *http.Request, sess *wsSession, classroomID, userID, role string, inbound inboundMessage) {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sess.writeError("invalid_request", "invalid answer payload")
			return
		}
		// The read loop is sequential, so a hung submission would block every
		// later command on this connection; the timeout un-sticks it.
		ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
		defer cancel()
		result, err := h.service.SubmitAnswer(ctx, classroomID, userID, payload.QuestionID, payload.OptionIndex)
		if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
			// A duplicate is success-equivalent: the desired end state
			// ("you have answered") already holds, so it flows through
			// as an answerResult rather than an error.
			h.writeServiceError(sess, err)
			return
		}
		sess.write(outboundMessage[any]{Type: "answerResult", Payload: result})

	case "createQuestion":
		if !h.requireProfessor(sess, role) {
			return
		}
		var draft domain.QuestionDraft
		if err := json.Unmarshal(inbound.Payload, &draft); err != nil {
			sess.writeError("invalid_request", "invalid question payload")
			return
		}
		question, err := h.service.CreateQuestion(r.Context(), classroomID, draft)
		if err != nil {
			h.writeServiceError(sess, err)
			return
		}
		// Full view with correct index goes only to the creating professor;
		// the broadcast everyone else sees carries the public view.
		sess.write(outboundMessage[any]{Type: "questionCreated", Payload: professorView(question)})

	case "generateQuestion":
		if !h.requireProfessor(sess, role) {
			return
		}
		var payload topicPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sess.writeError("invalid_request", "invalid topic payload")
			return
		}
		draft := h.generator.Generate(r.Context(), payload.Topic)
		sess.write(outboundMessage[any]{Type: "questionDraft", Payload: draft})

	case "closeQuestion":
		if !h.requireProfessor(sess, role) {
			return
		}
		err := h.service.CloseQuestion(r.Context(), classroomID)
		if err != nil && !errors.Is(err, domain.ErrNoActiveQuestion) {
			h.writeServiceError(sess, err)
		}
		// No active question is a benign no-op; the closed event reaches
		// this professor through the channel like everyone else.

	case "spin":
		if !h.requireProfessor(sess, role) {
			return
		}
		winner, err := h.service.Spin(r.Context(), classroomID, func(participantID string) {
			sess.tryWrite(outboundMessage[any]{Type: "roulette.tick", Payload: tickPayload{ParticipantID: participantID}})
		})
		if err != nil {
			h.writeServiceError(sess, err)
			return
		}
		sess.write(outboundMessage[any]{Type: "spinResult", Payload: winner})

	case "verdict":
		if !h.requireProfessor(sess, role) {
			return
		}
		var payload verdictPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sess.writeError("invalid_request", "invalid verdict payload")
			return
		}
		participant, err := h.service.ApplyVerdict(r.Context(), classroomID, payload.StudentID, domain.Verdict(payload.Verdict))
		if err != nil {
			h.writeServiceError(sess, err)
			return
		}
		sess.write(outboundMessage[any]{Type: "verdictApplied", Payload: participant})

	default:
		sess.writeError("unsupported", "unsupported message type")
	}
}

func (h *WSHandler) requireProfessor(sess *wsSession, role string) bool {
	if role != RoleProfessor {
		sess.writeError("forbidden", "professor role required")
		return false
	}
	return true
}

func (h *WSHandler) writeServiceError(sess *wsSession, err error) {
	_, code := mapError(err)
	sess.writeError(code, err.Error())
}

func (s *wsSession) writeError(code, message string) {
	s.write(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: code, Message: message}})
}
