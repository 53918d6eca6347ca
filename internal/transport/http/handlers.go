package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"classquest-service/internal/ai"
	"classquest-service/internal/app"
	"classquest-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// SessionHandler exposes the REST surface of the session coordinator. The
// GET endpoints double as the polling fallback for clients whose realtime
// subscription is unavailable.
type SessionHandler struct {
	service   *app.SessionService
	generator *ai.Generator
	log       *logrus.Entry
}

func NewSessionHandler(service *app.SessionService, generator *ai.Generator, log *logrus.Entry) *SessionHandler {
	return &SessionHandler{service: service, generator: generator, log: log}
}

// submitTimeout bounds one answer submission round trip so a hung answer
// store releases the submission guard instead of wedging the client forever.
const submitTimeout = 10 * time.Second

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// professorQuestion is the professor-side view, correct index included.
type professorQuestion struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Options      []string  `json:"options"`
	CorrectIndex int       `json:"correctIndex"`
	CreatedAt    time.Time `json:"createdAt"`
}

func professorView(q domain.Question) professorQuestion {
	return professorQuestion{
		ID:           q.ID,
		Text:         q.Text,
		Options:      q.Options,
		CorrectIndex: q.CorrectIndex,
		CreatedAt:    q.CreatedAt,
	}
}

type joinRequest struct {
	Name string `json:"name"`
}

type answerRequest struct {
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"optionIndex"`
}

type generateRequest struct {
	Topic string `json:"topic"`
}

type verdictRequest struct {
	StudentID string `json:"studentId"`
	Verdict   string `json:"verdict"`
}

func (h *SessionHandler) JoinClassroom(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	participant, err := h.service.Join(r.Context(), chi.URLParam(r, "classroomID"), UserID(r.Context()), req.Name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participant)
}

func (h *SessionHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := h.service.Roster(chi.URLParam(r, "classroomID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (h *SessionHandler) GetActiveQuestion(w http.ResponseWriter, r *http.Request) {
	question, ok := h.service.ActiveQuestion(chi.URLParam(r, "classroomID"))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *SessionHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var draft domain.QuestionDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	question, err := h.service.CreateQuestion(r.Context(), chi.URLParam(r, "classroomID"), draft)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, professorView(question))
}

func (h *SessionHandler) GenerateQuestion(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	writeJSON(w, http.StatusOK, h.generator.Generate(r.Context(), req.Topic))
}

func (h *SessionHandler) CloseQuestion(w http.ResponseWriter, r *http.Request) {
	err := h.service.CloseQuestion(r.Context(), chi.URLParam(r, "classroomID"))
	if err != nil && !errors.Is(err, domain.ErrNoActiveQuestion) {
		h.writeServiceError(w, err)
		return
	}
	// Closing with no active question is a benign no-op.
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()
	result, err := h.service.SubmitAnswer(ctx, chi.URLParam(r, "classroomID"), UserID(r.Context()), req.QuestionID, req.OptionIndex)
	if errors.Is(err, domain.ErrAlreadyAnswered) {
		// Stable machine code: clients treat this as confirmation the server
		// already holds their answer, never as a hard failure.
		writeJSON(w, http.StatusConflict, errorResponse{Code: "duplicate_answer", Message: result.Message})
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) Spin(w http.ResponseWriter, r *http.Request) {
	winner, err := h.service.Spin(r.Context(), chi.URLParam(r, "classroomID"), nil)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, winner)
}

func (h *SessionHandler) ApplyVerdict(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}
	participant, err := h.service.ApplyVerdict(r.Context(), chi.URLParam(r, "classroomID"), req.StudentID, domain.Verdict(req.Verdict))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participant)
}

func (h *SessionHandler) writeServiceError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	writeError(w, status, code, err.Error())
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return http.StatusConflict, "duplicate_answer"
	case errors.Is(err, domain.ErrQuestionActive):
		return http.StatusConflict, "question_active"
	case errors.Is(err, domain.ErrSpinInProgress):
		return http.StatusConflict, "spin_in_progress"
	case errors.Is(err, domain.ErrInvalidQuestion):
		return http.StatusBadRequest, "invalid_question"
	case errors.Is(err, domain.ErrOptionOutOfRange):
		return http.StatusBadRequest, "option_out_of_range"
	case errors.Is(err, domain.ErrInvalidVerdict):
		return http.StatusBadRequest, "invalid_verdict"
	case errors.Is(err, domain.ErrEmptyRoster):
		return http.StatusBadRequest, "empty_roster"
	case errors.Is(err, domain.ErrClassroomNotFound):
		return http.StatusNotFound, "classroom_not_found"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrNoActiveQuestion):
		return http.StatusNotFound, "no_active_question"
	case errors.Is(err, domain.ErrParticipantNotFound):
		return http.StatusNotFound, "participant_not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
