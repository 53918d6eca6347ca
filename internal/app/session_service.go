package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"classquest-service/internal/domain"
	"classquest-service/internal/metrics"
	"classquest-service/internal/picker"
	"classquest-service/internal/realtime"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionRepository abstracts how classroom sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(classroomID string) *ClassroomSession
	Get(classroomID string) (*ClassroomSession, bool)
	DeleteIfEmpty(classroomID string)
}

// RosterRepository loads classroom metadata and roster (from cache/backing store).
type RosterRepository interface {
	GetClassroom(ctx context.Context, classroomID string) (domain.Classroom, []domain.Participant, error)
}

// AnswerStore is the authoritative at-most-one-answer guard: Record returns
// domain.ErrAlreadyAnswered when a record for (question, student) exists.
type AnswerStore interface {
	Record(ctx context.Context, classroomID, questionID, studentID string, optionIndex int) error
}

// GameStateStore persists participant game-state mutations.
type GameStateStore interface {
	SaveParticipant(ctx context.Context, classroomID string, p domain.Participant) error
}

// SessionService contains the live classroom session use cases.
type SessionService struct {
	sessions    SessionRepository
	rosters     RosterRepository
	answers     AnswerStore
	gamestate   GameStateStore
	broadcaster realtime.Broadcaster
	roulette    *picker.Roulette
	validate    *validator.Validate
	log         *logrus.Entry
	now         func() time.Time
}

func NewSessionService(
	sessions SessionRepository,
	rosters RosterRepository,
	answers AnswerStore,
	gamestate GameStateStore,
	broadcaster realtime.Broadcaster,
	roulette *picker.Roulette,
	log *logrus.Entry,
) *SessionService {
	return &SessionService{
		sessions:    sessions,
		rosters:     rosters,
		answers:     answers,
		gamestate:   gamestate,
		broadcaster: broadcaster,
		roulette:    roulette,
		validate:    validator.New(),
		log:         log,
		now:         time.Now,
	}
}

// Join registers or refreshes a participant in a classroom session. Users
// cannot join unknown classrooms; the roster load doubles as the existence
// check. The stored roster entry wins over a fresh default one.
func (s *SessionService) Join(ctx context.Context, classroomID, userID, displayName string) (domain.Participant, error) {
	_, roster, err := s.rosters.GetClassroom(ctx, classroomID)
	if err != nil {
		return domain.Participant{}, err
	}

	entry := domain.NewParticipant(userID, displayName)
	for _, p := range roster {
		if p.ID == userID {
			entry = p
			if displayName != "" {
				entry.Name = displayName
			}
			break
		}
	}

	session := s.sessions.GetOrCreate(classroomID)
	joined := session.join(entry)
	s.publish(ctx, classroomID, domain.EventUserJoined, joined)
	return joined, nil
}

// Leave removes a participant and drops the session once empty.
func (s *SessionService) Leave(ctx context.Context, classroomID, userID string) {
	session, ok := s.sessions.Get(classroomID)
	if !ok {
		return
	}
	session.leave(userID)
	s.publish(ctx, classroomID, domain.EventUserLeft, map[string]string{"id": userID})
	if session.IsEmpty() {
		s.sessions.DeleteIfEmpty(classroomID)
	}
}

// Roster returns a name-ordered snapshot of the session roster.
func (s *SessionService) Roster(classroomID string) ([]domain.Participant, error) {
	session, ok := s.sessions.Get(classroomID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.roster(), nil
}

// CreateQuestion validates the draft, makes it the active question, and
// broadcasts the student-visible view. Validation failure produces no
// broadcast. Only one question may be active at a time; the UI is expected to
// disable the action, but the invariant is defended here regardless.
func (s *SessionService) CreateQuestion(ctx context.Context, classroomID string, draft domain.QuestionDraft) (domain.Question, error) {
	if err := s.validateDraft(draft); err != nil {
		return domain.Question{}, err
	}

	session := s.sessions.GetOrCreate(classroomID)
	if _, active := session.activeQuestion(); active {
		return domain.Question{}, domain.ErrQuestionActive
	}

	q := domain.Question{
		ID:           uuid.NewString(),
		ClassroomID:  classroomID,
		Text:         strings.TrimSpace(draft.Text),
		Options:      trimmedOptions(draft.Options),
		CorrectIndex: draft.CorrectIndex,
		CreatedAt:    s.now(),
	}
	session.setActive(q)
	s.publish(ctx, classroomID, domain.EventQuestionCreated, q.PublicView())
	return q, nil
}

// CloseQuestion clears the active question and broadcasts the closed event.
// Closing when nothing is active reports ErrNoActiveQuestion; callers treat
// it as a benign no-op.
func (s *SessionService) CloseQuestion(ctx context.Context, classroomID string) error {
	session, ok := s.sessions.Get(classroomID)
	if !ok {
		return domain.ErrNoActiveQuestion
	}
	questionID, had := session.clearActive()
	if !had {
		return domain.ErrNoActiveQuestion
	}
	s.publish(ctx, classroomID, domain.EventQuestionClosed, domain.QuestionClosedPayload{QuestionID: questionID})
	return nil
}

// ActiveQuestion is the polling fallback for clients without realtime updates.
func (s *SessionService) ActiveQuestion(classroomID string) (domain.PublicQuestion, bool) {
	session, ok := s.sessions.Get(classroomID)
	if !ok {
		return domain.PublicQuestion{}, false
	}
	q, active := session.activeQuestion()
	if !active {
		return domain.PublicQuestion{}, false
	}
	return q.PublicView(), true
}

// SubmitAnswer records a student's answer with first-write-wins semantics.
// A duplicate returns the result with AlreadyAnswered set alongside
// domain.ErrAlreadyAnswered; transports map that to 409/duplicate_answer and
// clients treat it as confirmation, not failure.
func (s *SessionService) SubmitAnswer(ctx context.Context, classroomID, studentID, questionID string, optionIndex int) (domain.AnswerResult, error) {
	session, ok := s.sessions.Get(classroomID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	if _, joined := session.participant(studentID); !joined {
		return domain.AnswerResult{}, domain.ErrParticipantNotFound
	}

	active, has := session.activeQuestion()
	if !has || active.ID != questionID {
		return domain.AnswerResult{}, domain.ErrNoActiveQuestion
	}
	if optionIndex < 0 || optionIndex >= len(active.Options) {
		return domain.AnswerResult{}, domain.ErrOptionOutOfRange
	}

	// The local answered set short-circuits duplicates without a store round
	// trip; the store stays authoritative for submissions seen by other nodes.
	if !session.markAnswered(studentID) {
		metrics.Answers.WithLabelValues("duplicate").Inc()
		return duplicateResult(questionID), domain.ErrAlreadyAnswered
	}

	if err := s.answers.Record(ctx, classroomID, questionID, studentID, optionIndex); err != nil {
		if errors.Is(err, domain.ErrAlreadyAnswered) {
			metrics.Answers.WithLabelValues("duplicate").Inc()
			return duplicateResult(questionID), domain.ErrAlreadyAnswered
		}
		// Transient failure: release the local mark so a manual retry can
		// still go through.
		session.clearAnswered(studentID)
		metrics.Answers.WithLabelValues("rejected").Inc()
		return domain.AnswerResult{}, fmt.Errorf("record answer: %w", err)
	}

	correct := optionIndex == active.CorrectIndex
	message := "Incorrect, better luck next time"
	if correct {
		message = "Correct, well done!"
	}
	metrics.Answers.WithLabelValues("accepted").Inc()
	return domain.AnswerResult{
		QuestionID: questionID,
		Correct:    correct,
		Message:    message,
	}, nil
}

// Spin runs the roulette over the current roster and broadcasts the outcome.
// Overlapping spins and empty rosters are refused. onTick observes each
// intermediate cursor position (the professor-side animation feed).
func (s *SessionService) Spin(ctx context.Context, classroomID string, onTick func(participantID string)) (domain.Participant, error) {
	session, ok := s.sessions.Get(classroomID)
	if !ok {
		return domain.Participant{}, domain.ErrSessionNotFound
	}

	roster := session.roster()
	if len(roster) == 0 {
		return domain.Participant{}, domain.ErrEmptyRoster
	}
	if !session.beginSpin() {
		return domain.Participant{}, domain.ErrSpinInProgress
	}

	ids := make([]string, len(roster))
	for i, p := range roster {
		ids[i] = p.ID
	}

	metrics.Spins.Inc()
	winnerID, err := s.roulette.Spin(ctx, ids, onTick)
	if err != nil {
		session.endSpin("")
		return domain.Participant{}, err
	}
	session.endSpin(winnerID)

	winner, found := session.participant(winnerID)
	if !found {
		// Picked participant left mid-spin; settle with nobody selected.
		session.clearSelection()
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	s.publish(ctx, classroomID, domain.EventRouletteSettled, domain.RouletteSettledPayload{
		ParticipantID:   winner.ID,
		ParticipantName: winner.Name,
	})
	return winner, nil
}

// ApplyVerdict translates a professor's verdict into exactly one persisted
// game-state mutation. The participant snapshot is applied optimistically and
// restored if persistence fails; either way the roulette selection focus is
// cleared so the next pick starts clean.
func (s *SessionService) ApplyVerdict(ctx context.Context, classroomID, studentID string, verdict domain.Verdict) (domain.Participant, error) {
	if !domain.ValidVerdict(verdict) {
		return domain.Participant{}, domain.ErrInvalidVerdict
	}
	session, ok := s.sessions.Get(classroomID)
	if !ok {
		return domain.Participant{}, domain.ErrSessionNotFound
	}
	if session.isSpinning() {
		return domain.Participant{}, domain.ErrSpinInProgress
	}
	defer session.clearSelection()

	snapshot, found := session.participant(studentID)
	if !found {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}

	updated := domain.ApplyDelta(snapshot, domain.RuleFor(verdict))
	session.setParticipant(updated)

	if err := s.gamestate.SaveParticipant(ctx, classroomID, updated); err != nil {
		session.setParticipant(snapshot)
		metrics.Verdicts.WithLabelValues("rolled_back").Inc()
		return domain.Participant{}, fmt.Errorf("persist verdict: %w", err)
	}

	metrics.Verdicts.WithLabelValues("applied").Inc()
	s.publish(ctx, classroomID, domain.EventGameStateUpdated, updated)
	return updated, nil
}

func duplicateResult(questionID string) domain.AnswerResult {
	return domain.AnswerResult{
		QuestionID:      questionID,
		AlreadyAnswered: true,
		Message:         "answer already recorded",
	}
}

func (s *SessionService) validateDraft(draft domain.QuestionDraft) error {
	if err := s.validate.Struct(draft); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuestion, err)
	}
	if strings.TrimSpace(draft.Text) == "" {
		return fmt.Errorf("%w: text is blank", domain.ErrInvalidQuestion)
	}
	for i, opt := range draft.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("%w: option %d is blank", domain.ErrInvalidQuestion, i)
		}
	}
	if draft.CorrectIndex >= len(draft.Options) {
		return fmt.Errorf("%w: correct index %d out of range", domain.ErrInvalidQuestion, draft.CorrectIndex)
	}
	return nil
}

// publish broadcasts an event on the classroom channel. Delivery is
// best-effort: listeners have the polling fallback, so a failed publish is
// logged and counted but does not fail the originating operation.
func (s *SessionService) publish(ctx context.Context, classroomID string, t domain.EventType, payload any) {
	ev, err := domain.NewEvent(t, classroomID, payload)
	if err != nil {
		s.log.WithError(err).WithField("event", string(t)).Error("build event")
		return
	}
	if err := s.broadcaster.Publish(ctx, classroomID, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":     string(t),
			"classroom": classroomID,
		}).Warn("broadcast failed")
		return
	}
	metrics.EventsPublished.WithLabelValues(string(t)).Inc()
}

func trimmedOptions(options []string) []string {
	out := make([]string, len(options))
	for i, opt := range options {
		out[i] = strings.TrimSpace(opt)
	}
	return out
}
