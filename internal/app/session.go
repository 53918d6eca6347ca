package app

import (
	"sort"
	"sync"
	"time"

	"classquest-service/internal/domain"
)

// ClassroomSession is the per-classroom authoritative state: the roster, the
// at-most-one active question, which students already answered it, and the
// roulette selection. All cross-client effects flow through the service and
// the broadcast channel; the session itself is plain guarded state.
type ClassroomSession struct {
	id  string
	now func() time.Time

	mu           sync.RWMutex
	participants map[string]*domain.Participant
	active       *domain.Question
	answered     map[string]struct{}
	selectedID   string
	spinning     bool
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id string) *ClassroomSession {
	return NewSessionWithClock(id, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id string, now func() time.Time) *ClassroomSession {
	return &ClassroomSession{
		id:           id,
		now:          now,
		participants: make(map[string]*domain.Participant),
		answered:     make(map[string]struct{}),
	}
}

func (s *ClassroomSession) join(p domain.Participant) domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.participants[p.ID]; ok {
		existing.Name = p.Name
		return *existing
	}
	stored := p
	s.participants[p.ID] = &stored
	return stored
}

func (s *ClassroomSession) leave(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, userID)
	if s.selectedID == userID {
		s.selectedID = ""
	}
}

func (s *ClassroomSession) isEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants) == 0
}

// IsEmpty reports whether the session has no participants.
func (s *ClassroomSession) IsEmpty() bool {
	return s.isEmpty()
}

func (s *ClassroomSession) participant(userID string) (domain.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[userID]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

func (s *ClassroomSession) setParticipant(p domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := p
	s.participants[p.ID] = &stored
}

// roster returns a stable-ordered snapshot (name, then id) so roulette cycles
// and API listings are deterministic for a given membership.
func (s *ClassroomSession) roster() []domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		entries = append(entries, *p)
	}
	sortParticipants(entries)
	return entries
}

// setActive replaces the active question wholesale and resets the answered
// set. Replace-not-merge keeps the state correct under reordered or missed
// events: the latest received question is always authoritative.
func (s *ClassroomSession) setActive(q domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := q
	s.active = &stored
	s.answered = make(map[string]struct{})
}

// clearActive drops the active question; reports whether one was live and its id.
func (s *ClassroomSession) clearActive() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", false
	}
	id := s.active.ID
	s.active = nil
	s.answered = make(map[string]struct{})
	return id, true
}

func (s *ClassroomSession) activeQuestion() (domain.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return domain.Question{}, false
	}
	return *s.active, true
}

// markAnswered records the student against the active question; false means a
// duplicate. This mirrors the authoritative AnswerStore so a single-node
// deployment rejects duplicates without a round trip.
func (s *ClassroomSession) markAnswered(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.answered[userID]; dup {
		return false
	}
	s.answered[userID] = struct{}{}
	return true
}

// clearAnswered releases the local mark so a retry after a transient store
// failure is not treated as a duplicate.
func (s *ClassroomSession) clearAnswered(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answered, userID)
}

func (s *ClassroomSession) beginSpin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spinning {
		return false
	}
	s.spinning = true
	s.selectedID = ""
	return true
}

func (s *ClassroomSession) endSpin(selectedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spinning = false
	s.selectedID = selectedID
}

func (s *ClassroomSession) isSpinning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spinning
}

func (s *ClassroomSession) clearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = ""
}

// Selection returns the current roulette selection state.
func (s *ClassroomSession) Selection() (selectedID string, spinning bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID, s.spinning
}

func sortParticipants(entries []domain.Participant) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID < entries[j].ID
	})
}
