package memory

import (
	"context"
	"sync"

	"classquest-service/internal/domain"
)

// GameStateStore keeps persisted participant game state in memory.
type GameStateStore struct {
	mu    sync.Mutex
	saved map[string]domain.Participant
}

func NewGameStateStore() *GameStateStore {
	return &GameStateStore{saved: make(map[string]domain.Participant)}
}

func (s *GameStateStore) SaveParticipant(_ context.Context, classroomID string, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[classroomID+"/"+p.ID] = p
	return nil
}

// Saved returns the last persisted state for a participant, for tests.
func (s *GameStateStore) Saved(classroomID, participantID string) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.saved[classroomID+"/"+participantID]
	return p, ok
}
