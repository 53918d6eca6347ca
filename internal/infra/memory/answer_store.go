package memory

import (
	"context"
	"sync"

	"classquest-service/internal/domain"
)

// AnswerStore enforces at-most-one answer per (question, student) in memory.
type AnswerStore struct {
	mu      sync.Mutex
	records map[string]int
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{records: make(map[string]int)}
}

func (s *AnswerStore) Record(_ context.Context, classroomID, questionID, studentID string, optionIndex int) error {
	key := classroomID + "/" + questionID + "/" + studentID
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; exists {
		return domain.ErrAlreadyAnswered
	}
	s.records[key] = optionIndex
	return nil
}
