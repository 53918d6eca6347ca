package memory

import (
	"sync"

	"classquest-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.ClassroomSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.ClassroomSession),
	}
}

func (s *SessionStore) GetOrCreate(classroomID string) *app.ClassroomSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[classroomID]; ok {
		return session
	}
	session := app.NewSession(classroomID)
	s.sessions[classroomID] = session
	return session
}

func (s *SessionStore) Get(classroomID string) (*app.ClassroomSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[classroomID]
	return session, ok
}

func (s *SessionStore) DeleteIfEmpty(classroomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[classroomID]
	if !ok {
		return
	}
	if session.IsEmpty() {
		delete(s.sessions, classroomID)
	}
}
