package redis

import (
	"context"
	"sync"
	"time"

	"classquest-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - It still keeps a local in-memory map of sessions: session state is
//     node-local, while cross-node event delivery goes through the pub/sub
//     Broadcaster in this package.
//   - Redis is used to mark session liveness so operators can see which
//     classrooms are live across the fleet.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.ClassroomSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(classroomID), "1", s.ttl).Err()
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
		_ = s.client.Del(context.Background(), s.key(classroomID)).Err()
	}
}

func (s *SessionStore) key(classroomID string) string {
	return "classroom:session:" + classroomID
}
