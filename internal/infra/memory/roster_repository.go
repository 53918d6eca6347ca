package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"classquest-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// RosterLoader fetches classroom metadata and roster from a backing store.
type RosterLoader interface {
	LoadClassroom(ctx context.Context, classroomID string) (domain.Classroom, []domain.Participant, error)
}

// RosterRepository caches rosters with TTL to avoid repeated DB hits.
type RosterRepository struct {
	loader RosterLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedRoster
}

type cachedRoster struct {
	classroom    domain.Classroom
	participants []domain.Participant
	expiresAt    time.Time
}

func NewRosterRepository(loader RosterLoader, ttl time.Duration) *RosterRepository {
	return &RosterRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedRoster),
	}
}

func (r *RosterRepository) GetClassroom(ctx context.Context, classroomID string) (domain.Classroom, []domain.Participant, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[classroomID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.classroom, entry.participants, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(classroomID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[classroomID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry, nil
		}
		r.mu.RUnlock()

		classroom, participants, err := r.loader.LoadClassroom(ctx, classroomID)
		if err != nil {
			return cachedRoster{}, err
		}

		entry := cachedRoster{
			classroom:    classroom,
			participants: participants,
			expiresAt:    now.Add(r.ttlWithJitter()),
		}
		r.mu.Lock()
		r.cache[classroomID] = entry
		r.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return domain.Classroom{}, nil, err
	}
	entry := result.(cachedRoster)
	return entry.classroom, entry.participants, nil
}

// StaticRosterLoader is a simple loader backed by in-memory maps (useful for tests/demos).
type StaticRosterLoader struct {
	classrooms map[string]domain.Classroom
	rosters    map[string][]domain.Participant
}

func NewStaticRosterLoader(classrooms map[string]domain.Classroom, rosters map[string][]domain.Participant) *StaticRosterLoader {
	return &StaticRosterLoader{classrooms: classrooms, rosters: rosters}
}

func (l *StaticRosterLoader) LoadClassroom(_ context.Context, classroomID string) (domain.Classroom, []domain.Participant, error) {
	classroom, ok := l.classrooms[classroomID]
	if !ok {
		return domain.Classroom{}, nil, domain.ErrClassroomNotFound
	}
	return classroom, l.rosters[classroomID], nil
}

func (r *RosterRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
