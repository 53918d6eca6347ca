package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"classquest-service/internal/domain"
)

type countingLoader struct {
	inner RosterLoader
	loads atomic.Int64
}

func (l *countingLoader) LoadClassroom(ctx context.Context, classroomID string) (domain.Classroom, []domain.Participant, error) {
	l.loads.Add(1)
	return l.inner.LoadClassroom(ctx, classroomID)
}

func staticLoader() RosterLoader {
	return NewStaticRosterLoader(
		map[string]domain.Classroom{
			"c1": {ID: "c1", Name: "Algebra", JoinCode: "ALG"},
		},
		map[string][]domain.Participant{
			"c1": {domain.NewParticipant("s1", "Alice")},
		},
	)
}

func TestRosterRepositoryCachesWithinTTL(t *testing.T) {
	loader := &countingLoader{inner: staticLoader()}
	repo := NewRosterRepository(loader, time.Minute)

	for i := 0; i < 5; i++ {
		classroom, roster, err := repo.GetClassroom(context.Background(), "c1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if classroom.ID != "c1" || len(roster) != 1 {
			t.Fatalf("unexpected result: %+v %+v", classroom, roster)
		}
	}
	if got := loader.loads.Load(); got != 1 {
		t.Fatalf("expected a single backing load, got %d", got)
	}
}

func TestRosterRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{inner: staticLoader()}
	repo := NewRosterRepository(loader, time.Minute)

	now := time.Now()
	repo.clock = func() time.Time { return now }

	if _, _, err := repo.GetClassroom(context.Background(), "c1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	// Jitter adds at most 10%, so two TTLs later the entry is stale.
	now = now.Add(2 * time.Minute)
	if _, _, err := repo.GetClassroom(context.Background(), "c1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if got := loader.loads.Load(); got != 2 {
		t.Fatalf("expected reload after expiry, got %d loads", got)
	}
}

func TestRosterRepositoryCollapsesConcurrentLoads(t *testing.T) {
	loader := &countingLoader{inner: staticLoader()}
	repo := NewRosterRepository(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := repo.GetClassroom(context.Background(), "c1"); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := loader.loads.Load(); got != 1 {
		t.Fatalf("expected concurrent gets to share one load, got %d", got)
	}
}

func TestRosterRepositoryUnknownClassroom(t *testing.T) {
	repo := NewRosterRepository(staticLoader(), time.Minute)
	_, _, err := repo.GetClassroom(context.Background(), "missing")
	if !errors.Is(err, domain.ErrClassroomNotFound) {
		t.Fatalf("expected ErrClassroomNotFound, got %v", err)
	}
}
