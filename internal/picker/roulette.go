package picker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"classquest-service/internal/domain"
)

// DefaultTickInterval is a UX parameter, not a correctness constraint.
const DefaultTickInterval = 110 * time.Millisecond

// Roulette picks one participant from a roster by cycling a cursor through it
// a randomized number of steps. The step count is n*3 plus a random partial
// cycle, so every spin makes at least three full passes before settling and
// the landing position is pseudo-uniform over the roster.
//
// A Roulette carries no per-spin state and one instance serves any number of
// concurrent spins; overlap within a classroom is the session's invariant,
// guarded there.
type Roulette struct {
	interval time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(interval time.Duration) *Roulette {
	return NewWithRand(interval, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand injects the random source for deterministic tests.
func NewWithRand(interval time.Duration, rnd *rand.Rand) *Roulette {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Roulette{interval: interval, rnd: rnd}
}

// Spin advances through roster one entry per tick and returns the id visible
// at the final tick. onTick, when non-nil, observes every intermediate
// position. An empty roster is refused up front; a spin performs no I/O and
// cannot fail otherwise, short of caller cancellation.
func (r *Roulette) Spin(ctx context.Context, roster []string, onTick func(id string)) (string, error) {
	n := len(roster)
	if n == 0 {
		return "", domain.ErrEmptyRoster
	}

	r.mu.Lock()
	steps := n*3 + r.rnd.Intn(n)
	r.mu.Unlock()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	idx := -1
	for step := 0; step < steps; step++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		idx = (idx + 1) % n
		if onTick != nil {
			onTick(roster[idx])
		}
	}
	return roster[idx], nil
}
