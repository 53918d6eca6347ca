package picker

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"classquest-service/internal/domain"
)

func TestSpinEmptyRoster(t *testing.T) {
	r := New(time.Millisecond)
	if _, err := r.Spin(context.Background(), nil, nil); !errors.Is(err, domain.ErrEmptyRoster) {
		t.Fatalf("expected ErrEmptyRoster, got %v", err)
	}
}

func TestSpinLandsOnObservedPosition(t *testing.T) {
	r := NewWithRand(time.Microsecond, rand.New(rand.NewSource(1)))
	roster := []string{"a", "b", "c", "d"}

	var ticks []string
	winner, err := r.Spin(context.Background(), roster, func(id string) {
		ticks = append(ticks, id)
	})
	if err != nil {
		t.Fatalf("spin: %v", err)
	}
	if len(ticks) < len(roster)*3 {
		t.Fatalf("expected at least %d ticks, got %d", len(roster)*3, len(ticks))
	}
	if ticks[len(ticks)-1] != winner {
		t.Fatalf("winner %q must be the last observed position %q", winner, ticks[len(ticks)-1])
	}
}

func TestSpinCyclesRosterInOrder(t *testing.T) {
	r := NewWithRand(time.Microsecond, rand.New(rand.NewSource(7)))
	roster := []string{"a", "b", "c"}

	var ticks []string
	if _, err := r.Spin(context.Background(), roster, func(id string) {
		ticks = append(ticks, id)
	}); err != nil {
		t.Fatalf("spin: %v", err)
	}
	for i, id := range ticks {
		if id != roster[i%len(roster)] {
			t.Fatalf("tick %d: expected %q, got %q", i, roster[i%len(roster)], id)
		}
	}
}

func TestSpinCoversWholeRosterOverManySpins(t *testing.T) {
	r := NewWithRand(time.Microsecond, rand.New(rand.NewSource(42)))
	roster := []string{"a", "b", "c", "d", "e"}

	seen := make(map[string]int)
	for i := 0; i < 100; i++ {
		winner, err := r.Spin(context.Background(), roster, nil)
		if err != nil {
			t.Fatalf("spin %d: %v", i, err)
		}
		seen[winner]++
	}
	for _, id := range roster {
		if seen[id] == 0 {
			t.Fatalf("participant %q never selected in 100 spins: %v", id, seen)
		}
	}
}

func TestConcurrentSpinsShareOneInstance(t *testing.T) {
	r := NewWithRand(time.Microsecond, rand.New(rand.NewSource(1)))
	rosters := [][]string{
		{"a1", "a2", "a3"},
		{"b1", "b2"},
		{"c1", "c2", "c3", "c4"},
	}

	var wg sync.WaitGroup
	winners := make([]string, len(rosters))
	errs := make([]error, len(rosters))
	for i, roster := range rosters {
		wg.Add(1)
		go func(i int, roster []string) {
			defer wg.Done()
			winners[i], errs[i] = r.Spin(context.Background(), roster, nil)
		}(i, roster)
	}
	wg.Wait()

	for i, roster := range rosters {
		if errs[i] != nil {
			t.Fatalf("spin %d: %v", i, errs[i])
		}
		found := false
		for _, id := range roster {
			if id == winners[i] {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("spin %d: winner %q not in its roster %v", i, winners[i], roster)
		}
	}
}

func TestSpinHonorsCancellation(t *testing.T) {
	r := New(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := r.Spin(ctx, []string{"a", "b"}, nil)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("spin did not stop on cancellation")
	}
}
