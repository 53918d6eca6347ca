package app

import (
	"testing"
	"time"

	"classquest-service/internal/domain"
)

func TestSessionRosterOrdering(t *testing.T) {
	s := NewSession("classroom-1")
	s.join(domain.NewParticipant("s3", "Cleo"))
	s.join(domain.NewParticipant("s1", "Alice"))
	s.join(domain.NewParticipant("s2", "Bob"))
	s.join(domain.NewParticipant("s4", "Bob"))

	roster := s.roster()
	want := []string{"s1", "s2", "s4", "s3"}
	if len(roster) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(roster))
	}
	for i, id := range want {
		if roster[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, roster[i].ID)
		}
	}
}

func TestSessionRejoinRefreshesName(t *testing.T) {
	s := NewSession("classroom-1")
	first := s.join(domain.NewParticipant("s1", "Alice"))
	if first.Name != "Alice" {
		t.Fatalf("unexpected name %q", first.Name)
	}

	renamed := domain.NewParticipant("s1", "Alicia")
	second := s.join(renamed)
	if second.Name != "Alicia" {
		t.Fatalf("rejoin must refresh the display name, got %q", second.Name)
	}
	if len(s.roster()) != 1 {
		t.Fatalf("rejoin must not duplicate the entry")
	}
}

func TestSessionLeaveClearsSelection(t *testing.T) {
	s := NewSession("classroom-1")
	s.join(domain.NewParticipant("s1", "Alice"))
	s.beginSpin()
	s.endSpin("s1")

	if selected, _ := s.Selection(); selected != "s1" {
		t.Fatalf("expected s1 selected, got %q", selected)
	}
	s.leave("s1")
	if selected, _ := s.Selection(); selected != "" {
		t.Fatalf("selection must clear when the selected participant leaves")
	}
	if !s.IsEmpty() {
		t.Fatalf("expected empty session")
	}
}

func TestSessionActiveQuestionLifecycle(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	s := NewSessionWithClock("classroom-1", func() time.Time { return now })
	s.join(domain.NewParticipant("s1", "Alice"))

	if _, active := s.activeQuestion(); active {
		t.Fatalf("new session must have no active question")
	}
	if _, had := s.clearActive(); had {
		t.Fatalf("clearing an empty session must report no question")
	}

	s.setActive(domain.Question{ID: "q1", Text: "2+2?", Options: []string{"3", "4"}, CorrectIndex: 1})
	if !s.markAnswered("s1") {
		t.Fatalf("first answer must be accepted")
	}
	if s.markAnswered("s1") {
		t.Fatalf("second answer must be a duplicate")
	}

	// Replacing the question resets the answered set.
	s.setActive(domain.Question{ID: "q2", Text: "3+3?", Options: []string{"5", "6"}, CorrectIndex: 1})
	if !s.markAnswered("s1") {
		t.Fatalf("answered set must reset with a new question")
	}

	id, had := s.clearActive()
	if !had || id != "q2" {
		t.Fatalf("expected to clear q2, got %q had=%v", id, had)
	}
}

func TestSessionSpinFlag(t *testing.T) {
	s := NewSession("classroom-1")
	if !s.beginSpin() {
		t.Fatalf("first beginSpin must succeed")
	}
	if s.beginSpin() {
		t.Fatalf("overlapping beginSpin must be refused")
	}
	s.endSpin("s1")
	if s.isSpinning() {
		t.Fatalf("endSpin must clear the flag")
	}
	if !s.beginSpin() {
		t.Fatalf("spin must be possible again after settle")
	}
}
