package ai

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"classquest-service/internal/domain"
	"github.com/sirupsen/logrus"
)

func testLogger(t *testing.T) *logrus.Entry {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("test", t.Name())
}

func TestGenerateFromUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"text": "Which planet is closest to the sun?",
			"options": ["Venus", "Mercury", "Mars", "Earth"],
			"correctIndex": 1,
			"explanation": "Mercury orbits closest."
		}`))
	}))
	defer server.Close()

	g := NewGenerator(server.URL, "", testLogger(t))
	draft := g.Generate(context.Background(), "astronomy")

	if draft.Text != "Which planet is closest to the sun?" {
		t.Fatalf("unexpected text %q", draft.Text)
	}
	if len(draft.Options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(draft.Options))
	}
	if draft.Options[draft.CorrectIndex] != "Mercury" {
		t.Fatalf("correct index must track the correct option after shuffling, got %q", draft.Options[draft.CorrectIndex])
	}
}

func TestGenerateFallsBackOnMalformedUpstream(t *testing.T) {
	cases := map[string]string{
		"not json":           `this is not json`,
		"empty text":         `{"text":"","options":["a","b","c","d"],"correctIndex":0}`,
		"too few options":    `{"text":"q","options":["a","b"],"correctIndex":0}`,
		"blank option":       `{"text":"q","options":["a","b","c","  "],"correctIndex":0}`,
		"index out of range": `{"text":"q","options":["a","b","c","d"],"correctIndex":7}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			g := NewGenerator(server.URL, "", testLogger(t))
			draft := g.Generate(context.Background(), "")
			if draft.Options[draft.CorrectIndex] != "4" {
				t.Fatalf("expected fallback with correct option 4, got %+v", draft)
			}
		})
	}
}

func TestGenerateFallsBackOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	g := NewGenerator(server.URL, "", testLogger(t))
	draft := g.Generate(context.Background(), "history")
	if draft.Options[draft.CorrectIndex] != "4" {
		t.Fatalf("expected fallback, got %+v", draft)
	}
}

func TestGenerateWithoutEndpoint(t *testing.T) {
	g := NewGenerator("", "", testLogger(t))
	draft := g.Generate(context.Background(), "")
	if len(draft.Options) != 4 || draft.Options[draft.CorrectIndex] != "4" {
		t.Fatalf("expected fallback question, got %+v", draft)
	}
}

func TestShufflePreservesCorrectOption(t *testing.T) {
	base := domain.QuestionDraft{
		Text:         "Pick the even number",
		Options:      []string{"1", "8", "5", "7"},
		CorrectIndex: 1,
	}
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		shuffled := Shuffle(base, rnd)
		if shuffled.Options[shuffled.CorrectIndex] != "8" {
			t.Fatalf("iteration %d: correct index drifted, got %+v", i, shuffled)
		}
		if len(shuffled.Options) != len(base.Options) {
			t.Fatalf("iteration %d: option count changed", i)
		}
	}
}

func TestShuffleActuallyPermutes(t *testing.T) {
	base := domain.QuestionDraft{
		Text:         "q",
		Options:      []string{"a", "b", "c", "d"},
		CorrectIndex: 0,
	}
	rnd := rand.New(rand.NewSource(9))
	moved := false
	for i := 0; i < 20 && !moved; i++ {
		shuffled := Shuffle(base, rnd)
		for j, opt := range shuffled.Options {
			if opt != base.Options[j] {
				moved = true
				break
			}
		}
	}
	if !moved {
		t.Fatalf("20 shuffles never changed the option order")
	}
}

func TestShuffleDegenerateInput(t *testing.T) {
	d := domain.QuestionDraft{Text: "q", Options: nil, CorrectIndex: 0}
	if got := Shuffle(d, rand.New(rand.NewSource(1))); len(got.Options) != 0 {
		t.Fatalf("expected no-op on empty options, got %+v", got)
	}
}
