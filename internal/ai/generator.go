package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"classquest-service/internal/domain"
	"github.com/sirupsen/logrus"
)

const generatedOptionCount = 4

// Generator asks an upstream model endpoint for a structured multiple-choice
// question. The upstream is a black box: topic in, question out. Malformed
// output is replaced by a deterministic fallback so the create-question flow
// never hard-fails, and options are always shuffled before they leave this
// package so the upstream's positional bias is unobservable.
type Generator struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	log        *logrus.Entry

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(endpoint, apiKey string, log *logrus.Entry) *Generator {
	return &Generator{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type generateRequest struct {
	Topic string `json:"topic"`
}

type generateResponse struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// Generate returns a shuffled question draft for the topic. It never returns
// an error: any upstream failure degrades to the fallback question.
func (g *Generator) Generate(ctx context.Context, topic string) domain.QuestionDraft {
	draft, err := g.fetch(ctx, topic)
	if err != nil {
		g.log.WithError(err).WithField("topic", topic).Warn("question generation failed, using fallback")
		draft = FallbackQuestion(topic)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return Shuffle(draft, g.rnd)
}

func (g *Generator) fetch(ctx context.Context, topic string) (domain.QuestionDraft, error) {
	if g.endpoint == "" {
		return domain.QuestionDraft{}, fmt.Errorf("no generation endpoint configured")
	}

	body, err := json.Marshal(generateRequest{Topic: topic})
	if err != nil {
		return domain.QuestionDraft{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.QuestionDraft{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.QuestionDraft{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.QuestionDraft{}, fmt.Errorf("generation endpoint returned status %d", resp.StatusCode)
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.QuestionDraft{}, fmt.Errorf("decode generation response: %w", err)
	}

	draft := domain.QuestionDraft{
		Text:         strings.TrimSpace(payload.Text),
		Options:      payload.Options,
		CorrectIndex: payload.CorrectIndex,
		Explanation:  strings.TrimSpace(payload.Explanation),
	}
	if err := validateDraft(draft); err != nil {
		return domain.QuestionDraft{}, err
	}
	return draft, nil
}

func validateDraft(d domain.QuestionDraft) error {
	if d.Text == "" {
		return fmt.Errorf("generated question has empty text")
	}
	if len(d.Options) != generatedOptionCount {
		return fmt.Errorf("generated question has %d options, want %d", len(d.Options), generatedOptionCount)
	}
	for i, opt := range d.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("generated option %d is blank", i)
		}
	}
	if d.CorrectIndex < 0 || d.CorrectIndex >= len(d.Options) {
		return fmt.Errorf("generated correct index %d out of range", d.CorrectIndex)
	}
	return nil
}

// FallbackQuestion is the deterministic stand-in used when the upstream
// model's output cannot be parsed as a valid structured question.
func FallbackQuestion(topic string) domain.QuestionDraft {
	text := "What is 2 + 2?"
	if topic != "" {
		text = fmt.Sprintf("Warm-up while %q questions are unavailable: what is 2 + 2?", topic)
	}
	return domain.QuestionDraft{
		Text:         text,
		Options:      []string{"3", "4", "5", "6"},
		CorrectIndex: 1,
	}
}

// Shuffle permutes the options and recomputes the correct index so it keeps
// pointing at the same option text.
func Shuffle(d domain.QuestionDraft, rnd *rand.Rand) domain.QuestionDraft {
	if len(d.Options) == 0 || d.CorrectIndex < 0 || d.CorrectIndex >= len(d.Options) {
		return d
	}
	correctText := d.Options[d.CorrectIndex]
	options := make([]string, len(d.Options))
	copy(options, d.Options)
	rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	for i, opt := range options {
		if opt == correctText {
			d.CorrectIndex = i
			break
		}
	}
	d.Options = options
	return d
}
