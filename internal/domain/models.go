package domain

import "time"

// Classroom is the minimal classroom metadata the session layer needs.
type Classroom struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JoinCode string `json:"joinCode"`
}

// Participant is a roster entry together with its game state.
type Participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SkinCode string `json:"skinCode"`
	HP       int    `json:"hp"`
	MaxHP    int    `json:"maxHp"`
	MP       int    `json:"mp"`
	MaxMP    int    `json:"maxMp"`
	XP       int    `json:"xp"`
	Level    int    `json:"level"`
	Gold     int    `json:"gold"`
}

// NewParticipant returns a fresh roster entry with starting game state.
func NewParticipant(id, name string) Participant {
	return Participant{
		ID:    id,
		Name:  name,
		HP:    100,
		MaxHP: 100,
		MP:    50,
		MaxMP: 50,
		Level: 1,
	}
}

// Question is the session-scoped question value object. CorrectIndex stays on
// the server/professor side; students only ever see PublicView.
type Question struct {
	ID           string
	ClassroomID  string
	Text         string
	Options      []string
	CorrectIndex int
	CreatedAt    time.Time
}

// PublicQuestion is the student-visible projection of a Question.
type PublicQuestion struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Options   []string  `json:"options"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublicView strips the correct index before a question leaves the server.
func (q Question) PublicView() PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PublicQuestion{
		ID:        q.ID,
		Text:      q.Text,
		Options:   options,
		CreatedAt: q.CreatedAt,
	}
}

// QuestionDraft is professor (or AI) input before validation and id assignment.
type QuestionDraft struct {
	Text         string   `json:"text" validate:"required"`
	Options      []string `json:"options" validate:"min=2,max=4,dive,required"`
	CorrectIndex int      `json:"correctIndex" validate:"gte=0"`
	Explanation  string   `json:"explanation,omitempty"`
}

// AnswerResult summarizes the outcome of one submission attempt.
type AnswerResult struct {
	QuestionID      string `json:"questionId"`
	Correct         bool   `json:"correct"`
	AlreadyAnswered bool   `json:"alreadyAnswered"`
	Message         string `json:"message"`
}

// Verdict is the professor's ruling for a selected student.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
)

// ValidVerdict reports whether v is one of the two known verdicts.
func ValidVerdict(v Verdict) bool {
	return v == VerdictCorrect || v == VerdictIncorrect
}
