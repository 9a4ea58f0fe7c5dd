package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
)

// Question is a full question definition as held by the backend. The
// client never sees CorrectAnswer; it exists here for the stub server
// and seeding tools.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	QuestionText  string          `json:"questionText"`
	QuestionType  QuestionType    `json:"questionType"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer string          `json:"correctAnswer,omitempty"`
	Marks         float64         `json:"marks"`
	OrderNum      int             `json:"orderNum"`
}

// Exam is an exam definition as held by the backend.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"durationMinutes"`
	MaxAttempts     int        `json:"maxAttempts"`
	OpensAt         *time.Time `json:"opensAt,omitempty"`
	ClosesAt        *time.Time `json:"closesAt,omitempty"`
	Questions       []Question `json:"questions"`
}

// Open reports whether the exam accepts new attempts at t.
func (e *Exam) Open(t time.Time) bool {
	if e.OpensAt != nil && t.Before(*e.OpensAt) {
		return false
	}
	if e.ClosesAt != nil && t.After(*e.ClosesAt) {
		return false
	}
	return true
}

// TotalMarks sums the marks of all questions.
func (e *Exam) TotalMarks() float64 {
	var total float64
	for _, q := range e.Questions {
		total += q.Marks
	}
	return total
}
