package model

import (
	"time"

	"github.com/google/uuid"
)

// Result is the full graded (or pending-grade) outcome of an attempt,
// including the complete per-question answer set.
type Result struct {
	AttemptID     uuid.UUID      `json:"attemptId"`
	ExamID        uuid.UUID      `json:"examId"`
	AttemptNumber int            `json:"attemptNumber"`
	Status        AttemptStatus  `json:"status"`
	Percentage    float64        `json:"percentage"`
	Grade         string         `json:"grade"`
	ObtainedMarks float64        `json:"obtainedMarks"`
	TotalMarks    float64        `json:"totalMarks"`
	SubmittedAt   *time.Time     `json:"submittedAt,omitempty"`
	Answers       []AnswerRecord `json:"answers"`
}

// ResultSummary is one row of the candidate's own results listing.
type ResultSummary struct {
	AttemptID     uuid.UUID     `json:"attemptId"`
	ExamID        uuid.UUID     `json:"examId"`
	ExamTitle     string        `json:"examTitle"`
	AttemptNumber int           `json:"attemptNumber"`
	Status        AttemptStatus `json:"status"`
	Percentage    float64       `json:"percentage"`
	Grade         string        `json:"grade"`
	SubmittedAt   *time.Time    `json:"submittedAt,omitempty"`
}

// ListResultsParams are the query parameters for the results listing.
type ListResultsParams struct {
	Page    int
	PerPage int
	ExamID  *uuid.UUID
}
