package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states as reported by the backend.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
	AttemptStatusGraded     AttemptStatus = "GRADED"
)

// Attempt represents one candidate's try at one exam. The backend assigns
// the ID (the "resultId" in endpoint paths) when the attempt starts.
type Attempt struct {
	ID            uuid.UUID     `json:"attemptId"`
	ExamID        uuid.UUID     `json:"examId"`
	AttemptNumber int           `json:"attemptNumber"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"startedAt"`
	DeadlineAt    time.Time     `json:"deadlineAt"`
	SubmittedAt   *time.Time    `json:"submittedAt,omitempty"`
}

// StartAttemptRequest is the payload for starting an attempt.
type StartAttemptRequest struct {
	ExamID uuid.UUID `json:"examId" binding:"required"`
}

// QuestionPlaceholder identifies one question within an attempt. The
// backend returns these in presentation order; no question content or
// correct answers travel with them.
type QuestionPlaceholder struct {
	QuestionID uuid.UUID `json:"questionId"`
}

// StartAttemptResponse is the backend's answer to a successful start call.
type StartAttemptResponse struct {
	AttemptID       uuid.UUID             `json:"attemptId"`
	ExamID          uuid.UUID             `json:"examId"`
	AttemptNumber   int                   `json:"attemptNumber"`
	DurationMinutes int                   `json:"durationMinutes"`
	StartedAt       time.Time             `json:"startedAt"`
	Questions       []QuestionPlaceholder `json:"questions"`
}

// Deadline computes the hard stop for the attempt.
func (r *StartAttemptResponse) Deadline() time.Time {
	return r.StartedAt.Add(time.Duration(r.DurationMinutes) * time.Minute)
}
