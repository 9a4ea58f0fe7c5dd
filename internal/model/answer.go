package model

import "github.com/google/uuid"

// AnswerRecord is the candidate's response to one question within an
// attempt. SelectedAnswer is opaque to the client — text, an option
// label, or a boolean-as-string depending on question type. IsCorrect
// is populated by grading and never set client-side.
type AnswerRecord struct {
	QuestionID       uuid.UUID `json:"questionId"`
	SelectedAnswer   string    `json:"selectedAnswer"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
	IsCorrect        *bool     `json:"isCorrect,omitempty"`
}

// SubmitAnswerRequest is the payload for recording one answer.
// Re-submitting the same questionId overwrites the prior value.
type SubmitAnswerRequest struct {
	QuestionID     uuid.UUID `json:"questionId" binding:"required"`
	SelectedAnswer string    `json:"selectedAnswer"`
	TimeSpent      int       `json:"timeSpent" binding:"min=0"`
}
