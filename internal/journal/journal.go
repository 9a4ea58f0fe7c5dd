// Package journal provides reload-survivable local persistence of an
// in-progress attempt's answer buffer. A crashed or restarted client
// process resumes the attempt from the journal instead of losing the
// candidate's answers. Two backends exist: a SQLite file (default) and
// Redis for kiosk deployments with a shared recovery server.
package journal

import (
	"context"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-client/internal/model"
)

// AnswerState is one journaled answer plus its backend-ack flag.
type AnswerState struct {
	Record model.AnswerRecord
	Synced bool
}

// Journal persists the active attempt and its answers. All writes are
// best-effort from the controller's point of view: a journal failure
// never blocks the exam.
type Journal interface {
	// BeginAttempt records a fresh attempt and its question
	// placeholders, replacing any previously journaled attempt.
	BeginAttempt(ctx context.Context, att *model.Attempt, questions []model.QuestionPlaceholder) error

	// SaveAnswer upserts one answer value and its sync flag.
	SaveAnswer(ctx context.Context, attemptID uuid.UUID, rec model.AnswerRecord, synced bool) error

	// MarkSynced flips one answer to acknowledged.
	MarkSynced(ctx context.Context, attemptID, questionID uuid.UUID) error

	// ActiveAttempt returns the journaled in-progress attempt, or nil
	// if none is recorded.
	ActiveAttempt(ctx context.Context) (*model.Attempt, error)

	// Answers returns the journaled answer set in presentation order.
	Answers(ctx context.Context, attemptID uuid.UUID) ([]AnswerState, error)

	// ClearAttempt removes the attempt and its answers after
	// finalization succeeds.
	ClearAttempt(ctx context.Context, attemptID uuid.UUID) error

	Close() error
}
