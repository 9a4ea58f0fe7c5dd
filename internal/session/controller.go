// Package session implements the exam-taking session lifecycle: one
// candidate's attempt at one exam, from start through answer capture to
// finalization. The controller is an explicit state machine — the
// states below are the only ones it can occupy, and every transition
// is guarded by the controller mutex.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/apierr"
	"github.com/stemsi/exstem-client/internal/journal"
	"github.com/stemsi/exstem-client/internal/model"
)

// State enumerates the controller's lifecycle states.
type State string

const (
	StateIdle       State = "IDLE"
	StateStarting   State = "STARTING"
	StateInProgress State = "IN_PROGRESS"
	StateSubmitting State = "SUBMITTING"
	StateSubmitted  State = "SUBMITTED"
)

// finalizeRetryDelay is how long the controller waits before re-arming
// the auto-submit timer after a failed finalization.
const finalizeRetryDelay = 5 * time.Second

// API is the remote contract the controller drives. Implemented by
// client.SessionClient; faked in tests.
type API interface {
	StartAttempt(ctx context.Context, examID uuid.UUID) (*model.StartAttemptResponse, error)
	SubmitAnswer(ctx context.Context, attemptID uuid.UUID, req model.SubmitAnswerRequest) error
	SubmitExam(ctx context.Context, attemptID uuid.UUID) (*model.Result, error)
	AutoSubmitExam(ctx context.Context, attemptID uuid.UUID) (*model.Result, error)
	GetResult(ctx context.Context, attemptID uuid.UUID) (*model.Result, error)
}

// finalizeOp tracks one finalization in flight. result and err are set
// before done is closed and immutable afterwards, so late waiters read
// the outcome of the call that actually went out.
type finalizeOp struct {
	done   chan struct{}
	result *model.Result
	err    error
}

// Controller owns the single active attempt and its answer buffer. It
// is safe for concurrent use: answer submissions for different
// questions run in parallel, while start and finalize are guarded
// against reentrancy.
type Controller struct {
	api    API
	jnl    journal.Journal // may be nil
	notify Notifier
	log    zerolog.Logger

	mu      sync.Mutex
	state   State
	closed  bool
	attempt *model.Attempt
	buffer  *AnswerBuffer
	timer   *time.Timer
	fin     *finalizeOp
	result  *model.Result
}

// NewController creates a controller in the Idle state. jnl may be nil
// to disable local persistence; notify may be nil to discard warnings.
func NewController(api API, jnl journal.Journal, notify Notifier, log zerolog.Logger) *Controller {
	if notify == nil {
		notify = NopNotifier
	}
	return &Controller{
		api:    api,
		jnl:    jnl,
		notify: notify,
		log:    log.With().Str("component", "session_controller").Logger(),
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempt returns a copy of the active attempt metadata, or nil.
func (c *Controller) Attempt() *model.Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil {
		return nil
	}
	att := *c.attempt
	return &att
}

// Snapshot returns the complete answer set in presentation order, or
// nil when no attempt is active.
func (c *Controller) Snapshot() []model.AnswerRecord {
	c.mu.Lock()
	buf := c.buffer
	c.mu.Unlock()
	if buf == nil {
		return nil
	}
	return buf.Snapshot()
}

// StartAttempt starts a new attempt at the given exam. A second call
// while a start is in flight is rejected with SESSION_ALREADY_STARTING
// rather than issuing a duplicate network call. On success the answer
// buffer is materialized and the auto-submit timer armed; on failure
// the controller returns to Idle.
func (c *Controller) StartAttempt(ctx context.Context, examID uuid.UUID) (*model.Attempt, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return nil, apierr.New(apierr.ErrSessionClosed)
	case c.state == StateStarting:
		c.mu.Unlock()
		return nil, apierr.New(apierr.ErrAlreadyStarting)
	case c.state == StateInProgress || c.state == StateSubmitting:
		c.mu.Unlock()
		return nil, apierr.Newf(apierr.ErrAlreadyStarting, "an attempt is already active")
	}
	c.state = StateStarting
	c.mu.Unlock()

	resp, err := c.api.StartAttempt(ctx, examID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateIdle
		c.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Start attempt failed")
		return nil, err
	}

	att := &model.Attempt{
		ID:            resp.AttemptID,
		ExamID:        resp.ExamID,
		AttemptNumber: resp.AttemptNumber,
		Status:        model.AttemptStatusInProgress,
		StartedAt:     resp.StartedAt,
		DeadlineAt:    resp.Deadline(),
	}
	c.attempt = att
	c.buffer = NewAnswerBuffer(resp.Questions)
	c.result = nil
	c.fin = nil
	c.state = StateInProgress

	if c.jnl != nil {
		if jerr := c.jnl.BeginAttempt(ctx, att, resp.Questions); jerr != nil {
			c.log.Warn().Err(jerr).Msg("Journal begin failed")
		}
	}

	c.armTimerLocked(time.Until(att.DeadlineAt))

	c.log.Info().
		Str("attempt_id", att.ID.String()).
		Str("exam_id", att.ExamID.String()).
		Int("attempt_number", att.AttemptNumber).
		Int("questions", c.buffer.Len()).
		Time("deadline", att.DeadlineAt).
		Msg("Attempt started")

	out := *att
	return &out, nil
}

// SubmitAnswer records one answer. The buffer is written optimistically
// before the network call; on a transient failure the local value is
// retained and marked unsynced so finalization can reconcile it. Calls
// for different questions may run concurrently.
func (c *Controller) SubmitAnswer(ctx context.Context, questionID uuid.UUID, selectedAnswer string, timeSpentSeconds int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apierr.New(apierr.ErrSessionClosed)
	}
	if c.state != StateInProgress {
		c.mu.Unlock()
		return apierr.New(apierr.ErrNoActiveSession)
	}
	buf, attemptID := c.buffer, c.attempt.ID
	c.mu.Unlock()

	if !buf.Has(questionID) {
		return apierr.Newf(apierr.ErrInvalidQuestion, "question %s is not part of this attempt", questionID)
	}

	buf.Set(questionID, selectedAnswer, timeSpentSeconds)
	if c.jnl != nil {
		rec := model.AnswerRecord{
			QuestionID:       questionID,
			SelectedAnswer:   selectedAnswer,
			TimeSpentSeconds: timeSpentSeconds,
		}
		if jerr := c.jnl.SaveAnswer(ctx, attemptID, rec, false); jerr != nil {
			c.log.Warn().Err(jerr).Msg("Journal save failed")
		}
	}

	err := c.api.SubmitAnswer(ctx, attemptID, model.SubmitAnswerRequest{
		QuestionID:     questionID,
		SelectedAnswer: selectedAnswer,
		TimeSpent:      timeSpentSeconds,
	})
	if err != nil {
		// Local value is retained; finalization reconciles it.
		c.notify.Warn("Answer saved locally; it will be re-sent before submission.")
		c.log.Warn().Err(err).Str("question_id", questionID.String()).Msg("Answer sync failed")
		return err
	}

	buf.MarkSyncedIf(questionID, selectedAnswer)
	if c.jnl != nil {
		if jerr := c.jnl.MarkSynced(ctx, attemptID, questionID); jerr != nil {
			c.log.Warn().Err(jerr).Msg("Journal mark-synced failed")
		}
	}
	return nil
}

// FinalizeAttempt submits the attempt on candidate action. If a
// finalization is already in flight (candidate and timer racing), the
// call waits for that one's outcome instead of issuing a second
// terminal call; if ctx expires while waiting, ALREADY_FINALIZING is
// returned. On failure the attempt returns to InProgress with all
// answers intact and finalization may be retried.
func (c *Controller) FinalizeAttempt(ctx context.Context) (*model.Result, error) {
	return c.finalize(ctx, false)
}

func (c *Controller) finalize(ctx context.Context, auto bool) (*model.Result, error) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return nil, apierr.New(apierr.ErrSessionClosed)
	}

	if c.state == StateSubmitting {
		// Another finalization holds the lock; await its outcome.
		op := c.fin
		c.mu.Unlock()
		select {
		case <-op.done:
			return op.result, op.err
		case <-ctx.Done():
			return nil, apierr.Wrap(apierr.ErrAlreadyFinalizing, ctx.Err())
		}
	}

	if c.state == StateSubmitted {
		res := c.result
		c.mu.Unlock()
		if auto {
			// Timer fired after a manual submit already finished.
			return res, nil
		}
		return nil, apierr.New(apierr.ErrNoActiveSession)
	}

	if c.state != StateInProgress {
		c.mu.Unlock()
		return nil, apierr.New(apierr.ErrNoActiveSession)
	}

	op := &finalizeOp{done: make(chan struct{})}
	c.fin = op
	c.state = StateSubmitting
	c.stopTimerLocked()
	attemptID := c.attempt.ID
	buf := c.buffer
	c.mu.Unlock()

	result, err := c.runFinalize(ctx, attemptID, buf, auto)

	c.mu.Lock()
	defer c.mu.Unlock()

	op.result, op.err = result, err
	close(op.done)

	if err != nil {
		c.state = StateInProgress
		c.rearmAfterFailureLocked()
		c.log.Warn().Err(err).Bool("auto", auto).Msg("Finalization failed, attempt stays in progress")
		return nil, err
	}

	c.state = StateSubmitted
	c.result = result
	c.buffer = nil
	if c.attempt != nil {
		c.attempt.Status = result.Status
		c.attempt.SubmittedAt = result.SubmittedAt
	}
	if c.jnl != nil {
		if jerr := c.jnl.ClearAttempt(ctx, attemptID); jerr != nil {
			c.log.Warn().Err(jerr).Msg("Journal clear failed")
		}
	}

	c.log.Info().
		Str("attempt_id", attemptID.String()).
		Bool("auto", auto).
		Float64("percentage", result.Percentage).
		Msg("Attempt submitted")

	return result, nil
}

// runFinalize flushes unsynced answers, then issues the terminal call.
// A manual finalize aborts when an answer cannot be flushed — the
// candidate retries once the network recovers, losing nothing. The
// deadline-driven path proceeds best-effort: time is up either way.
func (c *Controller) runFinalize(ctx context.Context, attemptID uuid.UUID, buf *AnswerBuffer, auto bool) (*model.Result, error) {
	for _, rec := range buf.AllUnsynced() {
		err := c.api.SubmitAnswer(ctx, attemptID, model.SubmitAnswerRequest{
			QuestionID:     rec.QuestionID,
			SelectedAnswer: rec.SelectedAnswer,
			TimeSpent:      rec.TimeSpentSeconds,
		})
		if err != nil {
			if !auto {
				return nil, fmt.Errorf("reconcile answer %s: %w", rec.QuestionID, err)
			}
			c.notify.Warn("Some answers could not be re-sent before auto-submission.")
			c.log.Warn().Err(err).Str("question_id", rec.QuestionID.String()).Msg("Reconcile failed on auto-submit")
			continue
		}
		buf.MarkSyncedIf(rec.QuestionID, rec.SelectedAnswer)
	}

	if auto {
		return c.api.AutoSubmitExam(ctx, attemptID)
	}
	return c.api.SubmitExam(ctx, attemptID)
}

// FetchResult retrieves the finalized result. Read-only, idempotent,
// callable only once the attempt is Submitted.
func (c *Controller) FetchResult(ctx context.Context) (*model.Result, error) {
	c.mu.Lock()
	if c.state != StateSubmitted || c.attempt == nil {
		c.mu.Unlock()
		return nil, apierr.New(apierr.ErrNoActiveSession)
	}
	attemptID := c.attempt.ID
	c.mu.Unlock()

	return c.api.GetResult(ctx, attemptID)
}

// Resume restores an in-progress attempt from the journal after a
// process restart: buffer contents, deadline and auto-submit timer. It
// reports whether an attempt was resumed. An attempt whose deadline
// already passed is auto-submitted immediately.
func (c *Controller) Resume(ctx context.Context) (bool, error) {
	if c.jnl == nil {
		return false, nil
	}

	c.mu.Lock()
	if c.closed || c.state != StateIdle {
		c.mu.Unlock()
		return false, apierr.New(apierr.ErrAlreadyStarting)
	}
	c.mu.Unlock()

	att, err := c.jnl.ActiveAttempt(ctx)
	if err != nil {
		return false, fmt.Errorf("load journaled attempt: %w", err)
	}
	if att == nil {
		return false, nil
	}

	states, err := c.jnl.Answers(ctx, att.ID)
	if err != nil {
		return false, fmt.Errorf("load journaled answers: %w", err)
	}

	bufStates := make([]AnswerState, len(states))
	for i, s := range states {
		bufStates[i] = AnswerState{Record: s.Record, Synced: s.Synced}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt = att
	c.buffer = Restore(bufStates)
	c.result = nil
	c.fin = nil
	c.state = StateInProgress
	c.armTimerLocked(time.Until(att.DeadlineAt))

	c.log.Info().
		Str("attempt_id", att.ID.String()).
		Int("questions", c.buffer.Len()).
		Time("deadline", att.DeadlineAt).
		Msg("Attempt resumed from journal")

	return true, nil
}

// Close tears the controller down. The timer is disarmed and no new
// calls are issued; in-flight answer submissions complete best-effort.
// The backend attempt stays InProgress server-side until its own
// deadline enforcement.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimerLocked()
}

func (c *Controller) armTimerLocked(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.timer = time.AfterFunc(d, func() {
		// Races a manual submit through the finalizing lock; exactly
		// one terminal call goes out.
		_, _ = c.finalize(context.Background(), true)
	})
}

func (c *Controller) rearmAfterFailureLocked() {
	if c.closed || c.attempt == nil {
		return
	}
	d := time.Until(c.attempt.DeadlineAt)
	if d < finalizeRetryDelay {
		d = finalizeRetryDelay
	}
	c.armTimerLocked(d)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
