package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-client/internal/model"
)

// AnswerState is one buffered answer plus its sync flag. Synced means
// the backend has acknowledged the currently buffered value.
type AnswerState struct {
	Record model.AnswerRecord
	Synced bool
}

// AnswerBuffer holds the latest locally-known answer per question for
// one attempt. Last write wins; records are never deleted while the
// attempt is active. Safe for concurrent use — answer submissions for
// different questions may be in flight at the same time.
type AnswerBuffer struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*AnswerState
	order   []uuid.UUID
}

// NewAnswerBuffer materializes one empty record per question, in the
// backend's presentation order. Empty placeholders start synced: the
// backend created them, there is nothing to reconcile.
func NewAnswerBuffer(questions []model.QuestionPlaceholder) *AnswerBuffer {
	b := &AnswerBuffer{
		entries: make(map[uuid.UUID]*AnswerState, len(questions)),
		order:   make([]uuid.UUID, 0, len(questions)),
	}
	for _, q := range questions {
		b.entries[q.QuestionID] = &AnswerState{
			Record: model.AnswerRecord{QuestionID: q.QuestionID},
			Synced: true,
		}
		b.order = append(b.order, q.QuestionID)
	}
	return b
}

// Restore rebuilds a buffer from journaled state, preserving order.
func Restore(states []AnswerState) *AnswerBuffer {
	b := &AnswerBuffer{
		entries: make(map[uuid.UUID]*AnswerState, len(states)),
		order:   make([]uuid.UUID, 0, len(states)),
	}
	for i := range states {
		s := states[i]
		b.entries[s.Record.QuestionID] = &s
		b.order = append(b.order, s.Record.QuestionID)
	}
	return b
}

// Has reports whether the question belongs to this attempt.
func (b *AnswerBuffer) Has(questionID uuid.UUID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[questionID]
	return ok
}

// Get returns the buffered state for a question.
func (b *AnswerBuffer) Get(questionID uuid.UUID) (AnswerState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[questionID]
	if !ok {
		return AnswerState{}, false
	}
	return *e, true
}

// Set records an answer value, overwriting any prior value for the
// question. The entry is marked unsynced until the backend acks it.
// Unknown questions are ignored; the controller validates membership
// before writing.
func (b *AnswerBuffer) Set(questionID uuid.UUID, selectedAnswer string, timeSpentSeconds int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[questionID]
	if !ok {
		return
	}
	e.Record.SelectedAnswer = selectedAnswer
	e.Record.TimeSpentSeconds = timeSpentSeconds
	e.Synced = false
}

// MarkSyncedIf flips the entry to synced only when the acked value
// still matches the buffer. A concurrent overwrite for the same
// question keeps the entry unsynced so the newer value reconciles.
func (b *AnswerBuffer) MarkSyncedIf(questionID uuid.UUID, selectedAnswer string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[questionID]
	if !ok {
		return
	}
	if e.Record.SelectedAnswer == selectedAnswer {
		e.Synced = true
	}
}

// AllUnsynced returns the records the backend has not acknowledged.
func (b *AnswerBuffer) AllUnsynced() []model.AnswerRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []model.AnswerRecord
	for _, qid := range b.order {
		if e := b.entries[qid]; !e.Synced {
			out = append(out, e.Record)
		}
	}
	return out
}

// Snapshot returns the complete answer set in presentation order,
// regardless of per-answer sync success. Used at finalization.
func (b *AnswerBuffer) Snapshot() []model.AnswerRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.AnswerRecord, 0, len(b.order))
	for _, qid := range b.order {
		out = append(out, b.entries[qid].Record)
	}
	return out
}

// States returns the full buffer contents including sync flags, in
// presentation order. Used for journaling.
func (b *AnswerBuffer) States() []AnswerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]AnswerState, 0, len(b.order))
	for _, qid := range b.order {
		out = append(out, *b.entries[qid])
	}
	return out
}

// Len returns the number of questions in the attempt.
func (b *AnswerBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}
