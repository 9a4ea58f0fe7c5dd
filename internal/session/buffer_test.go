package session

import (
	"testing"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-client/internal/model"
)

func placeholders(n int) []model.QuestionPlaceholder {
	out := make([]model.QuestionPlaceholder, n)
	for i := range out {
		out[i] = model.QuestionPlaceholder{QuestionID: uuid.New()}
	}
	return out
}

func TestBufferMaterializesEmptyRecords(t *testing.T) {
	qs := placeholders(3)
	b := NewAnswerBuffer(qs)

	if b.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", b.Len())
	}

	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected snapshot of 3, got %d", len(snap))
	}
	for i, rec := range snap {
		if rec.QuestionID != qs[i].QuestionID {
			t.Errorf("snapshot[%d]: order not preserved", i)
		}
		if rec.SelectedAnswer != "" {
			t.Errorf("snapshot[%d]: expected empty answer, got %q", i, rec.SelectedAnswer)
		}
	}

	if unsynced := b.AllUnsynced(); len(unsynced) != 0 {
		t.Errorf("fresh placeholders should be synced, got %d unsynced", len(unsynced))
	}
}

func TestBufferLastWriteWins(t *testing.T) {
	qs := placeholders(2)
	b := NewAnswerBuffer(qs)

	b.Set(qs[0].QuestionID, "first", 5)
	b.Set(qs[0].QuestionID, "second", 9)
	b.Set(qs[0].QuestionID, "third", 12)

	snap := b.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}
	if snap[0].SelectedAnswer != "third" {
		t.Errorf("expected last write to win, got %q", snap[0].SelectedAnswer)
	}
	if snap[0].TimeSpentSeconds != 12 {
		t.Errorf("expected time of last write, got %d", snap[0].TimeSpentSeconds)
	}
}

func TestBufferUnknownQuestionIgnored(t *testing.T) {
	b := NewAnswerBuffer(placeholders(1))

	stranger := uuid.New()
	b.Set(stranger, "x", 1)

	if b.Has(stranger) {
		t.Error("unknown question must not be added")
	}
	if b.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", b.Len())
	}
}

func TestBufferSyncFlags(t *testing.T) {
	qs := placeholders(2)
	b := NewAnswerBuffer(qs)

	b.Set(qs[0].QuestionID, "A", 3)
	b.Set(qs[1].QuestionID, "B", 4)

	if got := len(b.AllUnsynced()); got != 2 {
		t.Fatalf("expected 2 unsynced, got %d", got)
	}

	b.MarkSyncedIf(qs[0].QuestionID, "A")
	unsynced := b.AllUnsynced()
	if len(unsynced) != 1 || unsynced[0].QuestionID != qs[1].QuestionID {
		t.Fatalf("expected only second question unsynced, got %v", unsynced)
	}
}

func TestBufferMarkSyncedIfStaleAck(t *testing.T) {
	qs := placeholders(1)
	b := NewAnswerBuffer(qs)

	b.Set(qs[0].QuestionID, "old", 1)
	// The value changed while the old ack was in flight.
	b.Set(qs[0].QuestionID, "new", 2)
	b.MarkSyncedIf(qs[0].QuestionID, "old")

	if got := len(b.AllUnsynced()); got != 1 {
		t.Fatalf("stale ack must not mark the newer value synced, got %d unsynced", got)
	}

	b.MarkSyncedIf(qs[0].QuestionID, "new")
	if got := len(b.AllUnsynced()); got != 0 {
		t.Fatalf("matching ack should sync, got %d unsynced", got)
	}
}

func TestBufferRestore(t *testing.T) {
	qs := placeholders(2)
	states := []AnswerState{
		{Record: model.AnswerRecord{QuestionID: qs[0].QuestionID, SelectedAnswer: "A", TimeSpentSeconds: 7}, Synced: true},
		{Record: model.AnswerRecord{QuestionID: qs[1].QuestionID, SelectedAnswer: "B", TimeSpentSeconds: 9}, Synced: false},
	}

	b := Restore(states)
	if b.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", b.Len())
	}

	snap := b.Snapshot()
	if snap[0].SelectedAnswer != "A" || snap[1].SelectedAnswer != "B" {
		t.Errorf("restored values wrong: %v", snap)
	}

	unsynced := b.AllUnsynced()
	if len(unsynced) != 1 || unsynced[0].QuestionID != qs[1].QuestionID {
		t.Errorf("restored sync flags wrong: %v", unsynced)
	}
}
