// End-to-end tests: a real SessionClient and Controller talking to the
// in-process stub exam server over HTTP.
package integration

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/apierr"
	"github.com/stemsi/exstem-client/internal/client"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/journal"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/session"
	"github.com/stemsi/exstem-client/internal/stub"
)

const testSecret = "integration-test-secret"

type harness struct {
	server *stub.Server
	exam   *model.Exam
	cli    *client.SessionClient
}

func newHarness(t *testing.T, candidateID string) *harness {
	t.Helper()

	srv := stub.NewServer(testSecret, zerolog.Nop())
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           "Geography Final",
		DurationMinutes: 30,
		MaxAttempts:     2,
		Questions: []model.Question{
			{ID: uuid.New(), QuestionText: "Capital of France?", QuestionType: model.QuestionTypeShortAnswer, CorrectAnswer: "Paris", Marks: 10},
			{ID: uuid.New(), QuestionText: "The Nile is in Africa.", QuestionType: model.QuestionTypeTrueFalse, CorrectAnswer: "true", Marks: 5},
			{ID: uuid.New(), QuestionText: "Largest ocean?", QuestionType: model.QuestionTypeMultipleChoice, CorrectAnswer: "Pacific", Marks: 10},
		},
	}
	srv.Store().SeedExam(exam)

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	token, err := stub.MintToken(testSecret, candidateID, time.Hour)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}

	cfg := &config.Config{
		APIBaseURL:   httpSrv.URL + "/api/v1",
		HTTPTimeout:  5 * time.Second,
		RetryMax:     2,
		RetryBackoff: 10 * time.Millisecond,
	}
	cli := client.NewSessionClient(cfg, client.StaticToken(token), zerolog.Nop())

	return &harness{server: srv, exam: exam, cli: cli}
}

func TestFullExamFlow(t *testing.T) {
	h := newHarness(t, "candidate-1")
	ctrl := session.NewController(h.cli, nil, nil, zerolog.Nop())
	defer ctrl.Close()
	ctx := context.Background()

	att, err := ctrl.StartAttempt(ctx, h.exam.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if att.AttemptNumber != 1 {
		t.Errorf("attempt number: got %d", att.AttemptNumber)
	}
	if want := att.StartedAt.Add(30 * time.Minute); !att.DeadlineAt.Equal(want) {
		t.Errorf("deadline: got %v want %v", att.DeadlineAt, want)
	}

	// Answer two of three; the third stays empty.
	qs := h.exam.Questions
	if err := ctrl.SubmitAnswer(ctx, qs[0].ID, "Paris", 20); err != nil {
		t.Fatalf("SubmitAnswer Q1: %v", err)
	}
	if err := ctrl.SubmitAnswer(ctx, qs[1].ID, "false", 5); err != nil {
		t.Fatalf("SubmitAnswer Q2: %v", err)
	}
	// Change of mind on Q2; last write wins.
	if err := ctrl.SubmitAnswer(ctx, qs[1].ID, "true", 9); err != nil {
		t.Fatalf("SubmitAnswer Q2 again: %v", err)
	}

	result, err := ctrl.FinalizeAttempt(ctx)
	if err != nil {
		t.Fatalf("FinalizeAttempt: %v", err)
	}
	if result.Status != model.AttemptStatusGraded {
		t.Errorf("status: got %s", result.Status)
	}
	if result.ObtainedMarks != 15 || result.TotalMarks != 25 {
		t.Errorf("marks: got %.0f/%.0f", result.ObtainedMarks, result.TotalMarks)
	}
	if result.Percentage != 60 || result.Grade != "D" {
		t.Errorf("score: got %.0f%% grade %s", result.Percentage, result.Grade)
	}

	fetched, err := ctrl.FetchResult(ctx)
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if fetched.AttemptID != result.AttemptID || fetched.Percentage != result.Percentage {
		t.Error("fetched result differs from submit response")
	}
	if len(fetched.Answers) != 3 {
		t.Fatalf("expected 3 answer records, got %d", len(fetched.Answers))
	}
	if fetched.Answers[2].SelectedAnswer != "" || *fetched.Answers[2].IsCorrect {
		t.Errorf("unanswered question graded wrong: %+v", fetched.Answers[2])
	}

	summaries, pg, err := h.cli.ListResults(ctx, model.ListResultsParams{})
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(summaries) != 1 || pg.TotalItems != 1 {
		t.Fatalf("expected one result summary, got %d (total %d)", len(summaries), pg.TotalItems)
	}
	if summaries[0].ExamTitle != "Geography Final" || summaries[0].Grade != "D" {
		t.Errorf("summary mismatch: %+v", summaries[0])
	}
}

func TestAutoSubmitOverWire(t *testing.T) {
	h := newHarness(t, "candidate-2")
	ctx := context.Background()

	resp, err := h.cli.StartAttempt(ctx, h.exam.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	err = h.cli.SubmitAnswer(ctx, resp.AttemptID, model.SubmitAnswerRequest{
		QuestionID:     h.exam.Questions[0].ID,
		SelectedAnswer: "Paris",
		TimeSpent:      10,
	})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	result, err := h.cli.AutoSubmitExam(ctx, resp.AttemptID)
	if err != nil {
		t.Fatalf("AutoSubmitExam: %v", err)
	}
	if result.ObtainedMarks != 10 {
		t.Errorf("marks: got %.0f", result.ObtainedMarks)
	}

	// A second terminal call must not regrade.
	again, err := h.cli.SubmitExam(ctx, resp.AttemptID)
	if err != nil {
		t.Fatalf("duplicate SubmitExam: %v", err)
	}
	if again.SubmittedAt == nil || !again.SubmittedAt.Equal(*result.SubmittedAt) {
		t.Error("duplicate submit changed the recorded submission time")
	}
}

func TestAttemptLimitOverWire(t *testing.T) {
	h := newHarness(t, "candidate-3")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := h.cli.StartAttempt(ctx, h.exam.ID)
		if err != nil {
			t.Fatalf("StartAttempt %d: %v", i+1, err)
		}
		if resp.AttemptNumber != i+1 {
			t.Errorf("attempt number: got %d want %d", resp.AttemptNumber, i+1)
		}
		if _, err := h.cli.SubmitExam(ctx, resp.AttemptID); err != nil {
			t.Fatalf("SubmitExam %d: %v", i+1, err)
		}
	}

	_, err := h.cli.StartAttempt(ctx, h.exam.ID)
	if !apierr.IsCode(err, apierr.ErrAttemptLimitExceeded) {
		t.Fatalf("expected ATTEMPT_LIMIT_EXCEEDED, got %v", err)
	}
}

func TestRejectsBadToken(t *testing.T) {
	h := newHarness(t, "candidate-4")

	httpSrv := httptest.NewServer(h.server.Handler())
	t.Cleanup(httpSrv.Close)

	cfg := &config.Config{
		APIBaseURL:   httpSrv.URL + "/api/v1",
		HTTPTimeout:  5 * time.Second,
		RetryBackoff: 10 * time.Millisecond,
	}
	badCli := client.NewSessionClient(cfg, client.StaticToken("not-a-jwt"), zerolog.Nop())

	_, err := badCli.StartAttempt(context.Background(), h.exam.ID)
	if !apierr.IsCode(err, apierr.ErrUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestValidationFieldErrors(t *testing.T) {
	h := newHarness(t, "candidate-5")
	ctx := context.Background()

	resp, err := h.cli.StartAttempt(ctx, h.exam.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	// Negative time spent trips the payload validator server-side.
	err = h.cli.SubmitAnswer(ctx, resp.AttemptID, model.SubmitAnswerRequest{
		QuestionID: h.exam.Questions[0].ID,
		TimeSpent:  -1,
	})
	if !apierr.IsCode(err, apierr.ErrInvalidPayload) {
		t.Fatalf("expected INVALID_PAYLOAD, got %v", err)
	}
}

func TestResumeAcrossRestart(t *testing.T) {
	h := newHarness(t, "candidate-6")
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	open := func() *session.Controller {
		jnl, err := journal.NewSQLite(dbPath)
		if err != nil {
			t.Fatalf("open journal: %v", err)
		}
		return session.NewController(h.cli, jnl, nil, zerolog.Nop())
	}

	ctrl := open()
	if _, err := ctrl.StartAttempt(ctx, h.exam.ID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if err := ctrl.SubmitAnswer(ctx, h.exam.Questions[0].ID, "Paris", 15); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	ctrl.Close()

	// "Restart": fresh controller over the same journal file.
	ctrl2 := open()
	defer ctrl2.Close()

	resumed, err := ctrl2.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !resumed {
		t.Fatal("expected the attempt to resume")
	}

	snap := ctrl2.Snapshot()
	if len(snap) != 3 || snap[0].SelectedAnswer != "Paris" {
		t.Fatalf("restored state wrong: %+v", snap)
	}

	if err := ctrl2.SubmitAnswer(ctx, h.exam.Questions[1].ID, "true", 4); err != nil {
		t.Fatalf("SubmitAnswer after resume: %v", err)
	}
	result, err := ctrl2.FinalizeAttempt(ctx)
	if err != nil {
		t.Fatalf("FinalizeAttempt: %v", err)
	}
	if result.ObtainedMarks != 15 {
		t.Errorf("marks after resume: got %.0f", result.ObtainedMarks)
	}
}
