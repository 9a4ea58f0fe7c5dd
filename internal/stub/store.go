// Package stub implements an in-process exam API server speaking the
// same wire contract the session client consumes. The integration
// tests run against it, and cmd/stub-server exposes it standalone for
// manual client testing. Grading is deliberately simple string
// comparison — the stub is a test collaborator, not a product.
package stub

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-client/internal/apierr"
	"github.com/stemsi/exstem-client/internal/model"
)

type attemptAnswer struct {
	selectedAnswer string
	timeSpent      int
	orderNum       int
}

type attempt struct {
	id          uuid.UUID
	examID      uuid.UUID
	candidateID string
	number      int
	status      model.AttemptStatus
	startedAt   time.Time
	submittedAt *time.Time
	answers     map[uuid.UUID]*attemptAnswer
	result      *model.Result
}

// Store holds exams and attempts in memory, guarded by one mutex.
type Store struct {
	mu       sync.Mutex
	exams    map[uuid.UUID]*model.Exam
	attempts map[uuid.UUID]*attempt
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		exams:    make(map[uuid.UUID]*model.Exam),
		attempts: make(map[uuid.UUID]*attempt),
		now:      time.Now,
	}
}

// SeedExam registers an exam definition.
func (s *Store) SeedExam(exam *model.Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams[exam.ID] = exam
}

// StartAttempt creates a new attempt, or returns the existing
// in-progress one (idempotent join — a refresh or second device must
// not burn an attempt slot).
func (s *Store) StartAttempt(candidateID string, examID uuid.UUID) (*model.StartAttemptResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exam, ok := s.exams[examID]
	if !ok {
		return nil, apierr.New(apierr.ErrNotFound)
	}
	if !exam.Open(s.now()) {
		return nil, apierr.New(apierr.ErrExamNotOpen)
	}

	var used int
	for _, a := range s.attempts {
		if a.candidateID != candidateID || a.examID != examID {
			continue
		}
		if a.status == model.AttemptStatusInProgress {
			return s.startResponse(exam, a), nil
		}
		used++
	}

	if exam.MaxAttempts > 0 && used >= exam.MaxAttempts {
		return nil, apierr.New(apierr.ErrAttemptLimitExceeded)
	}

	a := &attempt{
		id:          uuid.New(),
		examID:      examID,
		candidateID: candidateID,
		number:      used + 1,
		status:      model.AttemptStatusInProgress,
		startedAt:   s.now(),
		answers:     make(map[uuid.UUID]*attemptAnswer, len(exam.Questions)),
	}
	for i, q := range exam.Questions {
		a.answers[q.ID] = &attemptAnswer{orderNum: i}
	}
	s.attempts[a.id] = a

	return s.startResponse(exam, a), nil
}

func (s *Store) startResponse(exam *model.Exam, a *attempt) *model.StartAttemptResponse {
	questions := make([]model.QuestionPlaceholder, len(exam.Questions))
	for i, q := range exam.Questions {
		questions[i] = model.QuestionPlaceholder{QuestionID: q.ID}
	}
	return &model.StartAttemptResponse{
		AttemptID:       a.id,
		ExamID:          exam.ID,
		AttemptNumber:   a.number,
		DurationMinutes: exam.DurationMinutes,
		StartedAt:       a.startedAt,
		Questions:       questions,
	}
}

// SaveAnswer upserts one answer on an in-progress attempt. Last write
// wins per question.
func (s *Store) SaveAnswer(candidateID string, attemptID, questionID uuid.UUID, selectedAnswer string, timeSpent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ownAttempt(candidateID, attemptID)
	if err != nil {
		return err
	}
	if a.status != model.AttemptStatusInProgress {
		return apierr.New(apierr.ErrNoActiveSession)
	}

	ans, ok := a.answers[questionID]
	if !ok {
		return apierr.New(apierr.ErrInvalidQuestion)
	}
	ans.selectedAnswer = selectedAnswer
	ans.timeSpent = timeSpent
	return nil
}

// Submit finalizes and grades the attempt. Idempotent: a duplicate
// submit returns the already-computed result instead of regrading.
func (s *Store) Submit(candidateID string, attemptID uuid.UUID) (*model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ownAttempt(candidateID, attemptID)
	if err != nil {
		return nil, err
	}
	if a.status != model.AttemptStatusInProgress {
		return a.result, nil
	}

	exam := s.exams[a.examID]
	now := s.now()
	a.status = model.AttemptStatusGraded
	a.submittedAt = &now
	a.result = grade(exam, a)
	return a.result, nil
}

// Result returns the finalized result for an attempt.
func (s *Store) Result(candidateID string, attemptID uuid.UUID) (*model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ownAttempt(candidateID, attemptID)
	if err != nil {
		return nil, err
	}
	if a.result == nil {
		return nil, apierr.New(apierr.ErrNoActiveSession)
	}
	return a.result, nil
}

// ListResults returns the candidate's finalized results, newest first.
func (s *Store) ListResults(candidateID string, params model.ListResultsParams) ([]model.ResultSummary, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*attempt
	for _, a := range s.attempts {
		if a.candidateID != candidateID || a.result == nil {
			continue
		}
		if params.ExamID != nil && a.examID != *params.ExamID {
			continue
		}
		all = append(all, a)
	}

	// Newest first; stable enough ordering for a stub.
	for i := 0; i < len(all); i++ {
		for k := i + 1; k < len(all); k++ {
			if all[k].submittedAt.After(*all[i].submittedAt) {
				all[i], all[k] = all[k], all[i]
			}
		}
	}

	total := len(all)
	page, perPage := params.Page, params.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	offset := (page - 1) * perPage
	if offset > total {
		offset = total
	}
	end := offset + perPage
	if end > total {
		end = total
	}

	out := make([]model.ResultSummary, 0, end-offset)
	for _, a := range all[offset:end] {
		exam := s.exams[a.examID]
		out = append(out, model.ResultSummary{
			AttemptID:     a.id,
			ExamID:        a.examID,
			ExamTitle:     exam.Title,
			AttemptNumber: a.number,
			Status:        a.status,
			Percentage:    a.result.Percentage,
			Grade:         a.result.Grade,
			SubmittedAt:   a.submittedAt,
		})
	}
	return out, total
}

func (s *Store) ownAttempt(candidateID string, attemptID uuid.UUID) (*attempt, error) {
	a, ok := s.attempts[attemptID]
	if !ok || a.candidateID != candidateID {
		return nil, apierr.New(apierr.ErrNotFound)
	}
	return a, nil
}

func grade(exam *model.Exam, a *attempt) *model.Result {
	var obtained float64
	answers := make([]model.AnswerRecord, len(exam.Questions))

	for i, q := range exam.Questions {
		ans := a.answers[q.ID]
		correct := ans.selectedAnswer != "" &&
			strings.EqualFold(strings.TrimSpace(ans.selectedAnswer), strings.TrimSpace(q.CorrectAnswer))
		if correct {
			obtained += q.Marks
		}
		isCorrect := correct
		answers[i] = model.AnswerRecord{
			QuestionID:       q.ID,
			SelectedAnswer:   ans.selectedAnswer,
			TimeSpentSeconds: ans.timeSpent,
			IsCorrect:        &isCorrect,
		}
	}

	total := exam.TotalMarks()
	var pct float64
	if total > 0 {
		pct = obtained / total * 100
	}

	return &model.Result{
		AttemptID:     a.id,
		ExamID:        a.examID,
		AttemptNumber: a.number,
		Status:        a.status,
		Percentage:    pct,
		Grade:         letterGrade(pct),
		ObtainedMarks: obtained,
		TotalMarks:    total,
		SubmittedAt:   a.submittedAt,
		Answers:       answers,
	}
}

func letterGrade(pct float64) string {
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "F"
	}
}
