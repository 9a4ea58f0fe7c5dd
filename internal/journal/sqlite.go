package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-client/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteJournal persists the active attempt to a local SQLite file. It
// holds at most one attempt at a time — starting a new attempt replaces
// whatever was journaled before.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the journal file. Use ":memory:" for
// tests.
func NewSQLite(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func (j *SQLiteJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		attempt_number INTEGER NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		deadline_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS answers (
		attempt_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		order_num INTEGER NOT NULL,
		selected_answer TEXT NOT NULL DEFAULT '',
		time_spent INTEGER NOT NULL DEFAULT 0,
		synced INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (attempt_id, question_id)
	);
	`
	_, err := j.db.Exec(schema)
	return err
}

// BeginAttempt replaces the journaled attempt with a fresh one and
// materializes one empty answer row per question.
func (j *SQLiteJournal) BeginAttempt(ctx context.Context, att *model.Attempt, questions []model.QuestionPlaceholder) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attempts`); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (id, exam_id, attempt_number, status, started_at, deadline_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		att.ID.String(), att.ExamID.String(), att.AttemptNumber,
		string(att.Status), att.StartedAt, att.DeadlineAt,
	)
	if err != nil {
		return err
	}

	for i, q := range questions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO answers (attempt_id, question_id, order_num) VALUES (?, ?, ?)`,
			att.ID.String(), q.QuestionID.String(), i,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveAnswer upserts one answer value and its sync flag.
func (j *SQLiteJournal) SaveAnswer(ctx context.Context, attemptID uuid.UUID, rec model.AnswerRecord, synced bool) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE answers SET selected_answer = ?, time_spent = ?, synced = ?
		 WHERE attempt_id = ? AND question_id = ?`,
		rec.SelectedAnswer, rec.TimeSpentSeconds, boolToInt(synced),
		attemptID.String(), rec.QuestionID.String(),
	)
	return err
}

// MarkSynced flips one answer to acknowledged.
func (j *SQLiteJournal) MarkSynced(ctx context.Context, attemptID, questionID uuid.UUID) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE answers SET synced = 1 WHERE attempt_id = ? AND question_id = ?`,
		attemptID.String(), questionID.String(),
	)
	return err
}

// ActiveAttempt returns the journaled attempt, or nil if none exists.
func (j *SQLiteJournal) ActiveAttempt(ctx context.Context) (*model.Attempt, error) {
	var (
		att              model.Attempt
		idStr, examIDStr string
		status           string
	)
	err := j.db.QueryRowContext(ctx,
		`SELECT id, exam_id, attempt_number, status, started_at, deadline_at
		 FROM attempts LIMIT 1`,
	).Scan(&idStr, &examIDStr, &att.AttemptNumber, &status, &att.StartedAt, &att.DeadlineAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if att.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse attempt id: %w", err)
	}
	if att.ExamID, err = uuid.Parse(examIDStr); err != nil {
		return nil, fmt.Errorf("parse exam id: %w", err)
	}
	att.Status = model.AttemptStatus(status)
	return &att, nil
}

// Answers returns the journaled answer set in presentation order.
func (j *SQLiteJournal) Answers(ctx context.Context, attemptID uuid.UUID) ([]AnswerState, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT question_id, selected_answer, time_spent, synced
		 FROM answers WHERE attempt_id = ? ORDER BY order_num`,
		attemptID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnswerState
	for rows.Next() {
		var (
			s      AnswerState
			qidStr string
			synced int
		)
		if err := rows.Scan(&qidStr, &s.Record.SelectedAnswer, &s.Record.TimeSpentSeconds, &synced); err != nil {
			return nil, err
		}
		if s.Record.QuestionID, err = uuid.Parse(qidStr); err != nil {
			return nil, fmt.Errorf("parse question id: %w", err)
		}
		s.Synced = synced != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// ClearAttempt removes the attempt and its answers.
func (j *SQLiteJournal) ClearAttempt(ctx context.Context, attemptID uuid.UUID) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE attempt_id = ?`, attemptID.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attempts WHERE id = ?`, attemptID.String()); err != nil {
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
