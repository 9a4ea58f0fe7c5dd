package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-client/internal/model"
)

// Key layout, one namespace per candidate device:
//   exstem:attempt:active            — JSON of the active attempt
//   exstem:attempt:<id>:answers      — hash question_id → JSON answer state
func activeAttemptKey() string {
	return "exstem:attempt:active"
}

func answersKey(attemptID uuid.UUID) string {
	return fmt.Sprintf("exstem:attempt:%s:answers", attemptID)
}

// RedisJournal persists the active attempt to a Redis server. Intended
// for kiosk-lab deployments where a shared recovery server outlives any
// single exam terminal.
type RedisJournal struct {
	rdb *redis.Client
}

// NewRedis connects to Redis and validates the connection.
func NewRedis(ctx context.Context, redisURL string) (*RedisJournal, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisJournal{rdb: rdb}, nil
}

func (j *RedisJournal) Close() error {
	return j.rdb.Close()
}

// answerEntry is the hash field value. OrderNum preserves presentation
// order across reloads.
type answerEntry struct {
	SelectedAnswer string `json:"selected_answer"`
	TimeSpent      int    `json:"time_spent"`
	Synced         bool   `json:"synced"`
	OrderNum       int    `json:"order_num"`
}

// BeginAttempt replaces the journaled attempt with a fresh one.
func (j *RedisJournal) BeginAttempt(ctx context.Context, att *model.Attempt, questions []model.QuestionPlaceholder) error {
	if prev, err := j.ActiveAttempt(ctx); err == nil && prev != nil {
		_ = j.rdb.Del(ctx, answersKey(prev.ID)).Err()
	}

	raw, err := json.Marshal(att)
	if err != nil {
		return err
	}

	pipe := j.rdb.Pipeline()
	pipe.Set(ctx, activeAttemptKey(), raw, 0)
	for i, q := range questions {
		entry, _ := json.Marshal(answerEntry{Synced: true, OrderNum: i})
		pipe.HSet(ctx, answersKey(att.ID), q.QuestionID.String(), entry)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// SaveAnswer upserts one answer value and its sync flag.
func (j *RedisJournal) SaveAnswer(ctx context.Context, attemptID uuid.UUID, rec model.AnswerRecord, synced bool) error {
	prev, err := j.entry(ctx, attemptID, rec.QuestionID)
	if err != nil {
		return err
	}

	entry, _ := json.Marshal(answerEntry{
		SelectedAnswer: rec.SelectedAnswer,
		TimeSpent:      rec.TimeSpentSeconds,
		Synced:         synced,
		OrderNum:       prev.OrderNum,
	})
	return j.rdb.HSet(ctx, answersKey(attemptID), rec.QuestionID.String(), entry).Err()
}

// MarkSynced flips one answer to acknowledged.
func (j *RedisJournal) MarkSynced(ctx context.Context, attemptID, questionID uuid.UUID) error {
	entry, err := j.entry(ctx, attemptID, questionID)
	if err != nil {
		return err
	}
	entry.Synced = true
	raw, _ := json.Marshal(entry)
	return j.rdb.HSet(ctx, answersKey(attemptID), questionID.String(), raw).Err()
}

// ActiveAttempt returns the journaled attempt, or nil if none exists.
func (j *RedisJournal) ActiveAttempt(ctx context.Context) (*model.Attempt, error) {
	raw, err := j.rdb.Get(ctx, activeAttemptKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var att model.Attempt
	if err := json.Unmarshal([]byte(raw), &att); err != nil {
		return nil, fmt.Errorf("decode journaled attempt: %w", err)
	}
	return &att, nil
}

// Answers returns the journaled answer set in presentation order.
func (j *RedisJournal) Answers(ctx context.Context, attemptID uuid.UUID) ([]AnswerState, error) {
	fields, err := j.rdb.HGetAll(ctx, answersKey(attemptID)).Result()
	if err != nil {
		return nil, err
	}

	type ordered struct {
		state AnswerState
		order int
	}
	items := make([]ordered, 0, len(fields))

	for qidStr, raw := range fields {
		qid, err := uuid.Parse(qidStr)
		if err != nil {
			return nil, fmt.Errorf("parse question id: %w", err)
		}
		var entry answerEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode answer entry: %w", err)
		}
		items = append(items, ordered{
			state: AnswerState{
				Record: model.AnswerRecord{
					QuestionID:       qid,
					SelectedAnswer:   entry.SelectedAnswer,
					TimeSpentSeconds: entry.TimeSpent,
				},
				Synced: entry.Synced,
			},
			order: entry.OrderNum,
		})
	}

	sort.Slice(items, func(i, k int) bool { return items[i].order < items[k].order })

	out := make([]AnswerState, len(items))
	for i, it := range items {
		out[i] = it.state
	}
	return out, nil
}

// ClearAttempt removes the attempt and its answers.
func (j *RedisJournal) ClearAttempt(ctx context.Context, attemptID uuid.UUID) error {
	pipe := j.rdb.Pipeline()
	pipe.Del(ctx, activeAttemptKey())
	pipe.Del(ctx, answersKey(attemptID))
	_, err := pipe.Exec(ctx)
	return err
}

func (j *RedisJournal) entry(ctx context.Context, attemptID, questionID uuid.UUID) (answerEntry, error) {
	var entry answerEntry
	raw, err := j.rdb.HGet(ctx, answersKey(attemptID), questionID.String()).Result()
	if err == redis.Nil {
		return entry, nil
	}
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return entry, fmt.Errorf("decode answer entry: %w", err)
	}
	return entry, nil
}
