// Package client implements the thin HTTP contract over the /results
// API family: start, submit-answer, finalize (manual and timeout),
// fetch-result and list-results. Every call returns either a decoded
// payload or a classified *apierr.Error — transport errors never leak.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/apierr"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/response"
)

// TokenProvider supplies the bearer token attached to every request.
// Token refresh is the caller's concern; on ErrUnauthorized the caller
// is expected to refresh and retry at its own discretion.
type TokenProvider interface {
	Token() string
}

// StaticToken is a TokenProvider for a fixed token.
type StaticToken string

// Token implements TokenProvider.
func (t StaticToken) Token() string { return string(t) }

// SessionClient wraps the remote exam-session operations.
type SessionClient struct {
	baseURL      string
	tokens       TokenProvider
	httpClient   *http.Client
	retryMax     int
	retryBackoff time.Duration
	log          zerolog.Logger
}

// NewSessionClient creates a SessionClient from configuration. The
// per-call timeout lives on the underlying http.Client so no operation
// can block the controller's state machine indefinitely.
func NewSessionClient(cfg *config.Config, tokens TokenProvider, log zerolog.Logger) *SessionClient {
	return &SessionClient{
		baseURL:      cfg.APIBaseURL,
		tokens:       tokens,
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		retryMax:     cfg.RetryMax,
		retryBackoff: cfg.RetryBackoff,
		log:          log.With().Str("component", "session_client").Logger(),
	}
}

// StartAttempt starts a new attempt at the given exam.
// POST /results/start
//
// Never retried internally: a duplicate start could burn an attempt
// slot. Start failures are terminal for that attempt.
func (c *SessionClient) StartAttempt(ctx context.Context, examID uuid.UUID) (*model.StartAttemptResponse, error) {
	var out model.StartAttemptResponse
	req := model.StartAttemptRequest{ExamID: examID}
	if err := c.do(ctx, http.MethodPost, "/results/start", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAnswer records one answer for the attempt. Last write wins per
// question, so the call is idempotent and retried on transient failure.
// PUT /results/{resultId}/answer
func (c *SessionClient) SubmitAnswer(ctx context.Context, attemptID uuid.UUID, req model.SubmitAnswerRequest) error {
	path := fmt.Sprintf("/results/%s/answer", attemptID)
	return c.do(ctx, http.MethodPut, path, req, nil, nil)
}

// SubmitExam finalizes the attempt on candidate action.
// POST /results/{resultId}/submit
func (c *SessionClient) SubmitExam(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	var out model.Result
	path := fmt.Sprintf("/results/%s/submit", attemptID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// AutoSubmitExam finalizes the attempt on deadline expiry.
// POST /results/{resultId}/auto-submit
func (c *SessionClient) AutoSubmitExam(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	var out model.Result
	path := fmt.Sprintf("/results/%s/auto-submit", attemptID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResult fetches the full result for a finalized attempt. Read-only
// and safe to call repeatedly.
// GET /results/{resultId}
func (c *SessionClient) GetResult(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	var out model.Result
	path := fmt.Sprintf("/results/%s", attemptID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListResults returns the candidate's own result summaries.
// GET /results
func (c *SessionClient) ListResults(ctx context.Context, params model.ListResultsParams) ([]model.ResultSummary, *response.Pagination, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(params.PerPage))
	}
	if params.ExamID != nil {
		q.Set("exam_id", params.ExamID.String())
	}

	path := "/results"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Results []model.ResultSummary `json:"results"`
	}
	var pg response.Pagination
	if err := c.do(ctx, http.MethodGet, path, nil, &out, &pg); err != nil {
		return nil, nil, err
	}
	return out.Results, &pg, nil
}

// do performs one logical API call: marshal, send with retry on
// transient failures, classify errors, decode the envelope.
func (c *SessionClient) do(ctx context.Context, method, path string, body, out interface{}, pg *response.Pagination) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apierr.Wrap(apierr.ErrInvalidPayload, err)
		}
	}

	// StartAttempt is the only non-idempotent call and is never
	// re-sent. Everything else tolerates re-sends.
	attempts := c.retryMax
	if method == http.MethodPost && path == "/results/start" {
		attempts = 0
	}

	return withRetry(ctx, c.log, attempts, c.retryBackoff, func() error {
		return c.doOnce(ctx, method, path, payload, out, pg)
	})
}

func (c *SessionClient) doOnce(ctx context.Context, method, path string, payload []byte, out interface{}, pg *response.Pagination) error {
	var bodyReader *bytes.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return apierr.Wrap(apierr.ErrInvalidPayload, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, refused connections, DNS failures. The context
		// error is preserved in the chain for callers that care.
		return apierr.Wrap(apierr.ErrNetwork, err)
	}
	defer resp.Body.Close()

	var env response.Envelope
	if decErr := json.NewDecoder(resp.Body).Decode(&env); decErr != nil {
		if resp.StatusCode >= 400 {
			return apierr.FromStatus(resp.StatusCode, "", "")
		}
		return apierr.Wrap(apierr.ErrServer, decErr)
	}

	if resp.StatusCode >= 400 {
		backendCode, message := "", ""
		if env.Error != nil {
			backendCode = string(env.Error.Code)
			message = env.Error.Message
		}
		apiErr := apierr.FromStatus(resp.StatusCode, backendCode, message)
		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("code", string(apiErr.Code)).
			Msg("API call failed")
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apierr.Wrap(apierr.ErrServer, err)
		}
	}
	if pg != nil && env.Pagination != nil {
		*pg = *env.Pagination
	}
	return nil
}
