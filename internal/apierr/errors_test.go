package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromStatusClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		backendCode string
		want        ErrCode
	}{
		{"backend code passes through", http.StatusConflict, "ATTEMPT_LIMIT_EXCEEDED", ErrAttemptLimitExceeded},
		{"unknown backend code falls back to status", http.StatusConflict, "SOMETHING_NEW", ErrInvalidPayload},
		{"401", http.StatusUnauthorized, "", ErrUnauthorized},
		{"404", http.StatusNotFound, "", ErrNotFound},
		{"500", http.StatusInternalServerError, "", ErrServer},
		{"503", http.StatusServiceUnavailable, "", ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatus(tt.status, tt.backendCode, "")
			if err.Code != tt.want {
				t.Errorf("got %s, want %s", err.Code, tt.want)
			}
			if err.StatusCode != tt.status {
				t.Errorf("status: got %d want %d", err.StatusCode, tt.status)
			}
			if err.Message == "" {
				t.Error("expected a default message")
			}
		})
	}
}

func TestRetryability(t *testing.T) {
	if !IsRetryable(New(ErrNetwork)) || !IsRetryable(New(ErrServer)) {
		t.Error("transient codes must be retryable")
	}
	for _, code := range []ErrCode{
		ErrNoActiveSession, ErrInvalidQuestion, ErrAttemptLimitExceeded,
		ErrExamNotOpen, ErrInvalidPayload, ErrUnauthorized, ErrSessionClosed,
	} {
		if IsRetryable(New(code)) {
			t.Errorf("%s must not be retryable", code)
		}
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrNetwork, cause)

	if !errors.Is(err, cause) {
		t.Error("cause lost from the chain")
	}
	if !IsCode(err, ErrNetwork) {
		t.Errorf("code lost: %v", err)
	}

	// Codes survive another layer of fmt wrapping.
	outer := fmt.Errorf("submit answer: %w", err)
	if !IsCode(outer, ErrNetwork) {
		t.Errorf("code lost through fmt.Errorf: %v", outer)
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("plain errors carry no code")
	}
}
