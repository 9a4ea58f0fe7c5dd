// Package apierr defines the typed error taxonomy shared by the session
// client and the session controller. Every failure crossing the client
// boundary is one of these — callers never see a raw transport error.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCode is a typed error code enum for consistent error identification.
type ErrCode string

const (
	// ─── Controller preconditions ──────────────────────────────────────
	ErrNoActiveSession   ErrCode = "NO_ACTIVE_SESSION"
	ErrAlreadyStarting   ErrCode = "SESSION_ALREADY_STARTING"
	ErrAlreadyFinalizing ErrCode = "ALREADY_FINALIZING"
	ErrInvalidQuestion   ErrCode = "INVALID_QUESTION"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"

	// ─── Backend-reported start failures ───────────────────────────────
	ErrAttemptLimitExceeded ErrCode = "ATTEMPT_LIMIT_EXCEEDED"
	ErrExamNotOpen          ErrCode = "EXAM_NOT_OPEN"

	// ─── Request/resource failures ─────────────────────────────────────
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrNotFound       ErrCode = "NOT_FOUND"
	ErrUnauthorized   ErrCode = "UNAUTHORIZED"

	// ─── Transient failures ────────────────────────────────────────────
	ErrNetwork ErrCode = "NETWORK_ERROR"
	ErrServer  ErrCode = "SERVER_ERROR"
)

// Error is the discriminated failure returned by the session client and
// controller. StatusCode is the HTTP status, or 0 if the request never
// completed. Cause holds the wrapped transport error, if any.
type Error struct {
	Code       ErrCode
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the operation may be retried with backoff.
func (e *Error) Retryable() bool {
	return e.Code == ErrNetwork || e.Code == ErrServer
}

// New constructs an Error with the default message for the code.
func New(code ErrCode) *Error {
	return &Error{Code: code, Message: GetMessage(code)}
}

// Newf constructs an Error with a formatted message.
func Newf(code ErrCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error around an underlying transport error.
func Wrap(code ErrCode, cause error) *Error {
	return &Error{Code: code, Message: GetMessage(code), Cause: cause}
}

// CodeOf extracts the ErrCode from err, or "" if err is not an *Error.
func CodeOf(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// FromStatus classifies an HTTP response into an Error. backendCode is
// the error code from the response envelope, if the body was decodable.
func FromStatus(status int, backendCode, message string) *Error {
	code := classify(status, ErrCode(backendCode))
	if message == "" {
		message = GetMessage(code)
	}
	return &Error{Code: code, Message: message, StatusCode: status}
}

func classify(status int, backendCode ErrCode) ErrCode {
	// The backend's own code wins when it maps onto the taxonomy.
	switch backendCode {
	case ErrAttemptLimitExceeded, ErrExamNotOpen, ErrInvalidQuestion,
		ErrNoActiveSession, ErrInvalidPayload, ErrNotFound, ErrUnauthorized:
		return backendCode
	}

	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrServer
	case status >= 400:
		return ErrInvalidPayload
	default:
		return ErrServer
	}
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrNoActiveSession:
		return "No exam attempt is currently in progress."
	case ErrAlreadyStarting:
		return "An attempt is already being started. Wait for it to finish."
	case ErrAlreadyFinalizing:
		return "The attempt is already being submitted. Wait for it to finish."
	case ErrInvalidQuestion:
		return "The question is not part of the current attempt."
	case ErrSessionClosed:
		return "The exam session has been closed."
	case ErrAttemptLimitExceeded:
		return "Maximum number of attempts reached for this exam."
	case ErrExamNotOpen:
		return "The exam is not currently open for new attempts."
	case ErrInvalidPayload:
		return "The request payload was rejected by the server."
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrUnauthorized:
		return "Authentication failed. The access token may have expired."
	case ErrNetwork:
		return "Could not reach the exam server."
	case ErrServer:
		return "The exam server reported an internal error."
	default:
		return "An unexpected error occurred."
	}
}
