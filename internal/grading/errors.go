package grading

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorKind classifies every failure the pipeline can produce. The worker
// boundary translates each kind into exactly one nack decision.
type ErrorKind string

// Failure kinds.
const (
	ErrTransient        ErrorKind = "transient"
	ErrRateLimit        ErrorKind = "rate_limit"
	ErrTruncation       ErrorKind = "truncation"
	ErrSchemaValidation ErrorKind = "schema_validation"
	ErrContentPolicy    ErrorKind = "content_policy"
	ErrUpload           ErrorKind = "upload"
)

// Error is the typed pipeline failure. Raw carries the offending model output
// for schema failures so operators can diagnose drift.
type Error struct {
	Kind    ErrorKind
	Message string
	Raw     string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a fresh job attempt may succeed. Truncation and
// schema failures stay retryable at the job level: a new attempt restarts the
// budget tier and model output is nondeterministic. Only a content-policy
// rejection is terminal.
func (e *Error) Retryable() bool {
	return e.Kind != ErrContentPolicy
}

// NewError builds a typed pipeline error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError attaches a cause to a typed pipeline error.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Classify maps any error surfacing at the worker boundary onto the
// taxonomy. Unknown errors default to transient so infrastructure hiccups
// get retried rather than burying submissions.
func Classify(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return WrapError(ErrRateLimit, "grading service throttled the request", err)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return WrapError(ErrTransient, "grading service unavailable", err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return WrapError(ErrTransient, "attempt deadline exceeded", err)
	}

	return WrapError(ErrTransient, "unexpected pipeline failure", err)
}

// Retryable reports whether the error warrants another job attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable()
}

// Summary renders the student/instructor facing description for a failure
// kind. It never exposes protocol internals or stack traces.
func Summary(kind ErrorKind) string {
	switch kind {
	case ErrContentPolicy:
		return "feedback could not be generated because the submission was rejected by the content policy"
	case ErrSchemaValidation, ErrTruncation:
		return "feedback generation produced an unusable response, please resubmit"
	default:
		return "feedback generation failed, please resubmit"
	}
}
