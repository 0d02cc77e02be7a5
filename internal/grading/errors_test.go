package grading

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestClassifyPassesThroughTypedErrors(t *testing.T) {
	typed := NewError(ErrContentPolicy, "rejected")
	wrapped := fmt.Errorf("attempt failed: %w", typed)

	got := Classify(wrapped)
	require.Same(t, typed, got)
}

func TestClassifyMapsRateLimit(t *testing.T) {
	apiErr := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}

	got := Classify(apiErr)
	require.Equal(t, ErrRateLimit, got.Kind)
	require.True(t, got.Retryable())
}

func TestClassifyMapsServerErrorsToTransient(t *testing.T) {
	for _, code := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable} {
		got := Classify(&openai.APIError{HTTPStatusCode: code})
		require.Equal(t, ErrTransient, got.Kind, "status %d", code)
	}
}

func TestClassifyMapsDeadlineToTransient(t *testing.T) {
	got := Classify(fmt.Errorf("call: %w", context.DeadlineExceeded))
	require.Equal(t, ErrTransient, got.Kind)

	got = Classify(context.Canceled)
	require.Equal(t, ErrTransient, got.Kind)
}

func TestClassifyDefaultsToTransient(t *testing.T) {
	got := Classify(errors.New("something odd"))
	require.Equal(t, ErrTransient, got.Kind)
	require.True(t, got.Retryable())
}

func TestRetryableByKind(t *testing.T) {
	retryable := []ErrorKind{ErrTransient, ErrRateLimit, ErrTruncation, ErrSchemaValidation, ErrUpload}
	for _, kind := range retryable {
		require.True(t, NewError(kind, "x").Retryable(), "kind %s", kind)
	}
	require.False(t, NewError(ErrContentPolicy, "x").Retryable())

	require.False(t, Retryable(nil))
	require.True(t, Retryable(errors.New("unknown")))
}

func TestErrorStringAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := WrapError(ErrUpload, "registration failed", cause)

	require.Equal(t, "upload: registration failed: root", err.Error())
	require.ErrorIs(t, err, cause)

	bare := NewError(ErrTruncation, "too long")
	require.Equal(t, "truncation: too long", bare.Error())
}

func TestSummaryNeverExposesInternals(t *testing.T) {
	for _, kind := range []ErrorKind{ErrTransient, ErrRateLimit, ErrTruncation, ErrSchemaValidation, ErrContentPolicy, ErrUpload} {
		summary := Summary(kind)
		require.NotEmpty(t, summary)
		require.NotContains(t, summary, "token")
		require.NotContains(t, summary, "schema")
	}
}
