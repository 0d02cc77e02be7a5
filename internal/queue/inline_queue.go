package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler processes one claimed job attempt.
type Handler func(ctx context.Context, job *Job) error

// InlineQueue is the fallback Queue used when no durable backing store is
// configured. Enqueue runs the job synchronously in the calling context,
// driving the same attempt/retry state machine a worker would, up to
// MaxAttempts. Failures surface to the caller instead of being retried in
// the background; job semantics are otherwise identical.
type InlineQueue struct {
	handler     Handler
	retryable   func(error) bool
	maxAttempts int
	logger      zerolog.Logger
	now         func() time.Time
}

// NewInlineQueue constructs the synchronous fallback queue.
func NewInlineQueue(handler Handler, maxAttempts int, retryable func(error) bool, logger zerolog.Logger) *InlineQueue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}

	return &InlineQueue{
		handler:     handler,
		retryable:   retryable,
		maxAttempts: maxAttempts,
		logger:      logger.With().Str("component", "inline_queue").Logger(),
		now:         time.Now,
	}
}

// Enqueue executes the job in place. Inline attempts retry immediately
// rather than sleeping through a backoff window.
func (q *InlineQueue) Enqueue(ctx context.Context, job *Job) error {
	now := q.now()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = q.maxAttempts
	}
	job.EnqueuedAt = now
	job.ScheduledAt = now

	var lastErr error
	for job.Attempt < job.MaxAttempts {
		job.Attempt++
		job.State = StateActive
		job.UpdatedAt = q.now()

		lastErr = q.handler(ctx, job)
		if lastErr == nil {
			job.State = StateCompleted
			job.LastError = ""
			job.UpdatedAt = q.now()
			return nil
		}

		job.LastError = lastErr.Error()
		if !q.retryable(lastErr) {
			break
		}

		q.logger.Warn().
			Str("job_id", job.ID).
			Int("attempt", job.Attempt).
			Err(lastErr).
			Msg("inline attempt failed, retrying")
	}

	job.State = StateFailed
	job.UpdatedAt = q.now()

	return lastErr
}

// Dequeue never yields jobs: inline jobs complete inside Enqueue.
func (q *InlineQueue) Dequeue(ctx context.Context) (*Job, error) {
	return nil, nil
}

// Ack is not applicable to inline jobs.
func (q *InlineQueue) Ack(ctx context.Context, jobID string) error {
	return ErrJobNotFound
}

// Nack is not applicable to inline jobs.
func (q *InlineQueue) Nack(ctx context.Context, jobID string, cause error, retryable bool) error {
	return ErrJobNotFound
}
