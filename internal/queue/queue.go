package queue

import (
	"context"
	"errors"
	"time"
)

// JobState enumerates the queue-side lifecycle of a grading job.
type JobState string

// Job states.
const (
	StateWaiting   JobState = "waiting"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Job tracks one attempt-series to grade a single submission. Attempt counts
// claims: it is incremented when a worker dequeues the job, so it never
// exceeds MaxAttempts.
type Job struct {
	ID           string `json:"id"`
	SubmissionID uint   `json:"submission_id"`
	// CorrelationID ties worker logs back to the intake request.
	CorrelationID string    `json:"correlation_id,omitempty"`
	Attempt       int       `json:"attempt"`
	MaxAttempts   int       `json:"max_attempts"`
	State         JobState  `json:"state"`
	LastError     string    `json:"last_error,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ErrJobNotFound indicates the referenced job does not exist in the store.
var ErrJobNotFound = errors.New("job not found")

// Queue decouples submission intake from grading. Implementations guarantee
// at-least-once delivery: a claimed job whose worker dies is redelivered once
// its visibility timeout expires.
type Queue interface {
	// Enqueue appends a waiting job. Callers treat it as fire-and-forget.
	Enqueue(ctx context.Context, job *Job) error
	// Dequeue atomically claims one due job, transitioning it to active.
	// It returns (nil, nil) when no job is due.
	Dequeue(ctx context.Context) (*Job, error)
	// Ack marks the job completed and removes it from future polling.
	Ack(ctx context.Context, jobID string) error
	// Nack reschedules the job with backoff when the failure is retryable
	// and attempts remain, otherwise moves it to the terminal failed state.
	Nack(ctx context.Context, jobID string, cause error, retryable bool) error
}
