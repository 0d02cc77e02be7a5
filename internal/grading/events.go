package grading

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Lifecycle event subjects, relative to the configured base.
const (
	subjectCompleted = "completed"
	subjectFailed    = "failed"
)

// LifecycleEvent is the JSON payload published when a submission reaches a
// terminal grading state.
type LifecycleEvent struct {
	SubmissionID uint      `json:"submission_id"`
	Status       string    `json:"status"`
	OverallScore *float64  `json:"overall_score,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

// Events publishes grading lifecycle events over NATS. A nil connection
// disables publication without changing pipeline behaviour.
type Events struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewEvents constructs the event publisher. subjectBase defaults to
// "oku.grading".
func NewEvents(conn *nats.Conn, subjectBase string, logger zerolog.Logger) *Events {
	if subjectBase == "" {
		subjectBase = "oku.grading"
	}

	return &Events{
		conn:    conn,
		subject: subjectBase,
		logger:  logger.With().Str("component", "grading_events").Logger(),
	}
}

// PublishCompleted announces a successfully graded submission.
func (e *Events) PublishCompleted(submissionID uint, overallScore float64) {
	e.publish(subjectCompleted, LifecycleEvent{
		SubmissionID: submissionID,
		Status:       "completed",
		OverallScore: &overallScore,
		SentAt:       time.Now().UTC(),
	})
}

// PublishFailed announces a terminally failed submission.
func (e *Events) PublishFailed(submissionID uint, reason string) {
	e.publish(subjectFailed, LifecycleEvent{
		SubmissionID: submissionID,
		Status:       "failed",
		Reason:       reason,
		SentAt:       time.Now().UTC(),
	})
}

func (e *Events) publish(suffix string, event LifecycleEvent) {
	if e == nil || e.conn == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Error().Err(err).Msg("marshal lifecycle event")
		return
	}

	subject := e.subject + "." + suffix
	if err := e.conn.Publish(subject, payload); err != nil {
		// Event delivery is best effort; grading state already persisted.
		e.logger.Warn().Err(err).Str("subject", subject).Msg("publish lifecycle event")
	}
}
