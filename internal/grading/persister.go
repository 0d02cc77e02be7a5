package grading

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/oku-edu/oku-go-api/internal/models"
	"github.com/oku-edu/oku-go-api/internal/repository"
)

// Persister normalises validated feedback and commits the grading outcome.
// Persistence is idempotent: results upsert on submission_id, so redelivering
// a job after a crash converges on the same final state.
type Persister struct {
	submissions repository.SubmissionRepository
	results     repository.GradingResultRepository
	sanitizer   *bluemonday.Policy
	events      *Events
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewPersister constructs the result persister.
func NewPersister(submissions repository.SubmissionRepository, results repository.GradingResultRepository, events *Events, logger zerolog.Logger) *Persister {
	return &Persister{
		submissions: submissions,
		results:     results,
		sanitizer:   bluemonday.StrictPolicy(),
		events:      events,
		tracer:      otel.Tracer("github.com/oku-edu/oku-go-api/internal/grading/persister"),
		logger:      logger.With().Str("component", "result_persister").Logger(),
	}
}

// PersistResult writes the GradingResult, marks the submission completed and
// publishes the lifecycle event.
func (p *Persister) PersistResult(parent context.Context, submissionID uint, report Report) error {
	ctx, span := p.tracer.Start(parent, "grading.persist", trace.WithAttributes(
		attribute.Int("submission_id", int(submissionID)),
	))
	defer span.End()

	feedback := p.sanitizeFeedback(report.Feedback)
	if feedback.OverallScore < 0 || feedback.OverallScore > 100 {
		return NewError(ErrSchemaValidation,
			fmt.Sprintf("overall score %.2f outside [0,100]", feedback.OverallScore))
	}

	strengths, err := json.Marshal(feedback.Strengths)
	if err != nil {
		return fmt.Errorf("marshal strengths: %w", err)
	}
	improvements, err := json.Marshal(feedback.Improvements)
	if err != nil {
		return fmt.Errorf("marshal improvements: %w", err)
	}
	suggestions, err := json.Marshal(feedback.Suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	criteria, err := json.Marshal(feedback.CriteriaScores)
	if err != nil {
		return fmt.Errorf("marshal criteria scores: %w", err)
	}

	result := models.GradingResult{
		SubmissionID:   submissionID,
		OverallScore:   feedback.OverallScore,
		Summary:        feedback.Summary,
		Strengths:      strengths,
		Improvements:   improvements,
		Suggestions:    suggestions,
		CriteriaScores: criteria,
		Model:          report.Model,
		PromptTokens:   report.Usage.PromptTokens,
		OutputTokens:   report.Usage.OutputTokens,
		UsageObserved:  report.Usage.Observed,
	}

	if err := p.results.Upsert(ctx, &result); err != nil {
		return WrapError(ErrTransient, "persist grading result", err)
	}

	serialized, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	if err := p.submissions.SetCompleted(ctx, submissionID, datatypes.JSON(serialized)); err != nil {
		return WrapError(ErrTransient, "mark submission completed", err)
	}

	p.events.PublishCompleted(submissionID, feedback.OverallScore)
	p.logger.Info().
		Uint("submission_id", submissionID).
		Float64("overall_score", feedback.OverallScore).
		Int("calls", report.Calls).
		Bool("repaired", report.Repaired).
		Msg("grading result persisted")

	return nil
}

// RecordFailure stores a human-readable error summary on the submission.
// Terminal failures move it to failed; retryable ones return it to pending
// while the queue waits out the backoff.
func (p *Persister) RecordFailure(ctx context.Context, submissionID uint, cause *Error, terminal bool) error {
	summary := Summary(cause.Kind)

	status := models.SubmissionStatusPending
	if terminal {
		status = models.SubmissionStatusFailed
	}

	if err := p.submissions.SetStatus(ctx, submissionID, status, summary); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}

	if terminal {
		p.events.PublishFailed(submissionID, summary)
	}

	p.logger.Warn().
		Uint("submission_id", submissionID).
		Str("kind", string(cause.Kind)).
		Bool("terminal", terminal).
		Msg("grading attempt failed")

	return nil
}

func (p *Persister) sanitizeFeedback(feedback Feedback) Feedback {
	feedback.Summary = p.sanitizer.Sanitize(feedback.Summary)
	feedback.Strengths = p.sanitizeAll(feedback.Strengths)
	feedback.Improvements = p.sanitizeAll(feedback.Improvements)
	feedback.Suggestions = p.sanitizeAll(feedback.Suggestions)
	for i := range feedback.CriteriaScores {
		feedback.CriteriaScores[i].Feedback = p.sanitizer.Sanitize(feedback.CriteriaScores[i].Feedback)
	}
	return feedback
}

func (p *Persister) sanitizeAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = p.sanitizer.Sanitize(v)
	}
	return out
}
