package grading

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/oku-edu/oku-go-api/internal/models"
	"github.com/oku-edu/oku-go-api/internal/queue"
	"github.com/oku-edu/oku-go-api/internal/repository"
)

// Pipeline runs one grading attempt end to end: load submission, prepare
// content, drive the adapter, persist the outcome. It holds no per-job state,
// which is what makes at-least-once redelivery safe.
type Pipeline struct {
	submissions repository.SubmissionRepository
	preparer    *Preparer
	adapter     *Adapter
	persister   *Persister
	logger      zerolog.Logger
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(submissions repository.SubmissionRepository, preparer *Preparer, adapter *Adapter, persister *Persister, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		submissions: submissions,
		preparer:    preparer,
		adapter:     adapter,
		persister:   persister,
		logger:      logger.With().Str("component", "grading_pipeline").Logger(),
	}
}

// Process executes one job attempt. Errors bubble unclassified; the worker
// boundary classifies them and decides the nack.
func (p *Pipeline) Process(ctx context.Context, job *queue.Job) error {
	submission, err := p.submissions.GetByID(ctx, job.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return WrapError(ErrTransient, "submission missing", err)
		}
		return WrapError(ErrTransient, "load submission", err)
	}

	// Redelivery after a crash that happened post-persist: nothing to do.
	if submission.Status == models.SubmissionStatusCompleted {
		p.logger.Info().
			Uint("submission_id", submission.ID).
			Str("job_id", job.ID).
			Msg("submission already completed, skipping redelivered job")
		return nil
	}

	if err := p.submissions.SetStatus(ctx, submission.ID, models.SubmissionStatusProcessing, ""); err != nil {
		return WrapError(ErrTransient, "mark submission processing", err)
	}

	parts, err := p.preparer.Prepare(ctx, submission)
	if err != nil {
		return err
	}

	report, err := p.adapter.Grade(ctx, submission.Rubric, parts)
	if err != nil {
		return err
	}

	return p.persister.PersistResult(ctx, submission.ID, report)
}
