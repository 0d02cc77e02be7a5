package grading

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oku-edu/oku-go-api/internal/observability"
	"github.com/oku-edu/oku-go-api/internal/queue"
)

// PoolConfig tunes the worker pool.
type PoolConfig struct {
	// Workers is the number of concurrent poll loops, bounded in practice
	// by the grading service's rate limits.
	Workers int
	// PollInterval is the sleep between empty dequeue polls.
	PollInterval time.Duration
	// JobDeadline covers one attempt from preparation through validation.
	JobDeadline time.Duration
}

func (c *PoolConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.JobDeadline <= 0 {
		c.JobDeadline = 60 * time.Second
	}
}

// Pool runs N independent poll-dequeue-process-ack loops. Workers never share
// per-job state; every error is classified here, at the loop boundary, into
// exactly one nack decision.
type Pool struct {
	queue     queue.Queue
	pipeline  *Pipeline
	persister *Persister
	cfg       PoolConfig
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

// NewPool constructs the worker pool.
func NewPool(q queue.Queue, pipeline *Pipeline, persister *Persister, cfg PoolConfig, logger zerolog.Logger) *Pool {
	cfg.applyDefaults()

	return &Pool{
		queue:     q,
		pipeline:  pipeline,
		persister: persister,
		cfg:       cfg,
		logger:    logger.With().Str("component", "grading_workers").Logger(),
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}

	p.logger.Info().Int("workers", p.cfg.Workers).Msg("worker pool started")
}

// Wait blocks until every worker has drained and exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	logger := p.logger.With().Int("worker", id).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("dequeue failed")
			p.sleep(ctx)
			continue
		}
		if job == nil {
			p.sleep(ctx)
			continue
		}

		p.process(ctx, job, logger)
	}
}

func (p *Pool) process(parent context.Context, job *queue.Job, logger zerolog.Logger) {
	if job.CorrelationID != "" {
		logger = logger.With().Str("correlation_id", job.CorrelationID).Logger()
	}

	attemptCtx, cancel := context.WithTimeout(parent, p.cfg.JobDeadline)
	err := p.pipeline.Process(attemptCtx, job)
	cancel()

	// The attempt deadline may already have fired; finalisation must not
	// inherit it.
	finalizeCtx := context.WithoutCancel(parent)

	if err == nil {
		if ackErr := p.queue.Ack(finalizeCtx, job.ID); ackErr != nil {
			logger.Error().Err(ackErr).Str("job_id", job.ID).Msg("ack failed")
			return
		}
		observability.JobsProcessed().WithLabelValues("completed").Inc()
		observability.JobAttempts().Observe(float64(job.Attempt))
		return
	}

	cause := Classify(err)
	retryable := cause.Retryable()
	terminal := !retryable || job.Attempt >= job.MaxAttempts

	if persistErr := p.persister.RecordFailure(finalizeCtx, job.SubmissionID, cause, terminal); persistErr != nil {
		logger.Error().Err(persistErr).Str("job_id", job.ID).Msg("record failure failed")
	}

	if nackErr := p.queue.Nack(finalizeCtx, job.ID, cause, retryable); nackErr != nil {
		logger.Error().Err(nackErr).Str("job_id", job.ID).Msg("nack failed")
		return
	}

	outcome := "retried"
	if terminal {
		outcome = "failed"
		observability.JobAttempts().Observe(float64(job.Attempt))
	}
	observability.JobsProcessed().WithLabelValues(outcome).Inc()

	logger.Warn().
		Str("job_id", job.ID).
		Str("kind", string(cause.Kind)).
		Int("attempt", job.Attempt).
		Bool("terminal", terminal).
		Msg("job attempt failed")
}

func (p *Pool) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.PollInterval):
	}
}
