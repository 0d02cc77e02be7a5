package grading

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oku-edu/oku-go-api/internal/models"
	"github.com/oku-edu/oku-go-api/internal/observability"
	"github.com/oku-edu/oku-go-api/pkg/ai"
)

// AdapterConfig tunes the grading call protocol.
type AdapterConfig struct {
	Model string
	// InitialBudget is the output token ceiling for the first call; on
	// truncation the call is reissued once with EscalatedBudget.
	InitialBudget   int
	EscalatedBudget int
	Temperature     float32
	TopP            float32
}

func (c *AdapterConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.InitialBudget <= 0 {
		c.InitialBudget = 1024
	}
	if c.EscalatedBudget <= c.InitialBudget {
		c.EscalatedBudget = c.InitialBudget * 4
	}
	if c.TopP == 0 {
		c.TopP = 1
	}
}

// Report is the structured outcome of one adapter call, returned instead of
// side-channel logging so callers and tests can assert on it directly.
type Report struct {
	Feedback Feedback
	Usage    ai.Usage
	Model    string
	Calls    int
	Repaired bool
}

// Adapter drives the call protocol against the grading model: budget
// escalation on truncation, streamed response assembly, strict schema
// validation with one bounded repair pass.
type Adapter struct {
	grader ai.Grader
	cfg    AdapterConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewAdapter constructs the grading adapter.
func NewAdapter(grader ai.Grader, cfg AdapterConfig, logger zerolog.Logger) *Adapter {
	cfg.applyDefaults()

	return &Adapter{
		grader: grader,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/oku-edu/oku-go-api/internal/grading/adapter"),
		logger: logger.With().Str("component", "grading_adapter").Logger(),
	}
}

// Grade executes one full adapter attempt. The returned Report carries call
// and usage accounting even when the attempt fails partway.
func (a *Adapter) Grade(parent context.Context, rubric models.Rubric, parts []ai.ContentPart) (Report, error) {
	ctx, span := a.tracer.Start(parent, "grading.grade", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
		attribute.Int("parts", len(parts)),
	))
	defer span.End()

	report := Report{Model: a.cfg.Model}
	instruction := BuildInstruction(rubric)

	outcome, err := a.call(ctx, instruction, parts, a.cfg.InitialBudget, &report)
	if err != nil {
		return report, err
	}

	if outcome.Finish == ai.FinishTruncated {
		a.logger.Info().
			Int("initial_budget", a.cfg.InitialBudget).
			Int("escalated_budget", a.cfg.EscalatedBudget).
			Msg("response truncated, escalating token budget")

		outcome, err = a.call(ctx, instruction, parts, a.cfg.EscalatedBudget, &report)
		if err != nil {
			return report, err
		}
		if outcome.Finish == ai.FinishTruncated {
			return report, NewError(ErrTruncation,
				fmt.Sprintf("response still truncated at escalated budget %d", a.cfg.EscalatedBudget))
		}
	}

	if outcome.Finish == ai.FinishContentPolicy {
		return report, NewError(ErrContentPolicy, "grading service rejected the submission content")
	}

	feedback, err := decodeFeedback(outcome.Text)
	if err != nil {
		observability.RepairAttempts().Inc()
		report.Repaired = true

		repaired := Repair(outcome.Text)
		feedback, err = decodeFeedback(repaired)
		if err != nil {
			return report, &Error{
				Kind:    ErrSchemaValidation,
				Message: "model output failed schema validation after repair",
				Raw:     outcome.Text,
				Err:     err,
			}
		}
	}

	if len(feedback.CriteriaScores) != len(rubric.Criteria) {
		return report, &Error{
			Kind: ErrSchemaValidation,
			Message: fmt.Sprintf("expected %d criteria scores, model returned %d",
				len(rubric.Criteria), len(feedback.CriteriaScores)),
			Raw: outcome.Text,
		}
	}

	report.Feedback = feedback

	return report, nil
}

func (a *Adapter) call(ctx context.Context, instruction string, parts []ai.ContentPart, budget int, report *Report) (ai.Outcome, error) {
	report.Calls++

	outcome, err := a.grader.Stream(ctx, ai.Request{
		Model:             a.cfg.Model,
		SystemInstruction: instruction,
		Parts:             parts,
		Temperature:       a.cfg.Temperature,
		TopP:              a.cfg.TopP,
		MaxOutputTokens:   budget,
	})
	if err != nil {
		return ai.Outcome{}, err
	}

	// Later calls overwrite earlier usage: the kept response is the one
	// whose tokens we report.
	report.Usage = outcome.Usage
	if !outcome.Usage.Observed {
		a.logger.Warn().Str("model", a.cfg.Model).Msg("provider omitted usage metadata")
	}

	return outcome, nil
}
