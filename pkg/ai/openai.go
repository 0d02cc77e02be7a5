package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oku",
		Subsystem: "ai",
		Name:      "call_duration_seconds",
		Help:      "Duration of streamed grading calls",
	}, []string{"model"})

	callFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oku",
		Subsystem: "ai",
		Name:      "call_failures_total",
		Help:      "Number of failed grading calls",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI grader.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Logger  zerolog.Logger
}

// OpenAIGrader implements Grader against the OpenAI chat completion API in
// streaming mode.
type OpenAIGrader struct {
	client *openai.Client
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIGrader{
		client: openai.NewClientWithConfig(clientConfig),
		tracer: otel.Tracer("github.com/oku-edu/oku-go-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_grader").Logger(),
	}, nil
}

// Stream issues one streamed chat completion and folds the chunks into an
// Outcome: accumulated text, the last observed finish reason, and usage
// metadata when the provider emitted it.
func (g *OpenAIGrader) Stream(parent context.Context, req Request) (Outcome, error) {
	ctx, span := g.tracer.Start(parent, "openai.stream", trace.WithAttributes(
		attribute.String("model", req.Model),
		attribute.Int("max_output_tokens", req.MaxOutputTokens),
	))
	defer span.End()

	start := time.Now()
	stream, err := g.client.CreateChatCompletionStream(ctx, buildChatRequest(req))
	if err != nil {
		callFailures.WithLabelValues(req.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, fmt.Errorf("openai stream: %w", err)
	}
	defer stream.Close()

	outcome := Outcome{Finish: FinishUnknown}
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			callFailures.WithLabelValues(req.Model).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return Outcome{}, fmt.Errorf("openai stream recv: %w", err)
		}

		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			outcome.Text += choice.Delta.Content
			if choice.FinishReason != "" {
				outcome.Finish = mapFinishReason(choice.FinishReason)
			}
		}

		if chunk.Usage != nil {
			outcome.Usage = Usage{
				PromptTokens: chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
				Observed:     true,
			}
		}
	}

	callDuration.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
	g.logger.Debug().
		Str("model", req.Model).
		Str("finish", string(outcome.Finish)).
		Int("chars", len(outcome.Text)).
		Msg("stream consumed")

	return outcome, nil
}

func buildChatRequest(req Request) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxOutputTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.SystemInstruction,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: buildMessageParts(req.Parts),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		StreamOptions:  &openai.StreamOptions{IncludeUsage: true},
	}
}

func buildMessageParts(parts []ContentPart) []openai.ChatMessagePart {
	out := make([]openai.ChatMessagePart, 0, len(parts))
	for _, part := range parts {
		switch part.Kind {
		case PartText:
			out = append(out, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: part.Text,
			})
		case PartInlineBlob:
			encoded := base64.StdEncoding.EncodeToString(part.Data)
			out = append(out, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", part.MediaType, encoded),
				},
			})
		case PartExternalBlob:
			out = append(out, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: part.Reference,
				},
			})
		}
	}
	return out
}

func mapFinishReason(reason openai.FinishReason) FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return FinishComplete
	case openai.FinishReasonLength:
		return FinishTruncated
	case openai.FinishReasonContentFilter:
		return FinishContentPolicy
	default:
		return FinishUnknown
	}
}
