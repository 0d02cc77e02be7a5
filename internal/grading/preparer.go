package grading

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/oku-edu/oku-go-api/internal/models"
	"github.com/oku-edu/oku-go-api/pkg/ai"
)

// DefaultInlineLimit is the byte ceiling under which image parts are inlined
// as base64 instead of registered with the blob store. The remote protocol
// has a hard request-size ceiling, so anything above must go out of band.
const DefaultInlineLimit = 300 * 1024

// BlobStore registers large binary content out of band and returns a
// reference the grading service can fetch.
type BlobStore interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// Preparer converts a submission's raw payload into model-ready content
// parts. It holds no per-job state; parts are rebuilt fresh each attempt.
type Preparer struct {
	store       BlobStore
	inlineLimit int64
	logger      zerolog.Logger
}

// NewPreparer constructs a content preparer.
func NewPreparer(store BlobStore, inlineLimit int64, logger zerolog.Logger) *Preparer {
	if inlineLimit <= 0 {
		inlineLimit = DefaultInlineLimit
	}

	return &Preparer{
		store:       store,
		inlineLimit: inlineLimit,
		logger:      logger.With().Str("component", "content_preparer").Logger(),
	}
}

// Prepare maps every raw part in payload order: text inlines always, small
// images inline as base64, everything else is registered with the blob store
// and referenced. A registration failure aborts the whole attempt with a
// retryable upload error.
func (p *Preparer) Prepare(ctx context.Context, submission models.Submission) ([]ai.ContentPart, error) {
	raw := make([]models.SubmissionPart, len(submission.Parts))
	copy(raw, submission.Parts)
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Position < raw[j].Position })

	parts := make([]ai.ContentPart, 0, len(raw))
	for _, part := range raw {
		switch part.Kind {
		case models.SubmissionPartKindText:
			if strings.TrimSpace(part.Text) == "" {
				continue
			}
			parts = append(parts, ai.TextPart(part.Text))

		case models.SubmissionPartKindFile:
			prepared, err := p.prepareFile(ctx, submission.ID, part)
			if err != nil {
				return nil, err
			}
			parts = append(parts, prepared)

		default:
			return nil, NewError(ErrTransient, fmt.Sprintf("unknown submission part kind %q", part.Kind))
		}
	}

	if len(parts) == 0 {
		return nil, NewError(ErrTransient, "submission has no gradable content")
	}

	return parts, nil
}

func (p *Preparer) prepareFile(ctx context.Context, submissionID uint, part models.SubmissionPart) (ai.ContentPart, error) {
	mediaType := strings.TrimSpace(part.MediaType)
	if mediaType == "" {
		mediaType = mimetype.Detect(part.Data).String()
	}

	size := part.ByteSize
	if size == 0 {
		size = int64(len(part.Data))
	}

	if strings.HasPrefix(mediaType, "image/") && size <= p.inlineLimit {
		return ai.InlinePart(part.Data, mediaType), nil
	}

	if p.store == nil {
		return ai.ContentPart{}, NewError(ErrUpload, "no blob store configured for oversized part")
	}

	name := part.FileName
	if name == "" {
		name = fmt.Sprintf("submission-%d-part-%d", submissionID, part.Position)
	}

	reference, err := p.store.Upload(ctx, name, bytes.NewReader(part.Data))
	if err != nil {
		return ai.ContentPart{}, WrapError(ErrUpload, "blob registration failed", err)
	}

	p.logger.Debug().
		Uint("submission_id", submissionID).
		Str("media_type", mediaType).
		Int64("bytes", size).
		Msg("part registered with blob store")

	return ai.ExternalPart(reference, mediaType), nil
}
