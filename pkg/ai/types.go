package ai

import "context"

// PartKind discriminates the content part union.
type PartKind string

// Content part kinds sent to the grading model.
const (
	PartText         PartKind = "text"
	PartInlineBlob   PartKind = "inline_blob"
	PartExternalBlob PartKind = "external_blob"
)

// ContentPart is a typed unit of submission content. Exactly one of the
// payload fields is populated depending on Kind.
type ContentPart struct {
	Kind      PartKind
	Text      string
	Data      []byte
	Reference string
	MediaType string
}

// TextPart builds an inline text part.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

// InlinePart builds a part carrying raw bytes to be inlined in the request.
func InlinePart(data []byte, mediaType string) ContentPart {
	return ContentPart{Kind: PartInlineBlob, Data: data, MediaType: mediaType}
}

// ExternalPart builds a part referencing a previously registered blob.
func ExternalPart(reference, mediaType string) ContentPart {
	return ContentPart{Kind: PartExternalBlob, Reference: reference, MediaType: mediaType}
}

// FinishReason signals why the model stopped generating.
type FinishReason string

// Finish reasons normalised across providers.
const (
	FinishComplete      FinishReason = "complete"
	FinishTruncated     FinishReason = "truncated"
	FinishContentPolicy FinishReason = "content_policy"
	FinishUnknown       FinishReason = "unknown"
)

// Usage reports token consumption for one call. Observed is false when the
// provider omitted usage metadata; the zero counts are then flags, not facts.
type Usage struct {
	PromptTokens int  `json:"prompt_tokens"`
	OutputTokens int  `json:"output_tokens"`
	Observed     bool `json:"observed"`
}

// Request describes one streamed grading call.
type Request struct {
	Model             string
	SystemInstruction string
	Parts             []ContentPart
	Temperature       float32
	TopP              float32
	MaxOutputTokens   int
}

// Outcome is the folded result of consuming one response stream.
type Outcome struct {
	Text   string
	Finish FinishReason
	Usage  Usage
}

// Grader issues a single streamed call against a grading model and folds the
// stream into an Outcome. Budget escalation and validation live above this.
type Grader interface {
	Stream(ctx context.Context, req Request) (Outcome, error)
}
