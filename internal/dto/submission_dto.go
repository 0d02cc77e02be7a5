package dto

import (
	"encoding/json"
	"time"

	"github.com/oku-edu/oku-go-api/internal/models"
)

// SubmissionCreateRequest is the multipart intake payload. Files ride
// alongside as form uploads.
type SubmissionCreateRequest struct {
	AssignmentID uint   `form:"assignment_id" validate:"required"`
	RubricID     uint   `form:"rubric_id" validate:"required"`
	Text         string `form:"text"`
}

// SubmissionPartResponse describes one raw payload part without its bytes.
type SubmissionPartResponse struct {
	Position  int    `json:"position"`
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	ByteSize  int64  `json:"byte_size"`
}

// SubmissionResponse is the API shape of a submission.
type SubmissionResponse struct {
	ID           uint                     `json:"id"`
	AssignmentID uint                     `json:"assignment_id"`
	AuthorID     uint                     `json:"author_id"`
	RubricID     uint                     `json:"rubric_id"`
	Status       string                   `json:"status"`
	Feedback     json.RawMessage          `json:"feedback,omitempty"`
	LastError    string                   `json:"last_error,omitempty"`
	Parts        []SubmissionPartResponse `json:"parts"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

// NewSubmissionResponse maps a submission model onto its API shape.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	parts := make([]SubmissionPartResponse, 0, len(submission.Parts))
	for _, part := range submission.Parts {
		parts = append(parts, SubmissionPartResponse{
			Position:  part.Position,
			Kind:      part.Kind,
			Text:      part.Text,
			FileName:  part.FileName,
			MediaType: part.MediaType,
			ByteSize:  part.ByteSize,
		})
	}

	return SubmissionResponse{
		ID:           submission.ID,
		AssignmentID: submission.AssignmentID,
		AuthorID:     submission.AuthorID,
		RubricID:     submission.RubricID,
		Status:       submission.Status,
		Feedback:     json.RawMessage(submission.Feedback),
		LastError:    submission.LastError,
		Parts:        parts,
		CreatedAt:    submission.CreatedAt,
		UpdatedAt:    submission.UpdatedAt,
	}
}

// GradingResultResponse is the API shape of a persisted grading result.
type GradingResultResponse struct {
	SubmissionID   uint            `json:"submission_id"`
	OverallScore   float64         `json:"overall_score"`
	Summary        string          `json:"summary"`
	Strengths      json.RawMessage `json:"strengths"`
	Improvements   json.RawMessage `json:"improvements"`
	Suggestions    json.RawMessage `json:"suggestions"`
	CriteriaScores json.RawMessage `json:"criteria_scores"`
	Model          string          `json:"model"`
	PromptTokens   int             `json:"prompt_tokens"`
	OutputTokens   int             `json:"output_tokens"`
	UsageObserved  bool            `json:"usage_observed"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewGradingResultResponse maps a grading result model onto its API shape.
func NewGradingResultResponse(result models.GradingResult) GradingResultResponse {
	return GradingResultResponse{
		SubmissionID:   result.SubmissionID,
		OverallScore:   result.OverallScore,
		Summary:        result.Summary,
		Strengths:      json.RawMessage(result.Strengths),
		Improvements:   json.RawMessage(result.Improvements),
		Suggestions:    json.RawMessage(result.Suggestions),
		CriteriaScores: json.RawMessage(result.CriteriaScores),
		Model:          result.Model,
		PromptTokens:   result.PromptTokens,
		OutputTokens:   result.OutputTokens,
		UsageObserved:  result.UsageObserved,
		CreatedAt:      result.CreatedAt,
	}
}
