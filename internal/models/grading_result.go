package models

import (
	"time"

	"gorm.io/datatypes"
)

// GradingResult captures the validated AI feedback for a submission together
// with usage metadata. A submission holds at most one current result; retries
// overwrite via upsert on submission_id (last-write-wins).
type GradingResult struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	SubmissionID   uint           `gorm:"not null;uniqueIndex" json:"submission_id"`
	OverallScore   float64        `gorm:"not null" json:"overall_score"`
	Summary        string         `gorm:"type:text" json:"summary"`
	Strengths      datatypes.JSON `json:"strengths"`
	Improvements   datatypes.JSON `json:"improvements"`
	Suggestions    datatypes.JSON `json:"suggestions"`
	CriteriaScores datatypes.JSON `json:"criteria_scores"`
	Model          string         `gorm:"size:128" json:"model"`
	PromptTokens   int            `json:"prompt_tokens"`
	OutputTokens   int            `json:"output_tokens"`
	UsageObserved  bool           `json:"usage_observed"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
