package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission statuses cover the full pipeline lifecycle.
const (
	SubmissionStatusPending    = "pending"
	SubmissionStatusProcessing = "processing"
	SubmissionStatusCompleted  = "completed"
	SubmissionStatusFailed     = "failed"
)

// Submission part kinds.
const (
	SubmissionPartKindText = "text"
	SubmissionPartKindFile = "file"
)

// Submission represents a unit of student work awaiting or holding AI feedback.
// The pipeline mutates status, feedback and last_error; it never deletes rows.
type Submission struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	AssignmentID uint             `gorm:"not null;index" json:"assignment_id"`
	AuthorID     uint             `gorm:"not null;index" json:"author_id"`
	RubricID     uint             `gorm:"not null" json:"rubric_id"`
	Status       string           `gorm:"size:32;not null" json:"status"`
	Feedback     datatypes.JSON   `json:"feedback"`
	LastError    string           `gorm:"type:text" json:"last_error"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Parts        []SubmissionPart `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"parts"`
	Rubric       Rubric           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"rubric"`
}

// IsTerminal reports whether the pipeline has finished with this submission.
func (s Submission) IsTerminal() bool {
	return s.Status == SubmissionStatusCompleted || s.Status == SubmissionStatusFailed
}

// SubmissionPart is one raw unit of the submission payload, either an inline
// text block or uploaded file bytes. Order is significant.
type SubmissionPart struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	SubmissionID uint   `gorm:"not null;index" json:"submission_id"`
	Position     int    `gorm:"not null" json:"position"`
	Kind         string `gorm:"size:16;not null" json:"kind"`
	Text         string `gorm:"type:text" json:"text,omitempty"`
	Data         []byte `json:"-"`
	FileName     string `gorm:"size:255" json:"file_name,omitempty"`
	MediaType    string `gorm:"size:128" json:"media_type,omitempty"`
	ByteSize     int64  `json:"byte_size"`
}
