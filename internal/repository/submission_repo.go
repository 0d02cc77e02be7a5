package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oku-edu/oku-go-api/internal/models"
)

// SubmissionRepository defines data operations for submissions. The grading
// pipeline only ever mutates status, feedback and last_error.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	SetStatus(ctx context.Context, id uint, status string, lastError string) error
	SetCompleted(ctx context.Context, id uint, feedback datatypes.JSON) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Parts", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Rubric.Criteria", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Rubric").
		First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) SetStatus(ctx context.Context, id uint, status string, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		}).Error
}

func (r *submissionRepository) SetCompleted(ctx context.Context, id uint, feedback datatypes.JSON) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.SubmissionStatusCompleted,
			"feedback":   feedback,
			"last_error": "",
		}).Error
}
