package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oku-edu/oku-go-api/internal/models"
)

// GradingResultRepository persists validated AI feedback. Upsert keys on
// submission_id so redelivered jobs overwrite rather than duplicate.
type GradingResultRepository interface {
	Upsert(ctx context.Context, result *models.GradingResult) error
	GetBySubmissionID(ctx context.Context, submissionID uint) (models.GradingResult, error)
}

type gradingResultRepository struct {
	db *gorm.DB
}

// NewGradingResultRepository instantiates the repository.
func NewGradingResultRepository(db *gorm.DB) GradingResultRepository {
	return &gradingResultRepository{db: db}
}

func (r *gradingResultRepository) Upsert(ctx context.Context, result *models.GradingResult) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "submission_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"overall_score", "summary", "strengths", "improvements",
				"suggestions", "criteria_scores", "model",
				"prompt_tokens", "output_tokens", "usage_observed", "updated_at",
			}),
		}).
		Create(result).Error
}

func (r *gradingResultRepository) GetBySubmissionID(ctx context.Context, submissionID uint) (models.GradingResult, error) {
	var result models.GradingResult
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&result).Error; err != nil {
		return models.GradingResult{}, err
	}

	return result, nil
}
