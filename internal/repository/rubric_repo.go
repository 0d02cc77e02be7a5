package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oku-edu/oku-go-api/internal/models"
)

// RubricRepository defines data operations for rubrics.
type RubricRepository interface {
	Create(ctx context.Context, rubric *models.Rubric) error
	GetByID(ctx context.Context, id uint) (models.Rubric, error)
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository instantiates the repository.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func (r *rubricRepository) Create(ctx context.Context, rubric *models.Rubric) error {
	return r.db.WithContext(ctx).Create(rubric).Error
}

func (r *rubricRepository) GetByID(ctx context.Context, id uint) (models.Rubric, error) {
	var rubric models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&rubric, id).Error
	if err != nil {
		return models.Rubric{}, err
	}

	return rubric, nil
}
