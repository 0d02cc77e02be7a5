package dto

import (
	"time"

	"github.com/oku-edu/oku-go-api/internal/models"
)

// RubricCriterionPayload is one criterion in a rubric creation request.
type RubricCriterionPayload struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	MaxScore    float64 `json:"max_score" validate:"required,gt=0"`
	Weight      float64 `json:"weight" validate:"gte=0"`
}

// RubricCreateRequest creates a rubric with its ordered criteria.
type RubricCreateRequest struct {
	Title    string                   `json:"title" validate:"required"`
	Criteria []RubricCriterionPayload `json:"criteria" validate:"required,min=1,dive"`
}

// RubricCriterionResponse is the API shape of a criterion.
type RubricCriterionResponse struct {
	Position    int     `json:"position"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MaxScore    float64 `json:"max_score"`
	Weight      float64 `json:"weight"`
}

// RubricResponse is the API shape of a rubric.
type RubricResponse struct {
	ID        uint                      `json:"id"`
	Title     string                    `json:"title"`
	AuthorID  uint                      `json:"author_id"`
	Criteria  []RubricCriterionResponse `json:"criteria"`
	CreatedAt time.Time                 `json:"created_at"`
}

// NewRubricResponse maps a rubric model onto its API shape.
func NewRubricResponse(rubric models.Rubric) RubricResponse {
	criteria := make([]RubricCriterionResponse, 0, len(rubric.Criteria))
	for _, criterion := range rubric.Criteria {
		criteria = append(criteria, RubricCriterionResponse{
			Position:    criterion.Position,
			Name:        criterion.Name,
			Description: criterion.Description,
			MaxScore:    criterion.MaxScore,
			Weight:      criterion.Weight,
		})
	}

	return RubricResponse{
		ID:        rubric.ID,
		Title:     rubric.Title,
		AuthorID:  rubric.AuthorID,
		Criteria:  criteria,
		CreatedAt: rubric.CreatedAt,
	}
}
