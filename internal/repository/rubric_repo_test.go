package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oku-edu/oku-go-api/internal/models"
)

func TestRubricRepositoryCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRubricRepository(db)
	ctx := context.Background()

	rubric := models.Rubric{
		Title:    "Lab Report Rubric",
		AuthorID: 7,
		Criteria: []models.RubricCriterion{
			{Position: 1, Name: "Analysis", MaxScore: 20, Weight: 1},
			{Position: 0, Name: "Method", Description: "Experimental design", MaxScore: 10, Weight: 2},
		},
	}
	require.NoError(t, repo.Create(ctx, &rubric))
	require.NotZero(t, rubric.ID)

	loaded, err := repo.GetByID(ctx, rubric.ID)
	require.NoError(t, err)
	require.Equal(t, "Lab Report Rubric", loaded.Title)
	require.Len(t, loaded.Criteria, 2)
	require.Equal(t, "Method", loaded.Criteria[0].Name)
	require.Equal(t, "Experimental design", loaded.Criteria[0].Description)
	require.Equal(t, "Analysis", loaded.Criteria[1].Name)
}

func TestRubricRepositoryGetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRubricRepository(db)

	_, err := repo.GetByID(context.Background(), 123)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
