package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oku-edu/oku-go-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Rubric{}, &models.RubricCriterion{},
		&models.Submission{}, &models.SubmissionPart{},
		&models.GradingResult{},
	))

	return db
}

func seedRubric(t *testing.T, db *gorm.DB) models.Rubric {
	t.Helper()

	rubric := models.Rubric{
		Title:    "Essay Rubric",
		AuthorID: 1,
		Criteria: []models.RubricCriterion{
			{Position: 1, Name: "Style", MaxScore: 10, Weight: 1},
			{Position: 0, Name: "Argument", MaxScore: 10, Weight: 2},
		},
	}
	require.NoError(t, db.Create(&rubric).Error)

	return rubric
}

func TestSubmissionRepositoryCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	rubric := seedRubric(t, db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := models.Submission{
		AssignmentID: 2,
		AuthorID:     3,
		RubricID:     rubric.ID,
		Status:       models.SubmissionStatusPending,
		Parts: []models.SubmissionPart{
			{Position: 1, Kind: models.SubmissionPartKindFile, FileName: "a.png", MediaType: "image/png", Data: []byte{1, 2}, ByteSize: 2},
			{Position: 0, Kind: models.SubmissionPartKindText, Text: "my essay"},
		},
	}
	require.NoError(t, repo.Create(ctx, &submission))
	require.NotZero(t, submission.ID)

	loaded, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, loaded.Status)

	// Parts come back in payload order regardless of insertion order.
	require.Len(t, loaded.Parts, 2)
	require.Equal(t, models.SubmissionPartKindText, loaded.Parts[0].Kind)
	require.Equal(t, "my essay", loaded.Parts[0].Text)
	require.Equal(t, "a.png", loaded.Parts[1].FileName)

	// The rubric and its ordered criteria ride along for the pipeline.
	require.Equal(t, "Essay Rubric", loaded.Rubric.Title)
	require.Len(t, loaded.Rubric.Criteria, 2)
	require.Equal(t, "Argument", loaded.Rubric.Criteria[0].Name)
	require.Equal(t, "Style", loaded.Rubric.Criteria[1].Name)
}

func TestSubmissionRepositoryGetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	_, err := repo.GetByID(context.Background(), 999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionRepositorySetStatus(t *testing.T) {
	db := setupTestDB(t)
	rubric := seedRubric(t, db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := models.Submission{RubricID: rubric.ID, AssignmentID: 1, AuthorID: 1, Status: models.SubmissionStatusPending}
	require.NoError(t, repo.Create(ctx, &submission))

	require.NoError(t, repo.SetStatus(ctx, submission.ID, models.SubmissionStatusProcessing, ""))

	loaded, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusProcessing, loaded.Status)
	require.Empty(t, loaded.LastError)

	require.NoError(t, repo.SetStatus(ctx, submission.ID, models.SubmissionStatusFailed, "feedback generation failed"))

	loaded, err = repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusFailed, loaded.Status)
	require.Equal(t, "feedback generation failed", loaded.LastError)
}

func TestSubmissionRepositorySetCompletedClearsLastError(t *testing.T) {
	db := setupTestDB(t)
	rubric := seedRubric(t, db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := models.Submission{RubricID: rubric.ID, AssignmentID: 1, AuthorID: 1, Status: models.SubmissionStatusPending}
	require.NoError(t, repo.Create(ctx, &submission))
	require.NoError(t, repo.SetStatus(ctx, submission.ID, models.SubmissionStatusPending, "previous attempt failed"))

	feedback := datatypes.JSON(`{"summary": "good"}`)
	require.NoError(t, repo.SetCompleted(ctx, submission.ID, feedback))

	loaded, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusCompleted, loaded.Status)
	require.Empty(t, loaded.LastError)
	require.JSONEq(t, `{"summary": "good"}`, string(loaded.Feedback))
	require.True(t, loaded.IsTerminal())
}
