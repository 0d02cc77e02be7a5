package grading

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oku-edu/oku-go-api/internal/models"
	"github.com/oku-edu/oku-go-api/pkg/ai"
)

type statusChange struct {
	ID        uint
	Status    string
	LastError string
}

type stubSubmissionRepo struct {
	submissions map[uint]models.Submission
	statuses    []statusChange
	completed   map[uint]datatypes.JSON
	getErr      error
	setErr      error
}

func newStubSubmissionRepo() *stubSubmissionRepo {
	return &stubSubmissionRepo{
		submissions: make(map[uint]models.Submission),
		completed:   make(map[uint]datatypes.JSON),
	}
}

func (s *stubSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	s.submissions[submission.ID] = *submission
	return nil
}

func (s *stubSubmissionRepo) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	if s.getErr != nil {
		return models.Submission{}, s.getErr
	}
	submission, ok := s.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (s *stubSubmissionRepo) SetStatus(ctx context.Context, id uint, status string, lastError string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.statuses = append(s.statuses, statusChange{ID: id, Status: status, LastError: lastError})
	if submission, ok := s.submissions[id]; ok {
		submission.Status = status
		submission.LastError = lastError
		s.submissions[id] = submission
	}
	return nil
}

func (s *stubSubmissionRepo) SetCompleted(ctx context.Context, id uint, feedback datatypes.JSON) error {
	s.completed[id] = feedback
	s.statuses = append(s.statuses, statusChange{ID: id, Status: models.SubmissionStatusCompleted})
	if submission, ok := s.submissions[id]; ok {
		submission.Status = models.SubmissionStatusCompleted
		submission.Feedback = feedback
		submission.LastError = ""
		s.submissions[id] = submission
	}
	return nil
}

type stubResultRepo struct {
	results   map[uint]models.GradingResult
	upserts   int
	upsertErr error
}

func newStubResultRepo() *stubResultRepo {
	return &stubResultRepo{results: make(map[uint]models.GradingResult)}
}

func (s *stubResultRepo) Upsert(ctx context.Context, result *models.GradingResult) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.results[result.SubmissionID] = *result
	return nil
}

func (s *stubResultRepo) GetBySubmissionID(ctx context.Context, submissionID uint) (models.GradingResult, error) {
	result, ok := s.results[submissionID]
	if !ok {
		return models.GradingResult{}, gorm.ErrRecordNotFound
	}
	return result, nil
}

func validReport() Report {
	feedback, err := decodeFeedback(validFeedbackJSON)
	if err != nil {
		panic(err)
	}
	return Report{
		Feedback: feedback,
		Usage:    ai.Usage{PromptTokens: 100, OutputTokens: 60, Observed: true},
		Model:    "test-model",
		Calls:    1,
	}
}

func TestPersistResultWritesResultAndCompletesSubmission(t *testing.T) {
	submissions := newStubSubmissionRepo()
	results := newStubResultRepo()
	p := NewPersister(submissions, results, NewEvents(nil, "", zerolog.Nop()), zerolog.Nop())

	require.NoError(t, p.PersistResult(context.Background(), 5, validReport()))

	stored, ok := results.results[5]
	require.True(t, ok)
	require.Equal(t, float64(78), stored.OverallScore)
	require.Equal(t, "solid draft", stored.Summary)
	require.Equal(t, "test-model", stored.Model)
	require.Equal(t, 100, stored.PromptTokens)
	require.Equal(t, 60, stored.OutputTokens)
	require.True(t, stored.UsageObserved)
	require.JSONEq(t, `["clear thesis"]`, string(stored.Strengths))

	require.NotEmpty(t, submissions.completed[5])
}

func TestPersistResultIsIdempotent(t *testing.T) {
	submissions := newStubSubmissionRepo()
	results := newStubResultRepo()
	p := NewPersister(submissions, results, NewEvents(nil, "", zerolog.Nop()), zerolog.Nop())

	require.NoError(t, p.PersistResult(context.Background(), 5, validReport()))
	require.NoError(t, p.PersistResult(context.Background(), 5, validReport()))

	require.Equal(t, 2, results.upserts)
	require.Len(t, results.results, 1, "second persist overwrites, never duplicates")
}

func TestPersistResultSanitizesMarkup(t *testing.T) {
	submissions := newStubSubmissionRepo()
	results := newStubResultRepo()
	p := NewPersister(submissions, results, NewEvents(nil, "", zerolog.Nop()), zerolog.Nop())

	report := validReport()
	report.Feedback.Summary = `good work <script>alert("x")</script>overall`
	report.Feedback.Strengths = []string{`<b>bold claim</b>`}
	report.Feedback.CriteriaScores[0].Feedback = `<img src=x onerror=alert(1)>well reasoned`

	require.NoError(t, p.PersistResult(context.Background(), 6, report))

	stored := results.results[6]
	require.NotContains(t, stored.Summary, "<script>")
	require.NotContains(t, string(stored.Strengths), "<b>")
	require.NotContains(t, string(stored.CriteriaScores), "onerror")
	require.Contains(t, string(stored.CriteriaScores), "well reasoned")
}

func TestPersistResultRejectsOutOfBoundsScore(t *testing.T) {
	p := NewPersister(newStubSubmissionRepo(), newStubResultRepo(), NewEvents(nil, "", zerolog.Nop()), zerolog.Nop())

	report := validReport()
	report.Feedback.OverallScore = 140

	err := p.PersistResult(context.Background(), 7, report)
	var typed *Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, ErrSchemaValidation, typed.Kind)
}

func TestPersistResultWrapsStorageFailureAsTransient(t *testing.T) {
	results := newStubResultRepo()
	results.upsertErr = errors.New("db gone")
	p := NewPersister(newStubSubmissionRepo(), results, NewEvents(nil, "", zerolog.Nop()), zerolog.Nop())

	err := p.PersistResult(context.Background(), 8, validReport())
	var typed *Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, ErrTransient, typed.Kind)
	require.True(t, typed.Retryable())
}

func TestRecordFailureRetryableReturnsSubmissionToPending(t *testing.T) {
	submissions := newStubSubmissionRepo()
	submissions.submissions[9] = models.Submission{ID: 9, Status: models.SubmissionStatusProcessing}
	p := NewPersister(submissions, newStubResultRepo(), NewEvents(nil, "", zerolog.Nop()), zerolog.Nop())

	require.NoError(t, p.RecordFailure(context.Background(), 9, NewError(ErrRateLimit, "throttled"), false))

	require.Len(t, submissions.statuses, 1)
	require.Equal(t, models.SubmissionStatusPending, submissions.statuses[0].Status)
	require.NotEmpty(t, submissions.statuses[0].LastError)
}

func TestRecordFailureTerminalMarksSubmissionFailed(t *testing.T) {
	submissions := newStubSubmissionRepo()
	submissions.submissions[10] = models.Submission{ID: 10, Status: models.SubmissionStatusProcessing}
	p := NewPersister(submissions, newStubResultRepo(), NewEvents(nil, "", zerolog.Nop()), zerolog.Nop())

	require.NoError(t, p.RecordFailure(context.Background(), 10, NewError(ErrContentPolicy, "rejected"), true))

	require.Equal(t, models.SubmissionStatusFailed, submissions.statuses[0].Status)
	require.Equal(t, Summary(ErrContentPolicy), submissions.statuses[0].LastError)
}
