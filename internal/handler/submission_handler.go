package handler

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/oku-edu/oku-go-api/internal/dto"
	"github.com/oku-edu/oku-go-api/internal/middleware"
	"github.com/oku-edu/oku-go-api/internal/models"
	"github.com/oku-edu/oku-go-api/internal/queue"
	"github.com/oku-edu/oku-go-api/internal/repository"
	"github.com/oku-edu/oku-go-api/internal/utils"
)

// maxSubmissionFileBytes bounds a single uploaded file at intake.
const maxSubmissionFileBytes = 20 << 20

// SubmissionHandler exposes submission intake and status endpoints. Intake
// is deliberately thin: create the record, enqueue the job, return.
type SubmissionHandler struct {
	submissions repository.SubmissionRepository
	results     repository.GradingResultRepository
	queue       queue.Queue
	validator   *validator.Validate
	logger      zerolog.Logger
	maxAttempts int
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions repository.SubmissionRepository, results repository.GradingResultRepository, q queue.Queue, validate *validator.Validate, logger zerolog.Logger, maxAttempts int) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		results:     results,
		queue:       q,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
		maxAttempts: maxAttempts,
	}
}

// Create accepts a multipart submission, persists it and enqueues the
// grading job.
func (h *SubmissionHandler) Create(c *fiber.Ctx) error {
	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid submission", validationDetails(err))
	}

	authorID := authenticatedUserID(c)
	if authorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "author identity missing")
	}

	parts, err := buildParts(c, payload.Text)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if len(parts) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "submission requires text or at least one file")
	}

	submission := models.Submission{
		AssignmentID: payload.AssignmentID,
		AuthorID:     authorID,
		RubricID:     payload.RubricID,
		Status:       models.SubmissionStatusPending,
		Parts:        parts,
	}

	if err := h.submissions.Create(c.UserContext(), &submission); err != nil {
		h.logger.Error().Err(err).Msg("create submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to store submission")
	}

	job := queue.Job{
		SubmissionID:  submission.ID,
		MaxAttempts:   h.maxAttempts,
		CorrelationID: middleware.GetCorrelationID(c),
	}
	if err := h.queue.Enqueue(c.UserContext(), &job); err != nil {
		h.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("enqueue grading job")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to schedule grading")
	}

	h.logger.Info().
		Uint("submission_id", submission.ID).
		Str("job_id", job.ID).
		Msg("submission accepted")

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission accepted", dto.NewSubmissionResponse(submission))
}

// Get returns submission status and, once graded, the serialized feedback.
func (h *SubmissionHandler) Get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.submissions.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load submission")
	}

	return utils.SendSuccess(c, "", dto.NewSubmissionResponse(submission))
}

// GetResult returns the persisted grading result.
func (h *SubmissionHandler) GetResult(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	result, err := h.results.GetBySubmissionID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "grading result not available")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load grading result")
	}

	return utils.SendSuccess(c, "", dto.NewGradingResultResponse(result))
}

func buildParts(c *fiber.Ctx, text string) ([]models.SubmissionPart, error) {
	var parts []models.SubmissionPart
	position := 0

	if text != "" {
		parts = append(parts, models.SubmissionPart{
			Position: position,
			Kind:     models.SubmissionPartKindText,
			Text:     text,
		})
		position++
	}

	form, err := c.MultipartForm()
	if err != nil {
		// Text-only submissions are allowed to omit the multipart form.
		return parts, nil
	}

	for _, file := range form.File["files"] {
		if file.Size > maxSubmissionFileBytes {
			return nil, errors.New("uploaded file exceeds the 20MB limit")
		}

		data, err := readUpload(file)
		if err != nil {
			return nil, err
		}

		mediaType := file.Header.Get("Content-Type")
		if mediaType == "" {
			mediaType = mimetype.Detect(data).String()
		}

		parts = append(parts, models.SubmissionPart{
			Position:  position,
			Kind:      models.SubmissionPartKindFile,
			Data:      data,
			FileName:  file.Filename,
			MediaType: mediaType,
			ByteSize:  int64(len(data)),
		})
		position++
	}

	return parts, nil
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, errors.New("failed to open uploaded file")
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.New("failed to read uploaded file")
	}

	return data, nil
}
