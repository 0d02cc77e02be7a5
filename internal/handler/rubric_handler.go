package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/oku-edu/oku-go-api/internal/dto"
	"github.com/oku-edu/oku-go-api/internal/models"
	"github.com/oku-edu/oku-go-api/internal/repository"
	"github.com/oku-edu/oku-go-api/internal/utils"
)

// RubricHandler exposes rubric authoring endpoints.
type RubricHandler struct {
	rubrics   repository.RubricRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRubricHandler constructs the handler.
func NewRubricHandler(rubrics repository.RubricRepository, validate *validator.Validate, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		rubrics:   rubrics,
		validator: validate,
		logger:    logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Create stores a rubric with its ordered criteria.
func (h *RubricHandler) Create(c *fiber.Ctx) error {
	var payload dto.RubricCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid rubric", validationDetails(err))
	}

	authorID := authenticatedUserID(c)
	if authorID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "author identity missing")
	}

	rubric := models.Rubric{
		Title:    payload.Title,
		AuthorID: authorID,
	}
	for i, criterion := range payload.Criteria {
		weight := criterion.Weight
		if weight == 0 {
			weight = 1
		}
		rubric.Criteria = append(rubric.Criteria, models.RubricCriterion{
			Position:    i,
			Name:        criterion.Name,
			Description: criterion.Description,
			MaxScore:    criterion.MaxScore,
			Weight:      weight,
		})
	}

	if err := h.rubrics.Create(c.UserContext(), &rubric); err != nil {
		h.logger.Error().Err(err).Msg("create rubric")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to store rubric")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric created", dto.NewRubricResponse(rubric))
}

// Get returns one rubric with its criteria.
func (h *RubricHandler) Get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid rubric id")
	}

	rubric, err := h.rubrics.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "rubric not found")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load rubric")
	}

	return utils.SendSuccess(c, "", dto.NewRubricResponse(rubric))
}
