package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/astra-lms/astra-api/internal/dto"
	"github.com/astra-lms/astra-api/internal/service"
	"github.com/astra-lms/astra-api/internal/utils"
)

// CategoryHandler manages exercise category endpoints.
type CategoryHandler struct {
	service service.CategoryService
	logger  zerolog.Logger
}

// NewCategoryHandler builds a category handler instance.
func NewCategoryHandler(service service.CategoryService, logger zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{
		service: service,
		logger:  logger.With().Str("component", "category_handler").Logger(),
	}
}

// RegisterCourseScoped attaches the category routes nested under a course.
func (h *CategoryHandler) RegisterCourseScoped(router fiber.Router, staff fiber.Handler) {
	router.Get("/categories", h.list)
	router.Post("/categories", staff, h.create)
}

// Register attaches the routes addressed by category id.
func (h *CategoryHandler) Register(router fiber.Router, staff fiber.Handler) {
	router.Delete("/:id", staff, h.delete)
}

func (h *CategoryHandler) list(c *fiber.Ctx) error {
	courseKey := c.Params("courseKey")
	includeHidden := queryBool(c, "include_hidden")

	categories, err := h.service.ListByCourse(c.Context(), courseKey, includeHidden)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "categories retrieved", categories)
}

func (h *CategoryHandler) create(c *fiber.Ctx) error {
	courseKey := c.Params("courseKey")

	var payload dto.CategoryCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	category, err := h.service.Create(c.Context(), courseKey, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "category created", category)
}

func (h *CategoryHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "category deleted", nil)
}

func (h *CategoryHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "course not found")
	case errors.Is(err, service.ErrCategoryNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "category not found")
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, "validation failed", validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
