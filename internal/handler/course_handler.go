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

// CourseHandler manages course configuration endpoints.
type CourseHandler struct {
	service service.CourseService
	logger  zerolog.Logger
}

// NewCourseHandler builds a course handler instance.
func NewCourseHandler(service service.CourseService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		logger:  logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches course routes. Write routes and event listings are staff
// only.
func (h *CourseHandler) Register(router fiber.Router, staff fiber.Handler) {
	router.Put("", staff, h.upsert)
	router.Get("/:courseKey", h.get)
	router.Post("/:courseKey/config/import", staff, h.importConfig)
	router.Get("/:courseKey/events", staff, h.listEvents)
}

func (h *CourseHandler) get(c *fiber.Ctx) error {
	course, err := h.service.Get(c.Context(), c.Params("courseKey"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "course retrieved", course)
}

func (h *CourseHandler) upsert(c *fiber.Ctx) error {
	var payload dto.CourseUpsertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	course, err := h.service.Upsert(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "course saved", course)
}

func (h *CourseHandler) importConfig(c *fiber.Ctx) error {
	result, err := h.service.Import(c.Context(), c.Params("courseKey"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "course configuration imported", result)
}

func (h *CourseHandler) listEvents(c *fiber.Ctx) error {
	limit, err := parseQueryUint(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	events, err := h.service.ListFailureEvents(c.Context(), c.Params("courseKey"), int(limit))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "service failure events retrieved", events)
}

func (h *CourseHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "course not found")
	case errors.Is(err, service.ErrConfigURLMissing):
		return utils.SendError(c, fiber.StatusBadRequest, "course has no configuration url")
	case errors.Is(err, service.ErrInvalidCourseConfig):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "invalid course configuration document")
	case errors.Is(err, service.ErrInvalidRoundTimes):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrServiceUnavailable):
		return utils.SendError(c, fiber.StatusBadGateway, "exercise service connection error")
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, "validation failed", validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
