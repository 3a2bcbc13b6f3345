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

// RoundHandler manages exercise round endpoints.
type RoundHandler struct {
	service service.RoundService
	logger  zerolog.Logger
}

// NewRoundHandler builds a round handler instance.
func NewRoundHandler(service service.RoundService, logger zerolog.Logger) *RoundHandler {
	return &RoundHandler{
		service: service,
		logger:  logger.With().Str("component", "round_handler").Logger(),
	}
}

// Register attaches the course-scoped round routes. The write routes are
// expected to sit behind the staff guard.
func (h *RoundHandler) Register(router fiber.Router, staff fiber.Handler) {
	router.Get("", h.list)
	router.Post("", staff, h.create)
	router.Patch("/:id", staff, h.update)
	router.Delete("/:id", staff, h.delete)
}

// RegisterRoundScoped attaches routes addressed by round id.
func (h *RoundHandler) RegisterRoundScoped(router fiber.Router) {
	router.Get("/:id", h.get)
}

func (h *RoundHandler) list(c *fiber.Ctx) error {
	courseKey := c.Params("courseKey")
	includeHidden := queryBool(c, "include_hidden")

	rounds, err := h.service.ListByCourse(c.Context(), courseKey, includeHidden)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "rounds retrieved", rounds)
}

func (h *RoundHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	round, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "round retrieved", round)
}

func (h *RoundHandler) create(c *fiber.Ctx) error {
	courseKey := c.Params("courseKey")

	var payload dto.RoundCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	round, err := h.service.Create(c.Context(), courseKey, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "round created", round)
}

func (h *RoundHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RoundUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	round, err := h.service.Update(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "round updated", round)
}

func (h *RoundHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "round deleted", nil)
}

func (h *RoundHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "course not found")
	case errors.Is(err, service.ErrRoundNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exercise round not found")
	case errors.Is(err, service.ErrInvalidRoundTimes):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, "validation failed", validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
