package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/astra-lms/astra-api/internal/service"
	"github.com/astra-lms/astra-api/internal/utils"
)

// SummaryHandler serves the per-user course points summary.
type SummaryHandler struct {
	service service.SummaryService
	logger  zerolog.Logger
}

// NewSummaryHandler builds a summary handler instance.
func NewSummaryHandler(service service.SummaryService, logger zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{
		service: service,
		logger:  logger.With().Str("component", "summary_handler").Logger(),
	}
}

// Register attaches the summary route under a course.
func (h *SummaryHandler) Register(router fiber.Router) {
	router.Get("/summary", h.get)
}

func (h *SummaryHandler) get(c *fiber.Ctx) error {
	courseKey := c.Params("courseKey")
	userID, err := parseQueryUint(c, "user_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if userID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "missing user_id")
	}

	summary, err := h.service.GetCourseSummary(c.Context(), courseKey, userID)
	if err != nil {
		if errors.Is(err, service.ErrCourseNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "course not found")
		}
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "course summary retrieved", summary)
}
