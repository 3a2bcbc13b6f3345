package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/astra-lms/astra-api/internal/dto"
	"github.com/astra-lms/astra-api/internal/gradebook"
	"github.com/astra-lms/astra-api/internal/remote"
	"github.com/astra-lms/astra-api/internal/service"
	"github.com/astra-lms/astra-api/internal/utils"
)

// SubmissionHandler manages submission intake, listing and the asynchronous
// grading callback posted back by the exercise service.
type SubmissionHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.GradingService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// RegisterExerciseScoped attaches the submission routes nested under an
// exercise. The limiter throttles submission intake per user.
func (h *SubmissionHandler) RegisterExerciseScoped(router fiber.Router, limiter, staff fiber.Handler) {
	router.Post("/:id/submissions", limiter, h.submit)
	router.Get("/:id/submissions", h.list)
	router.Post("/:id/resync", staff, h.resyncExercise)
}

// RegisterRoundScoped attaches the round-wide gradebook resync.
func (h *SubmissionHandler) RegisterRoundScoped(router fiber.Router, staff fiber.Handler) {
	router.Post("/:id/resync", staff, h.resyncRound)
}

// Register attaches the routes addressed by submission hash or id. The grade
// callback is unauthenticated on purpose: the hash is the capability. Auth
// runs per route so it never shadows the callback.
func (h *SubmissionHandler) Register(router fiber.Router, auth, staff fiber.Handler) {
	router.Post("/:hash/grade", h.gradeCallback)
	router.Post("/:id/regrade", auth, staff, h.regrade)
}

// submit accepts a multipart or urlencoded form. Every field other than
// submitter_id and file is treated as part of the answer.
func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	exerciseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.SubmissionCreateRequest{Answer: map[string]string{}}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		for key, values := range form.Value {
			if len(values) == 0 {
				continue
			}
			if key == "submitter_id" {
				continue
			}
			payload.Answer[key] = strings.Join(values, "\n")
		}
	} else {
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			name := string(key)
			if name == "submitter_id" {
				return
			}
			payload.Answer[name] = string(value)
		})
	}

	submitterID, err := parseFormUint(c, "submitter_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	payload.SubmitterID = submitterID

	file, err := c.FormFile("file")
	if err != nil {
		file = nil
	}

	submission, err := h.service.Submit(c.Context(), exerciseID, payload, file)
	if err != nil {
		return h.handleError(c, err)
	}

	if submission.Status == "waiting" {
		return utils.SendAccepted(c, "submission accepted for grading", submission)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission graded", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	exerciseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	submitterID, err := parseQueryUint(c, "submitter_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.ListSubmissions(c.Context(), exerciseID, submitterID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) gradeCallback(c *fiber.Ctx) error {
	hash := c.Params("hash")
	if hash == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "missing submission hash")
	}

	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	submission, err := h.service.HandleCallback(c.Context(), hash, body)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grading result recorded", submission)
}

func (h *SubmissionHandler) regrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Regrade(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendAccepted(c, "submission queued for regrading", submission)
}

func (h *SubmissionHandler) resyncExercise(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.ResyncExercise(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exercise gradebook resynced", nil)
}

func (h *SubmissionHandler) resyncRound(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.ResyncRound(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "round gradebook resynced", nil)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	var policy *service.PolicyViolation
	var pageErr *remote.PageError
	var syncErr *gradebook.SyncError
	switch {
	case errors.Is(err, service.ErrExerciseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exercise not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrRoundNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "round not found")
	case errors.As(err, &syncErr):
		return utils.SendError(c, fiber.StatusBadGateway, "gradebook sync failed")
	case errors.Is(err, service.ErrSubmissionNotWaiting):
		return utils.SendError(c, fiber.StatusConflict, "submission is not waiting for grading")
	case errors.As(err, &policy):
		return utils.SendError(c, fiber.StatusForbidden, policy.Reason)
	case errors.Is(err, service.ErrServiceUnavailable), errors.As(err, &pageErr):
		return utils.SendError(c, fiber.StatusBadGateway, "exercise service connection error")
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, "validation failed", validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
