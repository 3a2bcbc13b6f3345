package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/dto"
	"github.com/astra-lms/astra-api/internal/gradebook"
	"github.com/astra-lms/astra-api/internal/models"
	"github.com/astra-lms/astra-api/internal/repository"
)

// ErrInvalidRoundTimes indicates the round time invariants do not hold:
// closing must come after opening, and the late submission deadline must come
// after closing when late submissions are allowed.
var ErrInvalidRoundTimes = errors.New("invalid round times")

// RoundService manages exercise rounds within a course.
type RoundService interface {
	ListByCourse(ctx context.Context, courseKey string, includeHidden bool) ([]dto.RoundResponse, error)
	Get(ctx context.Context, id uint) (dto.RoundResponse, error)
	Create(ctx context.Context, courseKey string, payload dto.RoundCreateRequest) (dto.RoundResponse, error)
	Update(ctx context.Context, id uint, payload dto.RoundUpdateRequest) (dto.RoundResponse, error)
	Delete(ctx context.Context, id uint) error
}

type roundService struct {
	rounds    repository.RoundRepository
	courses   repository.CourseRepository
	gradebook gradebook.Store
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRoundService constructs a RoundService instance.
func NewRoundService(rounds repository.RoundRepository, courses repository.CourseRepository, gradebookStore gradebook.Store, validate *validator.Validate, logger zerolog.Logger) RoundService {
	return &roundService{
		rounds:    rounds,
		courses:   courses,
		gradebook: gradebookStore,
		validator: validate,
		logger:    logger.With().Str("component", "round_service").Logger(),
	}
}

func (s *roundService) ListByCourse(ctx context.Context, courseKey string, includeHidden bool) ([]dto.RoundResponse, error) {
	course, err := s.courses.GetByKey(ctx, courseKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	rounds, err := s.rounds.ListByCourse(ctx, course.ID, !includeHidden)
	if err != nil {
		return nil, err
	}

	return dto.NewRoundResponseSlice(rounds), nil
}

func (s *roundService) Get(ctx context.Context, id uint) (dto.RoundResponse, error) {
	round, err := s.rounds.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RoundResponse{}, ErrRoundNotFound
		}
		return dto.RoundResponse{}, err
	}

	return dto.NewRoundResponse(round), nil
}

func (s *roundService) Create(ctx context.Context, courseKey string, payload dto.RoundCreateRequest) (dto.RoundResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RoundResponse{}, err
	}

	course, err := s.courses.GetByKey(ctx, courseKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RoundResponse{}, ErrCourseNotFound
		}
		return dto.RoundResponse{}, err
	}

	status := payload.Status
	if status == "" {
		status = models.StatusReady
	}
	maxSubmissions := payload.MaxSubmissionsDefault
	if maxSubmissions == 0 {
		maxSubmissions = 10
	}

	round := models.ExerciseRound{
		CourseID:               course.ID,
		Name:                   payload.Name,
		RemoteKey:              payload.RemoteKey,
		OrderNum:               payload.OrderNum,
		Status:                 status,
		OpeningTime:            payload.OpeningTime,
		ClosingTime:            payload.ClosingTime,
		LateSubmissionsAllowed: payload.LateSubmissionsAllowed,
		LateSubmissionDeadline: payload.LateSubmissionDeadline,
		LateSubmissionPenalty:  payload.LateSubmissionPenalty,
		MaxSubmissionsDefault:  maxSubmissions,
		PointsToPass:           payload.PointsToPass,
	}

	if err := validateRoundTimes(round); err != nil {
		return dto.RoundResponse{}, err
	}

	if err := s.rounds.Create(ctx, &round); err != nil {
		return dto.RoundResponse{}, err
	}

	s.logger.Info().Uint("round_id", round.ID).Str("course_key", courseKey).Msg("exercise round created")

	return dto.NewRoundResponse(round), nil
}

func (s *roundService) Update(ctx context.Context, id uint, payload dto.RoundUpdateRequest) (dto.RoundResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RoundResponse{}, err
	}

	round, err := s.rounds.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RoundResponse{}, ErrRoundNotFound
		}
		return dto.RoundResponse{}, err
	}

	if payload.Name != nil {
		round.Name = *payload.Name
	}
	if payload.OrderNum != nil {
		round.OrderNum = *payload.OrderNum
	}
	if payload.Status != nil {
		round.Status = *payload.Status
	}
	if payload.OpeningTime != nil {
		round.OpeningTime = *payload.OpeningTime
	}
	if payload.ClosingTime != nil {
		round.ClosingTime = *payload.ClosingTime
	}
	if payload.LateSubmissionsAllowed != nil {
		round.LateSubmissionsAllowed = *payload.LateSubmissionsAllowed
	}
	if payload.LateSubmissionDeadline != nil {
		round.LateSubmissionDeadline = payload.LateSubmissionDeadline
	}
	if payload.LateSubmissionPenalty != nil {
		round.LateSubmissionPenalty = *payload.LateSubmissionPenalty
	}
	if payload.PointsToPass != nil {
		round.PointsToPass = *payload.PointsToPass
	}

	if err := validateRoundTimes(round); err != nil {
		return dto.RoundResponse{}, err
	}

	if err := s.rounds.Update(ctx, &round); err != nil {
		return dto.RoundResponse{}, err
	}

	return dto.NewRoundResponse(round), nil
}

// Delete removes the round and clears its gradebook total column. Exercises
// cascade through the database constraint.
func (s *roundService) Delete(ctx context.Context, id uint) error {
	round, err := s.rounds.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoundNotFound
		}
		return err
	}

	if err := s.rounds.Delete(ctx, id); err != nil {
		return err
	}

	ref := gradebook.Ref{CourseID: round.CourseID, RoundID: round.ID, ItemNumber: gradebook.RoundItemNumber}
	if err := s.gradebook.DeleteItem(ctx, ref); err != nil {
		s.logger.Warn().Err(err).Uint("round_id", id).Msg("failed to delete round gradebook item")
	}

	s.logger.Info().Uint("round_id", id).Msg("exercise round deleted")

	return nil
}

func validateRoundTimes(round models.ExerciseRound) error {
	if !round.ClosingTime.After(round.OpeningTime) {
		return ErrInvalidRoundTimes
	}
	if round.LateSubmissionsAllowed {
		if round.LateSubmissionDeadline == nil || !round.LateSubmissionDeadline.After(round.ClosingTime) {
			return ErrInvalidRoundTimes
		}
	}
	return nil
}
