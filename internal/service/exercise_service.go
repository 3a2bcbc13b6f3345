package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/dto"
	"github.com/astra-lms/astra-api/internal/gradebook"
	"github.com/astra-lms/astra-api/internal/models"
	"github.com/astra-lms/astra-api/internal/remote"
	"github.com/astra-lms/astra-api/internal/repository"
)

// ErrGradeItemNumberTaken indicates the gradebook item number is already in
// use within the round.
var ErrGradeItemNumberTaken = errors.New("grade item number is already in use in this round")

// RemotePageLoader is the outbound surface used to fetch exercise pages.
type RemotePageLoader interface {
	LoadExercisePage(ctx context.Context, serviceURL string) (remote.ExercisePage, error)
}

// ExerciseService manages exercises and chapters within rounds.
type ExerciseService interface {
	ListByRound(ctx context.Context, roundID uint) ([]dto.ExerciseResponse, error)
	Get(ctx context.Context, id uint) (dto.ExerciseResponse, error)
	Create(ctx context.Context, roundID uint, payload dto.ExerciseCreateRequest) (dto.ExerciseResponse, error)
	Update(ctx context.Context, id uint, payload dto.ExerciseUpdateRequest) (dto.ExerciseResponse, error)
	Delete(ctx context.Context, id uint) error
	LoadPage(ctx context.Context, id uint, userID uint) (dto.ExercisePageResponse, error)
}

type exerciseService struct {
	exercises       repository.ExerciseRepository
	rounds          repository.RoundRepository
	pages           RemotePageLoader
	gradebook       gradebook.Store
	failures        FailureRecorder
	validator       *validator.Validate
	logger          zerolog.Logger
	callbackBaseURL string
}

// NewExerciseService constructs an ExerciseService instance.
func NewExerciseService(
	exercises repository.ExerciseRepository,
	rounds repository.RoundRepository,
	pages RemotePageLoader,
	gradebookStore gradebook.Store,
	failures FailureRecorder,
	validate *validator.Validate,
	callbackBaseURL string,
	logger zerolog.Logger,
) ExerciseService {
	return &exerciseService{
		exercises:       exercises,
		rounds:          rounds,
		pages:           pages,
		gradebook:       gradebookStore,
		failures:        failures,
		validator:       validate,
		logger:          logger.With().Str("component", "exercise_service").Logger(),
		callbackBaseURL: callbackBaseURL,
	}
}

func (s *exerciseService) ListByRound(ctx context.Context, roundID uint) ([]dto.ExerciseResponse, error) {
	if _, err := s.rounds.GetByID(ctx, roundID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}

	exercises, err := s.exercises.ListByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	return dto.NewExerciseResponseSlice(exercises), nil
}

func (s *exerciseService) Get(ctx context.Context, id uint) (dto.ExerciseResponse, error) {
	exercise, err := s.exercises.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExerciseResponse{}, ErrExerciseNotFound
		}
		return dto.ExerciseResponse{}, err
	}

	return dto.NewExerciseResponse(exercise), nil
}

func (s *exerciseService) Create(ctx context.Context, roundID uint, payload dto.ExerciseCreateRequest) (dto.ExerciseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExerciseResponse{}, err
	}

	round, err := s.rounds.GetByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExerciseResponse{}, ErrRoundNotFound
		}
		return dto.ExerciseResponse{}, err
	}

	taken, err := s.exercises.GradeItemNumberTaken(ctx, roundID, payload.GradeItemNumber, 0)
	if err != nil {
		return dto.ExerciseResponse{}, err
	}
	if taken {
		return dto.ExerciseResponse{}, ErrGradeItemNumberTaken
	}

	maxSubmissions := round.MaxSubmissionsDefault
	if payload.MaxSubmissions != nil {
		maxSubmissions = *payload.MaxSubmissions
	}

	status := payload.Status
	if status == "" {
		status = models.StatusReady
	}

	exercise := models.Exercise{
		RoundID:               roundID,
		CategoryID:            payload.CategoryID,
		ParentID:              payload.ParentID,
		OrderNum:              payload.OrderNum,
		RemoteKey:             payload.RemoteKey,
		Name:                  payload.Name,
		ServiceURL:            payload.ServiceURL,
		Status:                status,
		MaxPoints:             payload.MaxPoints,
		PointsToPass:          payload.PointsToPass,
		MaxSubmissions:        maxSubmissions,
		MaxSubmissionFileSize: payload.MaxSubmissionFileSize,
		GradeItemNumber:       payload.GradeItemNumber,
	}

	if err := s.exercises.Create(ctx, &exercise); err != nil {
		return dto.ExerciseResponse{}, err
	}

	if err := s.rounds.IncrementMaxPoints(ctx, roundID, exercise.MaxPoints); err != nil {
		return dto.ExerciseResponse{}, err
	}

	s.upsertGradebookItems(ctx, exercise, round)

	s.logger.Info().Uint("exercise_id", exercise.ID).Uint("round_id", roundID).Msg("exercise created")

	return dto.NewExerciseResponse(exercise), nil
}

func (s *exerciseService) Update(ctx context.Context, id uint, payload dto.ExerciseUpdateRequest) (dto.ExerciseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExerciseResponse{}, err
	}

	exercise, err := s.exercises.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExerciseResponse{}, ErrExerciseNotFound
		}
		return dto.ExerciseResponse{}, err
	}

	previousMaxPoints := exercise.MaxPoints

	if payload.CategoryID != nil {
		exercise.CategoryID = *payload.CategoryID
	}
	if payload.OrderNum != nil {
		exercise.OrderNum = *payload.OrderNum
	}
	if payload.Name != nil {
		exercise.Name = *payload.Name
	}
	if payload.ServiceURL != nil {
		exercise.ServiceURL = *payload.ServiceURL
	}
	if payload.Status != nil {
		exercise.Status = *payload.Status
	}
	if payload.MaxPoints != nil {
		exercise.MaxPoints = *payload.MaxPoints
	}
	if payload.PointsToPass != nil {
		exercise.PointsToPass = *payload.PointsToPass
	}
	if payload.MaxSubmissions != nil {
		exercise.MaxSubmissions = *payload.MaxSubmissions
	}
	if payload.MaxSubmissionFileSize != nil {
		exercise.MaxSubmissionFileSize = *payload.MaxSubmissionFileSize
	}

	round := exercise.Round
	exercise.Round = models.ExerciseRound{}
	if err := s.exercises.Update(ctx, &exercise); err != nil {
		return dto.ExerciseResponse{}, err
	}
	exercise.Round = round

	if delta := exercise.MaxPoints - previousMaxPoints; delta != 0 {
		if err := s.rounds.IncrementMaxPoints(ctx, exercise.RoundID, delta); err != nil {
			return dto.ExerciseResponse{}, err
		}
	}

	s.upsertGradebookItems(ctx, exercise, round)

	return dto.NewExerciseResponse(exercise), nil
}

// Delete removes the exercise, its submissions and its gradebook item, and
// subtracts its points from the round total.
func (s *exerciseService) Delete(ctx context.Context, id uint) error {
	exercise, err := s.exercises.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExerciseNotFound
		}
		return err
	}

	if err := s.exercises.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.rounds.IncrementMaxPoints(ctx, exercise.RoundID, -exercise.MaxPoints); err != nil {
		return err
	}

	ref := gradebook.Ref{
		CourseID:   exercise.Round.CourseID,
		RoundID:    exercise.RoundID,
		ItemNumber: exercise.GradeItemNumber,
	}
	if err := s.gradebook.DeleteItem(ctx, ref); err != nil {
		s.logger.Warn().Err(err).Uint("exercise_id", id).Msg("failed to delete gradebook item")
	}

	s.logger.Info().Uint("exercise_id", id).Msg("exercise deleted")

	return nil
}

func (s *exerciseService) LoadPage(ctx context.Context, id uint, userID uint) (dto.ExercisePageResponse, error) {
	exercise, err := s.exercises.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExercisePageResponse{}, ErrExerciseNotFound
		}
		return dto.ExercisePageResponse{}, err
	}

	serviceURL, err := remote.BuildServiceURL(
		exercise.ServiceURL,
		fmt.Sprintf("%s/api/v1/exercises/%d/submissions?submitter_id=%d", s.callbackBaseURL, exercise.ID, userID),
		fmt.Sprintf("%s/api/v1/exercises/%d/submissions", s.callbackBaseURL, exercise.ID),
		exercise.MaxPoints,
	)
	if err != nil {
		return dto.ExercisePageResponse{}, err
	}

	page, err := s.pages.LoadExercisePage(ctx, serviceURL)
	if err != nil {
		s.failures.Record(ctx, models.ServiceFailureEvent{
			CourseID:    exercise.Round.CourseID,
			Kind:        models.FailureKindTransport,
			ObjectTable: "exercises",
			ObjectID:    exercise.ID,
			URL:         exercise.ServiceURL,
			Error:       err.Error(),
		})
		return dto.ExercisePageResponse{}, ErrServiceUnavailable
	}

	return dto.ExercisePageResponse{ExerciseID: exercise.ID, Content: page.Content}, nil
}

// upsertGradebookItems keeps the exercise's gradebook column and the round
// total column in step with the exercise definition. Failures are logged;
// grades flow through the relay later and a resync can repair the items.
func (s *exerciseService) upsertGradebookItems(ctx context.Context, exercise models.Exercise, round models.ExerciseRound) {
	items := []gradebook.Item{
		{
			CourseID:     round.CourseID,
			RoundID:      round.ID,
			ItemNumber:   exercise.GradeItemNumber,
			Name:         exercise.Name,
			MaxPoints:    exercise.MaxPoints,
			PointsToPass: exercise.PointsToPass,
		},
		{
			CourseID:     round.CourseID,
			RoundID:      round.ID,
			ItemNumber:   gradebook.RoundItemNumber,
			Name:         round.Name,
			MaxPoints:    round.MaxPoints,
			PointsToPass: round.PointsToPass,
		},
	}

	for _, item := range items {
		if err := s.gradebook.UpsertItem(ctx, item); err != nil {
			s.logger.Warn().Err(err).Uint("round_id", round.ID).Int("item_number", item.ItemNumber).Msg("failed to upsert gradebook item")
		}
	}
}
