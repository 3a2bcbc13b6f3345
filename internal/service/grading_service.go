package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/dto"
	"github.com/astra-lms/astra-api/internal/gradebook"
	"github.com/astra-lms/astra-api/internal/models"
	"github.com/astra-lms/astra-api/internal/observability"
	"github.com/astra-lms/astra-api/internal/remote"
	"github.com/astra-lms/astra-api/internal/repository"
)

// RemoteGrader is the outbound surface of the exercise service used by the
// relay.
type RemoteGrader interface {
	GradeSubmission(ctx context.Context, serviceURL string, form url.Values, files ...remote.FileUpload) (remote.GradingResult, error)
}

// DeadlineOverride grants a per-user deadline extension for an exercise. The
// default policy grants none; deviations are supplied from outside the relay.
type DeadlineOverride interface {
	ExtraTime(ctx context.Context, exerciseID, userID uint) (time.Duration, error)
}

// GradingService drives a submission through its lifecycle: accept, relay to
// the exercise service, apply grading policy and propagate the grade into the
// gradebook.
type GradingService interface {
	Submit(ctx context.Context, exerciseID uint, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	HandleCallback(ctx context.Context, submissionHash string, body []byte) (dto.SubmissionResponse, error)
	Regrade(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error)
	ListSubmissions(ctx context.Context, exerciseID, submitterID uint) ([]dto.SubmissionResponse, error)
	ResyncExercise(ctx context.Context, exerciseID uint) error
	ResyncRound(ctx context.Context, roundID uint) error
}

type gradingService struct {
	submissions     repository.SubmissionRepository
	exercises       repository.ExerciseRepository
	rounds          repository.RoundRepository
	remote          RemoteGrader
	gradebook       gradebook.Store
	failures        FailureRecorder
	override        DeadlineOverride
	uploader        FileUploader
	validator       *validator.Validate
	sanitizer       *bluemonday.Policy
	logger          zerolog.Logger
	now             func() time.Time
	callbackBaseURL string
}

// NewGradingService constructs the grading relay. The deadline override and
// uploader are optional.
func NewGradingService(
	submissions repository.SubmissionRepository,
	exercises repository.ExerciseRepository,
	rounds repository.RoundRepository,
	remoteGrader RemoteGrader,
	gradebookStore gradebook.Store,
	failures FailureRecorder,
	override DeadlineOverride,
	uploader FileUploader,
	validate *validator.Validate,
	callbackBaseURL string,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		submissions:     submissions,
		exercises:       exercises,
		rounds:          rounds,
		remote:          remoteGrader,
		gradebook:       gradebookStore,
		failures:        failures,
		override:        override,
		uploader:        uploader,
		validator:       validate,
		sanitizer:       bluemonday.UGCPolicy(),
		logger:          logger.With().Str("component", "grading_service").Logger(),
		now:             time.Now,
		callbackBaseURL: callbackBaseURL,
	}
}

func (s *gradingService) Submit(ctx context.Context, exerciseID uint, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/astra-lms/astra-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.submit")
	span.SetAttributes(
		attribute.Int64("grading.exercise_id", int64(exerciseID)),
		attribute.Int64("grading.submitter_id", int64(payload.SubmitterID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	exercise, err := s.exercises.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrExerciseNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	now := s.now()
	if err := s.checkAcceptance(ctx, exercise, payload.SubmitterID, now); err != nil {
		span.SetStatus(codes.Error, "policy_violation")
		observability.Submissions().WithLabelValues("rejected").Inc()
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		ExerciseID:     exercise.ID,
		SubmitterID:    payload.SubmitterID,
		Hash:           uuid.NewString(),
		Status:         models.SubmissionStatusWaiting,
		SubmissionTime: now,
	}

	if len(payload.Answer) > 0 {
		data, err := json.Marshal(payload.Answer)
		if err != nil {
			return dto.SubmissionResponse{}, fmt.Errorf("failed to encode answer: %w", err)
		}
		submission.SubmissionData = datatypes.JSON(data)
	}

	if file != nil {
		fileURL, err := s.storeFile(ctx, exercise, file)
		if err != nil {
			return dto.SubmissionResponse{}, err
		}
		submission.FileURL = fileURL
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission.Exercise = exercise
	if err := s.relayToService(ctx, &submission, exercise); err != nil {
		return dto.SubmissionResponse{}, err
	}

	finalized, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", finalized.ID).
		Uint("exercise_id", exercise.ID).
		Str("status", finalized.Status).
		Msg("submission accepted")

	return dto.NewSubmissionResponse(finalized), nil
}

// checkAcceptance gates whether a new submission may be created at all. It
// runs before any outbound HTTP call.
func (s *gradingService) checkAcceptance(ctx context.Context, exercise models.Exercise, submitterID uint, now time.Time) error {
	if exercise.IsHidden() || exercise.Round.IsHidden() {
		return policyViolation("the exercise is not available")
	}
	if exercise.IsUnderMaintenance() || exercise.Round.IsUnderMaintenance() {
		return policyViolation("the exercise is under maintenance")
	}
	if !exercise.Round.HasStarted(now) {
		return policyViolation("the exercise round has not opened yet")
	}

	deadline := exercise.Round.FinalDeadline()
	if extra, err := s.extraTime(ctx, exercise.ID, submitterID); err == nil && extra > 0 {
		deadline = deadline.Add(extra)
	}
	if now.After(deadline) {
		return policyViolation("the deadline for submissions has passed")
	}

	if !exercise.HasUnlimitedSubmissions() {
		count, err := s.submissions.CountForExerciseAndSubmitter(ctx, exercise.ID, submitterID, true)
		if err != nil {
			return err
		}
		if count >= int64(exercise.MaxSubmissions) {
			return policyViolation("the maximum number of submissions has been reached")
		}
	}

	return nil
}

// relayToService uploads the submission to the exercise service and
// finalizes it when the service grades synchronously.
func (s *gradingService) relayToService(ctx context.Context, submission *models.Submission, exercise models.Exercise) error {
	serviceURL, err := remote.BuildServiceURL(
		exercise.ServiceURL,
		s.callbackURL(submission.Hash),
		s.postURL(exercise.ID),
		exercise.MaxPoints,
	)
	if err != nil {
		return err
	}

	form := url.Values{}
	if len(submission.SubmissionData) > 0 {
		var answer map[string]string
		if err := json.Unmarshal(submission.SubmissionData, &answer); err == nil {
			for key, value := range answer {
				form.Set(key, value)
			}
		}
	}
	if submission.FileURL != "" {
		form.Set("file_url", submission.FileURL)
	}

	start := s.now()
	result, err := s.remote.GradeSubmission(ctx, serviceURL, form)
	if err != nil {
		s.recordTransportFailure(ctx, submission, exercise, serviceURL, err)
		observability.Submissions().WithLabelValues("error").Inc()
		return ErrServiceUnavailable
	}

	switch result.Kind {
	case remote.GradingAsyncAccepted:
		observability.GradingLatency().WithLabelValues("async").Observe(time.Since(start).Seconds())
		observability.Submissions().WithLabelValues("async_accepted").Inc()
		return nil
	default:
		observability.GradingLatency().WithLabelValues("sync").Observe(time.Since(start).Seconds())
		return s.finalize(ctx, submission, exercise, result)
	}
}

func (s *gradingService) HandleCallback(ctx context.Context, submissionHash string, body []byte) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/astra-lms/astra-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.callback")
	span.SetAttributes(attribute.String("grading.submission_hash", submissionHash))
	defer span.End()

	submission, err := s.submissions.GetByHash(ctx, submissionHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if submission.Status != models.SubmissionStatusWaiting {
		span.SetAttributes(attribute.Bool("grading.duplicate", true))
		return dto.SubmissionResponse{}, ErrSubmissionNotWaiting
	}

	result, err := remote.ParseGradingPayload(body)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if result.Kind != remote.GradingSynchronous {
		return dto.SubmissionResponse{}, fmt.Errorf("grading callback carried no points")
	}

	exercise := submission.Exercise
	if err := s.finalize(ctx, &submission, exercise, result); err != nil {
		return dto.SubmissionResponse{}, err
	}

	finalized, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(finalized), nil
}

func (s *gradingService) Regrade(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	submission.Status = models.SubmissionStatusWaiting
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.relayToService(ctx, &submission, submission.Exercise); err != nil {
		return dto.SubmissionResponse{}, err
	}

	regraded, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(regraded), nil
}

// ListSubmissions returns a submitter's submissions for an exercise, oldest
// first. A zero submitterID lists every submission for the exercise.
func (s *gradingService) ListSubmissions(ctx context.Context, exerciseID, submitterID uint) ([]dto.SubmissionResponse, error) {
	if _, err := s.exercises.GetByID(ctx, exerciseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}

	filter := repository.SubmissionFilter{ExerciseID: &exerciseID}
	if submitterID != 0 {
		filter.SubmitterID = &submitterID
	}

	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

// ResyncExercise rebuilds the exercise's gradebook column from scratch: the
// item definition plus every submitter's best grade. Used after manual grade
// edits or a gradebook outage.
func (s *gradingService) ResyncExercise(ctx context.Context, exerciseID uint) error {
	exercise, err := s.exercises.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExerciseNotFound
		}
		return err
	}

	return s.resyncExercise(ctx, exercise, exercise.Round)
}

// ResyncRound rebuilds every exercise column in the round and the round total
// column.
func (s *gradingService) ResyncRound(ctx context.Context, roundID uint) error {
	round, err := s.rounds.GetByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoundNotFound
		}
		return err
	}

	exercises, err := s.exercises.ListByRound(ctx, roundID)
	if err != nil {
		return err
	}

	totals := make(map[uint]float64)
	for _, exercise := range exercises {
		grades, err := s.resyncExerciseGrades(ctx, exercise, round)
		if err != nil {
			return err
		}
		for userID, grade := range grades {
			totals[userID] += grade
		}
	}

	roundItem := gradebook.Item{
		CourseID:     round.CourseID,
		RoundID:      round.ID,
		ItemNumber:   gradebook.RoundItemNumber,
		Name:         round.Name,
		MaxPoints:    round.MaxPoints,
		PointsToPass: round.PointsToPass,
	}
	if err := s.gradebook.UpsertItem(ctx, roundItem); err != nil {
		return err
	}

	roundRef := gradebook.Ref{CourseID: round.CourseID, RoundID: round.ID, ItemNumber: gradebook.RoundItemNumber}
	if err := s.gradebook.ResetItem(ctx, roundRef); err != nil {
		return err
	}
	if len(totals) > 0 {
		if err := s.gradebook.SetGrades(ctx, roundRef, totals); err != nil {
			return err
		}
	}

	s.logger.Info().Uint("round_id", round.ID).Int("exercises", len(exercises)).Msg("round gradebook resynced")

	return nil
}

func (s *gradingService) resyncExercise(ctx context.Context, exercise models.Exercise, round models.ExerciseRound) error {
	if _, err := s.resyncExerciseGrades(ctx, exercise, round); err != nil {
		return err
	}

	s.logger.Info().Uint("exercise_id", exercise.ID).Msg("exercise gradebook resynced")

	return nil
}

func (s *gradingService) resyncExerciseGrades(ctx context.Context, exercise models.Exercise, round models.ExerciseRound) (map[uint]float64, error) {
	grades, err := s.bestGradesForExercise(ctx, exercise.ID)
	if err != nil {
		return nil, err
	}

	item := gradebook.Item{
		CourseID:     round.CourseID,
		RoundID:      round.ID,
		ItemNumber:   exercise.GradeItemNumber,
		Name:         exercise.Name,
		MaxPoints:    exercise.MaxPoints,
		PointsToPass: exercise.PointsToPass,
	}
	if err := s.gradebook.UpsertItem(ctx, item); err != nil {
		return nil, err
	}

	ref := gradebook.Ref{CourseID: round.CourseID, RoundID: round.ID, ItemNumber: exercise.GradeItemNumber}
	if err := s.gradebook.ResetItem(ctx, ref); err != nil {
		return nil, err
	}
	if len(grades) > 0 {
		if err := s.gradebook.SetGrades(ctx, ref, grades); err != nil {
			return nil, err
		}
	}

	return grades, nil
}

// bestGradesForExercise returns every submitter's best grade for the exercise.
func (s *gradingService) bestGradesForExercise(ctx context.Context, exerciseID uint) (map[uint]float64, error) {
	submitters, err := s.exercises.SubmitterIDs(ctx, exerciseID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		ExerciseID:    &exerciseID,
		ExcludeErrors: true,
	})
	if err != nil {
		return nil, err
	}

	bySubmitter := make(map[uint][]models.Submission, len(submitters))
	for _, submission := range submissions {
		bySubmitter[submission.SubmitterID] = append(bySubmitter[submission.SubmitterID], submission)
	}

	grades := make(map[uint]float64, len(submitters))
	for _, submitterID := range submitters {
		if best := BestSubmission(bySubmitter[submitterID]); best != nil {
			grades[submitterID] = float64(best.Grade)
		}
	}

	return grades, nil
}

// finalize applies the grading policy and persists the result. The
// waiting -> ready transition is a single conditional update, so a duplicate
// callback for the same submission is a no-op and the gradebook is written at
// most once per grading result.
func (s *gradingService) finalize(ctx context.Context, submission *models.Submission, exercise models.Exercise, result remote.GradingResult) error {
	round := exercise.Round
	now := s.now()

	points, outOfRange := ClampPoints(result.Points, exercise.MaxPoints)
	if outOfRange {
		s.failures.Record(ctx, models.ServiceFailureEvent{
			CourseID:    round.CourseID,
			Kind:        models.FailureKindInvalidResponse,
			ObjectTable: "submissions",
			ObjectID:    submission.ID,
			URL:         exercise.ServiceURL,
			Error:       fmt.Sprintf("service reported %d points for max %d", result.Points, exercise.MaxPoints),
		})
	}

	update := repository.FinalizeUpdate{
		Status:           models.SubmissionStatusReady,
		ServicePoints:    points,
		ServiceMaxPoints: exercise.MaxPoints,
		GradingTime:      now,
		Feedback:         s.sanitizer.Sanitize(result.Feedback),
	}
	if len(result.Raw) > 0 {
		update.GradingData = datatypes.JSON(result.Raw)
	}

	deadline := round.FinalDeadline()
	closing := round.ClosingTime
	if extra, err := s.extraTime(ctx, exercise.ID, submission.SubmitterID); err == nil && extra > 0 {
		deadline = deadline.Add(extra)
		closing = closing.Add(extra)
	}

	switch {
	case submission.SubmissionTime.After(deadline):
		// Past the final deadline: the submission is kept for the record but
		// carries no points and can never become the best submission.
		update.Status = models.SubmissionStatusRejected
		update.Grade = 0
	case submission.SubmissionTime.After(closing):
		if submission.LatePenaltyApplied != nil {
			// Already penalized on a previous grading round; never twice.
			update.LatePenaltyApplied = submission.LatePenaltyApplied
			update.Grade = ApplyLatePenalty(points, *submission.LatePenaltyApplied)
		} else {
			penalty := round.LateSubmissionPenalty
			update.Grade = ApplyLatePenalty(points, penalty)
			update.LatePenaltyApplied = &penalty
		}
	default:
		update.Grade = points
	}

	applied, err := s.submissions.FinalizeWaiting(ctx, submission.ID, update)
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Info().Uint("submission_id", submission.ID).Msg("duplicate grading result ignored")
		return ErrSubmissionNotWaiting
	}

	observability.Submissions().WithLabelValues("graded").Inc()

	s.syncGradebook(ctx, exercise, submission.SubmitterID)

	return nil
}

// syncGradebook writes the submitter's best grade for the exercise and the
// updated round total. A gradebook failure is operator-visible but does not
// undo the submission's own state.
func (s *gradingService) syncGradebook(ctx context.Context, exercise models.Exercise, submitterID uint) {
	round := exercise.Round

	best, err := s.bestGradeForUser(ctx, exercise.ID, submitterID)
	if err != nil {
		s.reportSyncFailure(ctx, exercise, err)
		return
	}

	ref := gradebook.Ref{CourseID: round.CourseID, RoundID: round.ID, ItemNumber: exercise.GradeItemNumber}
	if err := s.gradebook.SetGrades(ctx, ref, map[uint]float64{submitterID: float64(best)}); err != nil {
		s.reportSyncFailure(ctx, exercise, err)
		return
	}

	total, err := s.roundTotalForUser(ctx, round.ID, submitterID)
	if err != nil {
		s.reportSyncFailure(ctx, exercise, err)
		return
	}

	roundRef := gradebook.Ref{CourseID: round.CourseID, RoundID: round.ID, ItemNumber: gradebook.RoundItemNumber}
	if err := s.gradebook.SetGrades(ctx, roundRef, map[uint]float64{submitterID: float64(total)}); err != nil {
		s.reportSyncFailure(ctx, exercise, err)
		return
	}

	observability.GradebookSyncs().WithLabelValues("ok").Inc()
}

func (s *gradingService) bestGradeForUser(ctx context.Context, exerciseID, submitterID uint) (int, error) {
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		ExerciseID:    &exerciseID,
		SubmitterID:   &submitterID,
		ExcludeErrors: true,
	})
	if err != nil {
		return 0, err
	}

	best := BestSubmission(submissions)
	if best == nil {
		return 0, nil
	}

	return best.Grade, nil
}

func (s *gradingService) roundTotalForUser(ctx context.Context, roundID, submitterID uint) (int, error) {
	exercises, err := s.exercises.ListByRound(ctx, roundID)
	if err != nil {
		return 0, err
	}

	exerciseIDs := make([]uint, 0, len(exercises))
	for _, exercise := range exercises {
		exerciseIDs = append(exerciseIDs, exercise.ID)
	}

	submissions, err := s.submissions.ListForUserByExercises(ctx, submitterID, exerciseIDs)
	if err != nil {
		return 0, err
	}

	byExercise := make(map[uint][]models.Submission, len(exerciseIDs))
	for _, submission := range submissions {
		byExercise[submission.ExerciseID] = append(byExercise[submission.ExerciseID], submission)
	}

	total := 0
	for _, exerciseID := range exerciseIDs {
		if best := BestSubmission(byExercise[exerciseID]); best != nil {
			total += best.Grade
		}
	}

	return total, nil
}

func (s *gradingService) recordTransportFailure(ctx context.Context, submission *models.Submission, exercise models.Exercise, serviceURL string, cause error) {
	if err := s.submissions.MarkError(ctx, submission.ID, "grading request failed"); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to mark submission as errored")
	}

	s.failures.Record(ctx, models.ServiceFailureEvent{
		CourseID:    exercise.Round.CourseID,
		Kind:        models.FailureKindTransport,
		ObjectTable: "submissions",
		ObjectID:    submission.ID,
		URL:         serviceURL,
		Error:       cause.Error(),
	})
}

func (s *gradingService) reportSyncFailure(ctx context.Context, exercise models.Exercise, cause error) {
	observability.GradebookSyncs().WithLabelValues("failed").Inc()
	s.failures.Record(ctx, models.ServiceFailureEvent{
		CourseID:    exercise.Round.CourseID,
		Kind:        models.FailureKindGradebookSync,
		ObjectTable: "exercises",
		ObjectID:    exercise.ID,
		URL:         exercise.ServiceURL,
		Error:       cause.Error(),
	})
}

func (s *gradingService) extraTime(ctx context.Context, exerciseID, userID uint) (time.Duration, error) {
	if s.override == nil {
		return 0, nil
	}
	return s.override.ExtraTime(ctx, exerciseID, userID)
}

func (s *gradingService) storeFile(ctx context.Context, exercise models.Exercise, file *multipart.FileHeader) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("file submissions are not enabled")
	}
	if exercise.MaxSubmissionFileSize > 0 && file.Size > exercise.MaxSubmissionFileSize {
		return "", policyViolation("the submission file is too large")
	}
	if err := validateFileType(file); err != nil {
		return "", err
	}

	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	fileURL, err := s.uploader.Upload(ctx, file.Filename, reader)
	if err != nil {
		return "", fmt.Errorf("failed to store submission file: %w", err)
	}

	return fileURL, nil
}

func (s *gradingService) callbackURL(submissionHash string) string {
	return fmt.Sprintf("%s/api/v1/submissions/%s/grade", s.callbackBaseURL, submissionHash)
}

func (s *gradingService) postURL(exerciseID uint) string {
	return fmt.Sprintf("%s/api/v1/exercises/%d/submissions", s.callbackBaseURL, exerciseID)
}
