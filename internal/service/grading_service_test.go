package service

import (
	"context"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/dto"
	"github.com/astra-lms/astra-api/internal/gradebook"
	"github.com/astra-lms/astra-api/internal/models"
	"github.com/astra-lms/astra-api/internal/remote"
	"github.com/astra-lms/astra-api/internal/repository"
)

type fakeSubmissionRepo struct {
	nextID      uint
	submissions map[uint]models.Submission
	exercises   *fakeExerciseRepo
}

func newFakeSubmissionRepo(exercises *fakeExerciseRepo) *fakeSubmissionRepo {
	return &fakeSubmissionRepo{nextID: 1, submissions: map[uint]models.Submission{}, exercises: exercises}
}

func (r *fakeSubmissionRepo) withExercise(s models.Submission) models.Submission {
	if r.exercises != nil {
		if exercise, ok := r.exercises.exercises[s.ExerciseID]; ok {
			s.Exercise = exercise
		}
	}
	return s
}

func (r *fakeSubmissionRepo) List(_ context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	var result []models.Submission
	for _, s := range r.submissions {
		if filter.ExerciseID != nil && s.ExerciseID != *filter.ExerciseID {
			continue
		}
		if filter.SubmitterID != nil && s.SubmitterID != *filter.SubmitterID {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		if filter.ExcludeErrors && s.Status == models.SubmissionStatusError {
			continue
		}
		result = append(result, r.withExercise(s))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].SubmissionTime.Equal(result[j].SubmissionTime) {
			return result[i].SubmissionTime.Before(result[j].SubmissionTime)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *fakeSubmissionRepo) ListForUserByExercises(_ context.Context, submitterID uint, exerciseIDs []uint) ([]models.Submission, error) {
	ids := make(map[uint]bool, len(exerciseIDs))
	for _, id := range exerciseIDs {
		ids[id] = true
	}
	var result []models.Submission
	for _, s := range r.submissions {
		if s.SubmitterID == submitterID && ids[s.ExerciseID] {
			result = append(result, s)
		}
	}
	return result, nil
}

func (r *fakeSubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	s, ok := r.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return r.withExercise(s), nil
}

func (r *fakeSubmissionRepo) GetByHash(_ context.Context, hash string) (models.Submission, error) {
	for _, s := range r.submissions {
		if s.Hash == hash {
			return r.withExercise(s), nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (r *fakeSubmissionRepo) CountForExerciseAndSubmitter(_ context.Context, exerciseID, submitterID uint, excludeErrors bool) (int64, error) {
	var count int64
	for _, s := range r.submissions {
		if s.ExerciseID != exerciseID || s.SubmitterID != submitterID {
			continue
		}
		if excludeErrors && s.Status == models.SubmissionStatusError {
			continue
		}
		count++
	}
	return count, nil
}

func (r *fakeSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	submission.ID = r.nextID
	r.nextID++
	r.submissions[submission.ID] = *submission
	return nil
}

func (r *fakeSubmissionRepo) Update(_ context.Context, submission *models.Submission) error {
	r.submissions[submission.ID] = *submission
	return nil
}

func (r *fakeSubmissionRepo) FinalizeWaiting(_ context.Context, id uint, update repository.FinalizeUpdate) (bool, error) {
	s, ok := r.submissions[id]
	if !ok || s.Status != models.SubmissionStatusWaiting {
		return false, nil
	}
	s.Status = update.Status
	s.Grade = update.Grade
	s.ServicePoints = update.ServicePoints
	s.ServiceMaxPoints = update.ServiceMaxPoints
	gradingTime := update.GradingTime
	s.GradingTime = &gradingTime
	s.LatePenaltyApplied = update.LatePenaltyApplied
	s.GradingData = update.GradingData
	s.Feedback = update.Feedback
	r.submissions[id] = s
	return true, nil
}

func (r *fakeSubmissionRepo) MarkError(_ context.Context, id uint, feedback string) error {
	s, ok := r.submissions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = models.SubmissionStatusError
	s.Feedback = feedback
	r.submissions[id] = s
	return nil
}

type fakeExerciseRepo struct {
	exercises  map[uint]models.Exercise
	submitters []uint
}

func (r *fakeExerciseRepo) ListByRound(_ context.Context, roundID uint) ([]models.Exercise, error) {
	var result []models.Exercise
	for _, e := range r.exercises {
		if e.RoundID == roundID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeExerciseRepo) ListByRounds(_ context.Context, _ []uint) ([]models.Exercise, error) {
	return nil, nil
}

func (r *fakeExerciseRepo) ListChaptersByRounds(_ context.Context, _ []uint) ([]models.Chapter, error) {
	return nil, nil
}

func (r *fakeExerciseRepo) GetByID(_ context.Context, id uint) (models.Exercise, error) {
	e, ok := r.exercises[id]
	if !ok {
		return models.Exercise{}, gorm.ErrRecordNotFound
	}
	return e, nil
}

func (r *fakeExerciseRepo) GetByRemoteKey(_ context.Context, _ uint, _ string) (models.Exercise, error) {
	return models.Exercise{}, gorm.ErrRecordNotFound
}

func (r *fakeExerciseRepo) GradeItemNumberTaken(_ context.Context, _ uint, _ int, _ uint) (bool, error) {
	return false, nil
}

func (r *fakeExerciseRepo) Create(_ context.Context, exercise *models.Exercise) error {
	r.exercises[exercise.ID] = *exercise
	return nil
}

func (r *fakeExerciseRepo) Update(_ context.Context, exercise *models.Exercise) error {
	r.exercises[exercise.ID] = *exercise
	return nil
}

func (r *fakeExerciseRepo) Delete(_ context.Context, id uint) error {
	delete(r.exercises, id)
	return nil
}

func (r *fakeExerciseRepo) CreateChapter(_ context.Context, _ *models.Chapter) error { return nil }

func (r *fakeExerciseRepo) GetChapterByRemoteKey(_ context.Context, _ uint, _ string) (models.Chapter, error) {
	return models.Chapter{}, gorm.ErrRecordNotFound
}

func (r *fakeExerciseRepo) UpdateChapter(_ context.Context, _ *models.Chapter) error { return nil }

func (r *fakeExerciseRepo) SubmitterIDs(_ context.Context, _ uint) ([]uint, error) {
	return r.submitters, nil
}

type fakeGrader struct {
	calls  int
	result remote.GradingResult
	err    error
}

func (g *fakeGrader) GradeSubmission(_ context.Context, _ string, _ url.Values, _ ...remote.FileUpload) (remote.GradingResult, error) {
	g.calls++
	if g.err != nil {
		return remote.GradingResult{}, g.err
	}
	return g.result, nil
}

type gradeWrite struct {
	ref    gradebook.Ref
	grades map[uint]float64
}

type fakeGradebook struct {
	writes []gradeWrite
	items  []gradebook.Item
	resets []gradebook.Ref
}

func (g *fakeGradebook) UpsertItem(_ context.Context, item gradebook.Item) error {
	g.items = append(g.items, item)
	return nil
}
func (g *fakeGradebook) DeleteItem(_ context.Context, _ gradebook.Ref) error { return nil }
func (g *fakeGradebook) SetGrades(_ context.Context, ref gradebook.Ref, grades map[uint]float64) error {
	g.writes = append(g.writes, gradeWrite{ref: ref, grades: grades})
	return nil
}
func (g *fakeGradebook) ResetItem(_ context.Context, ref gradebook.Ref) error {
	g.resets = append(g.resets, ref)
	return nil
}
func (g *fakeGradebook) GetGrade(_ context.Context, _ gradebook.Ref, _ uint) (float64, bool, error) {
	return 0, false, nil
}

type fakeRoundRepo struct {
	rounds map[uint]models.ExerciseRound
}

func (f *fakeRoundRepo) ListByCourse(_ context.Context, courseID uint, _ bool) ([]models.ExerciseRound, error) {
	var result []models.ExerciseRound
	for _, round := range f.rounds {
		if round.CourseID == courseID {
			result = append(result, round)
		}
	}
	return result, nil
}

func (f *fakeRoundRepo) GetByID(_ context.Context, id uint) (models.ExerciseRound, error) {
	round, ok := f.rounds[id]
	if !ok {
		return models.ExerciseRound{}, gorm.ErrRecordNotFound
	}
	return round, nil
}

func (f *fakeRoundRepo) GetByRemoteKey(_ context.Context, courseID uint, remoteKey string) (models.ExerciseRound, error) {
	for _, round := range f.rounds {
		if round.CourseID == courseID && round.RemoteKey == remoteKey {
			return round, nil
		}
	}
	return models.ExerciseRound{}, gorm.ErrRecordNotFound
}

func (f *fakeRoundRepo) Create(_ context.Context, round *models.ExerciseRound) error {
	round.ID = uint(len(f.rounds) + 1)
	f.rounds[round.ID] = *round
	return nil
}

func (f *fakeRoundRepo) Update(_ context.Context, round *models.ExerciseRound) error {
	f.rounds[round.ID] = *round
	return nil
}

func (f *fakeRoundRepo) IncrementMaxPoints(_ context.Context, id uint, delta int) error {
	round := f.rounds[id]
	round.MaxPoints += delta
	f.rounds[id] = round
	return nil
}

func (f *fakeRoundRepo) Delete(_ context.Context, id uint) error {
	delete(f.rounds, id)
	return nil
}

type fakeFailureRecorder struct {
	events []models.ServiceFailureEvent
}

func (f *fakeFailureRecorder) Record(_ context.Context, event models.ServiceFailureEvent) {
	f.events = append(f.events, event)
}

type gradingFixture struct {
	service     *gradingService
	submissions *fakeSubmissionRepo
	exercises   *fakeExerciseRepo
	grader      *fakeGrader
	gradebook   *fakeGradebook
	failures    *fakeFailureRecorder
	now         time.Time
}

func newGradingFixture(t *testing.T, round models.ExerciseRound, exercise models.Exercise, now time.Time) *gradingFixture {
	t.Helper()

	exercise.Round = round
	exerciseRepo := &fakeExerciseRepo{exercises: map[uint]models.Exercise{exercise.ID: exercise}}
	submissionRepo := newFakeSubmissionRepo(exerciseRepo)
	roundRepo := &fakeRoundRepo{rounds: map[uint]models.ExerciseRound{round.ID: round}}
	grader := &fakeGrader{}
	store := &fakeGradebook{}
	failures := &fakeFailureRecorder{}

	svc := NewGradingService(
		submissionRepo,
		exerciseRepo,
		roundRepo,
		grader,
		store,
		failures,
		nil,
		nil,
		validator.New(validator.WithRequiredStructEnabled()),
		"http://astra.test",
		zerolog.Nop(),
	).(*gradingService)
	svc.now = func() time.Time { return now }

	return &gradingFixture{
		service:     svc,
		submissions: submissionRepo,
		exercises:   exerciseRepo,
		grader:      grader,
		gradebook:   store,
		failures:    failures,
		now:         now,
	}
}

func testRound() models.ExerciseRound {
	opening := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	closing := opening.Add(7 * 24 * time.Hour)
	lateDeadline := closing.Add(24 * time.Hour)
	return models.ExerciseRound{
		ID:                     1,
		CourseID:               1,
		Name:                   "Round 1",
		Status:                 models.StatusReady,
		OpeningTime:            opening,
		ClosingTime:            closing,
		LateSubmissionsAllowed: true,
		LateSubmissionDeadline: &lateDeadline,
		LateSubmissionPenalty:  0.5,
	}
}

func testExercise() models.Exercise {
	return models.Exercise{
		ID:              1,
		RoundID:         1,
		CategoryID:      1,
		Name:            "Exercise 1",
		ServiceURL:      "http://grader.test/ex1",
		Status:          models.StatusReady,
		MaxPoints:       100,
		GradeItemNumber: 1,
	}
}

func TestSubmitSynchronousGrading(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(time.Hour))
	fx.grader.result = remote.GradingResult{Kind: remote.GradingSynchronous, Points: 80, MaxPoints: 100}

	response, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{
		SubmitterID: 7,
		Answer:      map[string]string{"field_0": "answer"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusReady, response.Status)
	require.Equal(t, 80, response.Grade)
	require.Equal(t, 80, response.ServicePoints)
	require.Nil(t, response.LatePenaltyApplied)

	require.Len(t, fx.gradebook.writes, 2)
	require.Equal(t, 1, fx.gradebook.writes[0].ref.ItemNumber)
	require.Equal(t, map[uint]float64{7: 80}, fx.gradebook.writes[0].grades)
	require.Equal(t, gradebook.RoundItemNumber, fx.gradebook.writes[1].ref.ItemNumber)
	require.Equal(t, map[uint]float64{7: 80}, fx.gradebook.writes[1].grades)
}

func TestSubmitAppliesLatePenaltyOnce(t *testing.T) {
	round := testRound()
	// Half an hour into the late submission period.
	late := round.ClosingTime.Add(30 * time.Minute)
	fx := newGradingFixture(t, round, testExercise(), late)
	fx.grader.result = remote.GradingResult{Kind: remote.GradingSynchronous, Points: 80, MaxPoints: 100}

	response, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusReady, response.Status)
	require.Equal(t, 40, response.Grade)
	require.Equal(t, 80, response.ServicePoints)
	require.NotNil(t, response.LatePenaltyApplied)
	require.Equal(t, 0.5, *response.LatePenaltyApplied)
}

func TestSubmitRejectedAfterFinalDeadline(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.FinalDeadline().Add(time.Minute))

	_, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)

	var policy *PolicyViolation
	require.ErrorAs(t, err, &policy)
	require.Equal(t, 0, fx.grader.calls)
}

func TestSubmitEnforcesLimitBeforeContactingService(t *testing.T) {
	round := testRound()
	exercise := testExercise()
	exercise.MaxSubmissions = 1
	fx := newGradingFixture(t, round, exercise, round.OpeningTime.Add(time.Hour))
	fx.grader.result = remote.GradingResult{Kind: remote.GradingSynchronous, Points: 50, MaxPoints: 100}

	_, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, fx.grader.calls)

	_, err = fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	var policy *PolicyViolation
	require.ErrorAs(t, err, &policy)
	require.Equal(t, 1, fx.grader.calls)
}

func TestSubmitErroredAttemptsDoNotConsumeTheLimit(t *testing.T) {
	round := testRound()
	exercise := testExercise()
	exercise.MaxSubmissions = 1
	fx := newGradingFixture(t, round, exercise, round.OpeningTime.Add(time.Hour))
	fx.grader.err = &remote.PageError{URL: exercise.ServiceURL, Err: context.DeadlineExceeded}

	_, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	require.ErrorIs(t, err, ErrServiceUnavailable)

	fx.grader.err = nil
	fx.grader.result = remote.GradingResult{Kind: remote.GradingSynchronous, Points: 50, MaxPoints: 100}

	response, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusReady, response.Status)
}

func TestSubmitTransportFailureMarksSubmissionErrored(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(time.Hour))
	fx.grader.err = &remote.PageError{URL: "http://grader.test/ex1", Err: context.DeadlineExceeded}

	_, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	require.ErrorIs(t, err, ErrServiceUnavailable)

	submissions, listErr := fx.submissions.List(context.Background(), repository.SubmissionFilter{})
	require.NoError(t, listErr)
	require.Len(t, submissions, 1)
	require.Equal(t, models.SubmissionStatusError, submissions[0].Status)

	require.Len(t, fx.failures.events, 1)
	require.Equal(t, models.FailureKindTransport, fx.failures.events[0].Kind)
	require.Empty(t, fx.gradebook.writes)
}

func TestSubmitClampsOutOfRangePoints(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(time.Hour))
	fx.grader.result = remote.GradingResult{Kind: remote.GradingSynchronous, Points: 150, MaxPoints: 100}

	response, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	require.NoError(t, err)
	require.Equal(t, 100, response.Grade)
	require.Equal(t, 100, response.ServicePoints)

	require.Len(t, fx.failures.events, 1)
	require.Equal(t, models.FailureKindInvalidResponse, fx.failures.events[0].Kind)
}

func TestAsyncSubmissionFinalizedByCallback(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(time.Hour))
	fx.grader.result = remote.GradingResult{Kind: remote.GradingAsyncAccepted}

	response, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusWaiting, response.Status)
	require.Empty(t, fx.gradebook.writes)

	graded, err := fx.service.HandleCallback(context.Background(), response.Hash, []byte(`{"points": 70, "max_points": 100, "feedback": "<p>good</p>"}`))
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusReady, graded.Status)
	require.Equal(t, 70, graded.Grade)
	require.Len(t, fx.gradebook.writes, 2)
}

func TestDuplicateCallbackIsANoOp(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(time.Hour))
	fx.grader.result = remote.GradingResult{Kind: remote.GradingAsyncAccepted}

	response, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	require.NoError(t, err)

	body := []byte(`{"points": 70, "max_points": 100}`)
	_, err = fx.service.HandleCallback(context.Background(), response.Hash, body)
	require.NoError(t, err)

	_, err = fx.service.HandleCallback(context.Background(), response.Hash, body)
	require.ErrorIs(t, err, ErrSubmissionNotWaiting)

	// Only the first callback reaches the gradebook.
	require.Len(t, fx.gradebook.writes, 2)
}

func TestCallbackRejectsSubmissionPastDeadline(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.FinalDeadline().Add(time.Hour))

	// Seeded directly: relayed before the deadline, graded after it passed
	// with a submission time that already missed the final deadline.
	waiting := models.Submission{
		ExerciseID:     1,
		SubmitterID:    7,
		Hash:           "abc-123",
		Status:         models.SubmissionStatusWaiting,
		SubmissionTime: round.FinalDeadline().Add(30 * time.Minute),
	}
	require.NoError(t, fx.submissions.Create(context.Background(), &waiting))

	graded, err := fx.service.HandleCallback(context.Background(), "abc-123", []byte(`{"points": 90, "max_points": 100}`))
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusRejected, graded.Status)
	require.Equal(t, 0, graded.Grade)
	require.Equal(t, 90, graded.ServicePoints)
}

func TestCallbackWithoutPointsIsRejected(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(time.Hour))
	fx.grader.result = remote.GradingResult{Kind: remote.GradingAsyncAccepted}

	response, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	require.NoError(t, err)

	_, err = fx.service.HandleCallback(context.Background(), response.Hash, []byte(`{"wait": true}`))
	require.Error(t, err)

	current, err := fx.submissions.GetByHash(context.Background(), response.Hash)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusWaiting, current.Status)
}

func TestCallbackForUnknownHash(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(time.Hour))

	_, err := fx.service.HandleCallback(context.Background(), "missing", []byte(`{"points": 1}`))
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestRoundTotalSumsBestGrades(t *testing.T) {
	round := testRound()
	exercise := testExercise()
	fx := newGradingFixture(t, round, exercise, round.OpeningTime.Add(time.Hour))

	second := testExercise()
	second.ID = 2
	second.GradeItemNumber = 2
	second.Round = round
	fx.exercises.exercises[2] = second

	base := round.OpeningTime.Add(time.Hour)
	for _, s := range []models.Submission{
		{ExerciseID: 1, SubmitterID: 7, Hash: "h1", Status: models.SubmissionStatusReady, Grade: 60, SubmissionTime: base},
		{ExerciseID: 1, SubmitterID: 7, Hash: "h2", Status: models.SubmissionStatusReady, Grade: 40, SubmissionTime: base.Add(time.Minute)},
		{ExerciseID: 2, SubmitterID: 7, Hash: "h3", Status: models.SubmissionStatusReady, Grade: 30, SubmissionTime: base.Add(2 * time.Minute)},
	} {
		submission := s
		require.NoError(t, fx.submissions.Create(context.Background(), &submission))
	}

	total, err := fx.service.roundTotalForUser(context.Background(), round.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 90, total)
}

func TestSubmitHiddenExercise(t *testing.T) {
	round := testRound()
	exercise := testExercise()
	exercise.Status = models.StatusHidden
	fx := newGradingFixture(t, round, exercise, round.OpeningTime.Add(time.Hour))

	_, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	var policy *PolicyViolation
	require.ErrorAs(t, err, &policy)
	require.Equal(t, 0, fx.grader.calls)
}

func TestSubmitBeforeRoundOpens(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(-time.Minute))

	_, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	var policy *PolicyViolation
	require.ErrorAs(t, err, &policy)
}

func TestSubmitFeedbackIsSanitized(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(time.Hour))
	fx.grader.result = remote.GradingResult{
		Kind:     remote.GradingSynchronous,
		Points:   80,
		Feedback: `<p>well done</p><script>alert("x")</script>`,
	}

	response, err := fx.service.Submit(context.Background(), 1, dto.SubmissionCreateRequest{SubmitterID: 7}, nil)
	require.NoError(t, err)
	require.Contains(t, response.Feedback, "well done")
	require.NotContains(t, response.Feedback, "script")
}

func TestResyncExerciseRebuildsColumn(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(time.Hour))
	fx.exercises.submitters = []uint{7, 8}

	ctx := context.Background()
	seed := []models.Submission{
		{ExerciseID: 1, SubmitterID: 7, Hash: "rs-1", Status: models.SubmissionStatusReady, Grade: 60, SubmissionTime: round.OpeningTime.Add(time.Hour)},
		{ExerciseID: 1, SubmitterID: 7, Hash: "rs-2", Status: models.SubmissionStatusReady, Grade: 80, SubmissionTime: round.OpeningTime.Add(2 * time.Hour)},
		{ExerciseID: 1, SubmitterID: 8, Hash: "rs-3", Status: models.SubmissionStatusReady, Grade: 40, SubmissionTime: round.OpeningTime.Add(time.Hour)},
		{ExerciseID: 1, SubmitterID: 8, Hash: "rs-4", Status: models.SubmissionStatusError, SubmissionTime: round.OpeningTime.Add(2 * time.Hour)},
	}
	for i := range seed {
		require.NoError(t, fx.submissions.Create(ctx, &seed[i]))
	}

	require.NoError(t, fx.service.ResyncExercise(ctx, 1))

	require.Len(t, fx.gradebook.items, 1)
	require.Equal(t, 1, fx.gradebook.items[0].ItemNumber)
	require.Equal(t, "Exercise 1", fx.gradebook.items[0].Name)

	require.Len(t, fx.gradebook.resets, 1)
	require.Len(t, fx.gradebook.writes, 1)
	require.Equal(t, map[uint]float64{7: 80, 8: 40}, fx.gradebook.writes[0].grades)
}

func TestResyncRoundWritesTotals(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime.Add(time.Hour))

	second := testExercise()
	second.ID = 2
	second.Name = "Exercise 2"
	second.GradeItemNumber = 2
	second.Round = round
	fx.exercises.exercises[second.ID] = second
	fx.exercises.submitters = []uint{7}

	ctx := context.Background()
	seed := []models.Submission{
		{ExerciseID: 1, SubmitterID: 7, Hash: "rr-1", Status: models.SubmissionStatusReady, Grade: 80, SubmissionTime: round.OpeningTime.Add(time.Hour)},
		{ExerciseID: 2, SubmitterID: 7, Hash: "rr-2", Status: models.SubmissionStatusReady, Grade: 30, SubmissionTime: round.OpeningTime.Add(time.Hour)},
	}
	for i := range seed {
		require.NoError(t, fx.submissions.Create(ctx, &seed[i]))
	}

	require.NoError(t, fx.service.ResyncRound(ctx, round.ID))

	// Two exercise columns plus the round total column.
	require.Len(t, fx.gradebook.items, 3)
	require.Equal(t, gradebook.RoundItemNumber, fx.gradebook.items[2].ItemNumber)

	require.Len(t, fx.gradebook.writes, 3)
	require.Equal(t, map[uint]float64{7: 80}, fx.gradebook.writes[0].grades)
	require.Equal(t, map[uint]float64{7: 30}, fx.gradebook.writes[1].grades)
	require.Equal(t, gradebook.RoundItemNumber, fx.gradebook.writes[2].ref.ItemNumber)
	require.Equal(t, map[uint]float64{7: 110}, fx.gradebook.writes[2].grades)
}

func TestResyncRoundUnknownRound(t *testing.T) {
	round := testRound()
	fx := newGradingFixture(t, round, testExercise(), round.OpeningTime)

	require.ErrorIs(t, fx.service.ResyncRound(context.Background(), 99), ErrRoundNotFound)
}
