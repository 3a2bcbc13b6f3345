package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/dto"
	"github.com/astra-lms/astra-api/internal/models"
	"github.com/astra-lms/astra-api/internal/repository"
)

// SummaryService computes a student's standing across a whole course. The
// computation is bounded to a fixed number of queries no matter how many
// exercises the course has: one for the rounds, one for the exercises, one
// for the chapters and one for all of the user's submissions.
type SummaryService interface {
	GetCourseSummary(ctx context.Context, courseKey string, userID uint) (dto.UserCourseSummary, error)
}

type summaryService struct {
	courses     repository.CourseRepository
	rounds      repository.RoundRepository
	exercises   repository.ExerciseRepository
	categories  repository.CategoryRepository
	submissions repository.SubmissionRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewSummaryService builds the course summary aggregator. The redis client is
// optional; without it every request recomputes from the database.
func NewSummaryService(
	courses repository.CourseRepository,
	rounds repository.RoundRepository,
	exercises repository.ExerciseRepository,
	categories repository.CategoryRepository,
	submissions repository.SubmissionRepository,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) SummaryService {
	return &summaryService{
		courses:     courses,
		rounds:      rounds,
		exercises:   exercises,
		categories:  categories,
		submissions: submissions,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "summary_service").Logger(),
	}
}

func (s *summaryService) GetCourseSummary(ctx context.Context, courseKey string, userID uint) (dto.UserCourseSummary, error) {
	course, err := s.courses.GetByKey(ctx, courseKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserCourseSummary{}, ErrCourseNotFound
		}
		return dto.UserCourseSummary{}, err
	}

	cacheKey := fmt.Sprintf("summary:course:%d:user:%d", course.ID, userID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var summary dto.UserCourseSummary
			if unmarshalErr := json.Unmarshal([]byte(cached), &summary); unmarshalErr == nil {
				s.logger.Debug().Uint("user_id", userID).Msg("course summary cache hit")
				return summary, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read summary cache")
		}
	}

	summary, err := s.build(ctx, course, userID)
	if err != nil {
		return dto.UserCourseSummary{}, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store summary cache")
			}
		}
	}

	return summary, nil
}

type exerciseBucket struct {
	count int
	best  *models.Submission
	all   []models.Submission
}

func (s *summaryService) build(ctx context.Context, course models.Course, userID uint) (dto.UserCourseSummary, error) {
	rounds, err := s.rounds.ListByCourse(ctx, course.ID, true)
	if err != nil {
		return dto.UserCourseSummary{}, err
	}

	roundIDs := make([]uint, 0, len(rounds))
	for _, round := range rounds {
		roundIDs = append(roundIDs, round.ID)
	}

	categories, err := s.categories.ListByCourse(ctx, course.ID, true)
	if err != nil {
		return dto.UserCourseSummary{}, err
	}
	visibleCategories := make(map[uint]models.Category, len(categories))
	for _, category := range categories {
		visibleCategories[category.ID] = category
	}

	allExercises, err := s.exercises.ListByRounds(ctx, roundIDs)
	if err != nil {
		return dto.UserCourseSummary{}, err
	}
	chapters, err := s.exercises.ListChaptersByRounds(ctx, roundIDs)
	if err != nil {
		return dto.UserCourseSummary{}, err
	}

	// Hidden exercises and exercises in hidden categories are excluded from
	// the summary entirely.
	exercisesByRound := make(map[uint][]models.Exercise, len(roundIDs))
	exerciseIDs := make([]uint, 0, len(allExercises))
	for _, exercise := range allExercises {
		if exercise.IsHidden() {
			continue
		}
		if _, ok := visibleCategories[exercise.CategoryID]; !ok {
			continue
		}
		exercisesByRound[exercise.RoundID] = append(exercisesByRound[exercise.RoundID], exercise)
		exerciseIDs = append(exerciseIDs, exercise.ID)
	}

	chaptersByRound := make(map[uint][]models.Chapter, len(roundIDs))
	for _, chapter := range chapters {
		if chapter.IsHidden() {
			continue
		}
		if _, ok := visibleCategories[chapter.CategoryID]; !ok {
			continue
		}
		chaptersByRound[chapter.RoundID] = append(chaptersByRound[chapter.RoundID], chapter)
	}

	submissions, err := s.submissions.ListForUserByExercises(ctx, userID, exerciseIDs)
	if err != nil {
		return dto.UserCourseSummary{}, err
	}

	// Single pass over all submissions: group by exercise and track the best
	// one with the grade-then-earliest-time tie-break.
	buckets := make(map[uint]*exerciseBucket, len(exerciseIDs))
	for _, id := range exerciseIDs {
		buckets[id] = &exerciseBucket{}
	}
	for _, submission := range submissions {
		bucket, ok := buckets[submission.ExerciseID]
		if !ok {
			continue
		}
		bucket.all = append(bucket.all, submission)
		if submission.Status == models.SubmissionStatusError {
			continue
		}
		bucket.count++
		current := submission
		if bucket.best == nil || betterThan(&current, bucket.best) {
			clone := current
			bucket.best = &clone
		}
	}

	summary := dto.UserCourseSummary{
		CourseID: course.ID,
		UserID:   userID,
	}

	categoryTotals := make(map[uint]*dto.UserCategorySummary, len(categories))
	for _, category := range categories {
		categoryTotals[category.ID] = &dto.UserCategorySummary{
			CategoryID:   category.ID,
			CategoryName: category.Name,
			PointsToPass: category.PointsToPass,
		}
	}

	for _, round := range rounds {
		module := dto.UserModuleSummary{
			RoundID:      round.ID,
			RoundName:    round.Name,
			PointsToPass: round.PointsToPass,
		}

		for _, chapter := range chaptersByRound[round.ID] {
			module.ChapterNames = append(module.ChapterNames, chapter.Name)
		}

		for _, exercise := range exercisesByRound[round.ID] {
			bucket := buckets[exercise.ID]

			exerciseSummary := dto.UserExerciseSummary{
				ExerciseID:      exercise.ID,
				ExerciseName:    exercise.Name,
				CategoryID:      exercise.CategoryID,
				MaxPoints:       exercise.MaxPoints,
				PointsToPass:    exercise.PointsToPass,
				SubmissionCount: bucket.count,
				Submissions:     dto.NewSubmissionResponseSlice(bucket.all),
			}
			if bucket.best != nil {
				best := dto.NewSubmissionResponse(*bucket.best)
				exerciseSummary.BestSubmission = &best
				exerciseSummary.Points = bucket.best.Grade
			}
			exerciseSummary.Passed = exerciseSummary.Points >= exercise.PointsToPass

			module.MaxPoints += exercise.MaxPoints
			module.TotalPoints += exerciseSummary.Points
			module.Exercises = append(module.Exercises, exerciseSummary)

			if categoryTotal, ok := categoryTotals[exercise.CategoryID]; ok {
				categoryTotal.MaxPoints += exercise.MaxPoints
				categoryTotal.TotalPoints += exerciseSummary.Points
				categoryTotal.ExerciseCount++
			}

			summary.ExerciseCount++
		}

		module.Passed = module.TotalPoints >= module.PointsToPass
		summary.MaxPoints += module.MaxPoints
		summary.TotalPoints += module.TotalPoints
		summary.Modules = append(summary.Modules, module)
	}

	for _, category := range categories {
		categoryTotal := categoryTotals[category.ID]
		categoryTotal.Passed = categoryTotal.TotalPoints >= categoryTotal.PointsToPass
		summary.Categories = append(summary.Categories, *categoryTotal)
	}

	return summary, nil
}
