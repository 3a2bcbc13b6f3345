package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	ExerciseID    *uint
	SubmitterID   *uint
	Status        *string
	ExcludeErrors bool
}

// FinalizeUpdate carries the grading result written when a waiting submission
// is finalized.
type FinalizeUpdate struct {
	Status             string
	Grade              int
	ServicePoints      int
	ServiceMaxPoints   int
	GradingTime        time.Time
	LatePenaltyApplied *float64
	GradingData        datatypes.JSON
	Feedback           string
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	ListForUserByExercises(ctx context.Context, submitterID uint, exerciseIDs []uint) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByHash(ctx context.Context, hash string) (models.Submission, error)
	CountForExerciseAndSubmitter(ctx context.Context, exerciseID, submitterID uint, excludeErrors bool) (int64, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	FinalizeWaiting(ctx context.Context, id uint, update FinalizeUpdate) (bool, error)
	MarkError(ctx context.Context, id uint, feedback string) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{}).Preload("Exercise")

	if filter.ExerciseID != nil {
		query = query.Where("exercise_id = ?", *filter.ExerciseID)
	}
	if filter.SubmitterID != nil {
		query = query.Where("submitter_id = ?", *filter.SubmitterID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ExcludeErrors {
		query = query.Where("status <> ?", models.SubmissionStatusError)
	}

	var submissions []models.Submission
	if err := query.Order("submission_time ASC, id ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// ListForUserByExercises batch-fetches all of a user's submissions across the
// given exercises, newest first. The summary layer relies on this being a
// single query regardless of the exercise count.
func (r *submissionRepository) ListForUserByExercises(ctx context.Context, submitterID uint, exerciseIDs []uint) ([]models.Submission, error) {
	if len(exerciseIDs) == 0 {
		return nil, nil
	}

	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("submitter_id = ? AND exercise_id IN ?", submitterID, exerciseIDs).
		Order("submission_time DESC, id DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).Preload("Exercise").Preload("Exercise.Round").
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByHash(ctx context.Context, hash string) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).Preload("Exercise").Preload("Exercise.Round").
		Where("hash = ?", hash).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) CountForExerciseAndSubmitter(ctx context.Context, exerciseID, submitterID uint, excludeErrors bool) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("exercise_id = ? AND submitter_id = ?", exerciseID, submitterID)
	if excludeErrors {
		query = query.Where("status <> ?", models.SubmissionStatusError)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

// FinalizeWaiting performs the waiting -> ready/rejected transition as a
// single conditional update. It returns false when the submission was not in
// the waiting state anymore, which makes a duplicate grading callback a no-op.
func (r *submissionRepository) FinalizeWaiting(ctx context.Context, id uint, update FinalizeUpdate) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusWaiting).
		Updates(map[string]interface{}{
			"status":               update.Status,
			"grade":                update.Grade,
			"service_points":       update.ServicePoints,
			"service_max_points":   update.ServiceMaxPoints,
			"grading_time":         update.GradingTime,
			"late_penalty_applied": update.LatePenaltyApplied,
			"grading_data":         update.GradingData,
			"feedback":             update.Feedback,
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *submissionRepository) MarkError(ctx context.Context, id uint, feedback string) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   models.SubmissionStatusError,
			"feedback": feedback,
		}).Error
}
