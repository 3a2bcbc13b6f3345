package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/models"
)

// ExerciseRepository defines data operations for exercises and chapters.
type ExerciseRepository interface {
	ListByRound(ctx context.Context, roundID uint) ([]models.Exercise, error)
	ListByRounds(ctx context.Context, roundIDs []uint) ([]models.Exercise, error)
	ListChaptersByRounds(ctx context.Context, roundIDs []uint) ([]models.Chapter, error)
	GetByID(ctx context.Context, id uint) (models.Exercise, error)
	GetByRemoteKey(ctx context.Context, roundID uint, remoteKey string) (models.Exercise, error)
	GradeItemNumberTaken(ctx context.Context, roundID uint, itemNumber int, excludeID uint) (bool, error)
	Create(ctx context.Context, exercise *models.Exercise) error
	Update(ctx context.Context, exercise *models.Exercise) error
	Delete(ctx context.Context, id uint) error
	CreateChapter(ctx context.Context, chapter *models.Chapter) error
	GetChapterByRemoteKey(ctx context.Context, roundID uint, remoteKey string) (models.Chapter, error)
	UpdateChapter(ctx context.Context, chapter *models.Chapter) error
	SubmitterIDs(ctx context.Context, exerciseID uint) ([]uint, error)
}

type exerciseRepository struct {
	db *gorm.DB
}

// NewExerciseRepository instantiates the repository.
func NewExerciseRepository(db *gorm.DB) ExerciseRepository {
	return &exerciseRepository{db: db}
}

func (r *exerciseRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Exercise{}).Preload("Round")
}

func (r *exerciseRepository) ListByRound(ctx context.Context, roundID uint) ([]models.Exercise, error) {
	var exercises []models.Exercise
	if err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("order_num ASC, id ASC").
		Find(&exercises).Error; err != nil {
		return nil, err
	}

	return exercises, nil
}

func (r *exerciseRepository) ListByRounds(ctx context.Context, roundIDs []uint) ([]models.Exercise, error) {
	if len(roundIDs) == 0 {
		return nil, nil
	}

	var exercises []models.Exercise
	if err := r.db.WithContext(ctx).
		Where("round_id IN ?", roundIDs).
		Order("round_id ASC, order_num ASC, id ASC").
		Find(&exercises).Error; err != nil {
		return nil, err
	}

	return exercises, nil
}

func (r *exerciseRepository) ListChaptersByRounds(ctx context.Context, roundIDs []uint) ([]models.Chapter, error) {
	if len(roundIDs) == 0 {
		return nil, nil
	}

	var chapters []models.Chapter
	if err := r.db.WithContext(ctx).
		Where("round_id IN ?", roundIDs).
		Order("round_id ASC, order_num ASC, id ASC").
		Find(&chapters).Error; err != nil {
		return nil, err
	}

	return chapters, nil
}

func (r *exerciseRepository) GetByID(ctx context.Context, id uint) (models.Exercise, error) {
	var exercise models.Exercise
	if err := r.baseQuery(ctx).First(&exercise, id).Error; err != nil {
		return models.Exercise{}, err
	}

	return exercise, nil
}

func (r *exerciseRepository) GetByRemoteKey(ctx context.Context, roundID uint, remoteKey string) (models.Exercise, error) {
	var exercise models.Exercise
	if err := r.baseQuery(ctx).
		Where("round_id = ? AND remote_key = ?", roundID, remoteKey).
		First(&exercise).Error; err != nil {
		return models.Exercise{}, err
	}

	return exercise, nil
}

func (r *exerciseRepository) GradeItemNumberTaken(ctx context.Context, roundID uint, itemNumber int, excludeID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Exercise{}).
		Where("round_id = ? AND grade_item_number = ?", roundID, itemNumber)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *exerciseRepository) Create(ctx context.Context, exercise *models.Exercise) error {
	return r.db.WithContext(ctx).Create(exercise).Error
}

func (r *exerciseRepository) Update(ctx context.Context, exercise *models.Exercise) error {
	return r.db.WithContext(ctx).Save(exercise).Error
}

// Delete removes the exercise and its submissions in one transaction.
func (r *exerciseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exercise_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Exercise{}, id).Error
	})
}

func (r *exerciseRepository) CreateChapter(ctx context.Context, chapter *models.Chapter) error {
	return r.db.WithContext(ctx).Create(chapter).Error
}

func (r *exerciseRepository) GetChapterByRemoteKey(ctx context.Context, roundID uint, remoteKey string) (models.Chapter, error) {
	var chapter models.Chapter
	if err := r.db.WithContext(ctx).
		Where("round_id = ? AND remote_key = ?", roundID, remoteKey).
		First(&chapter).Error; err != nil {
		return models.Chapter{}, err
	}

	return chapter, nil
}

func (r *exerciseRepository) UpdateChapter(ctx context.Context, chapter *models.Chapter) error {
	return r.db.WithContext(ctx).Save(chapter).Error
}

func (r *exerciseRepository) SubmitterIDs(ctx context.Context, exerciseID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("exercise_id = ?", exerciseID).
		Distinct("submitter_id").
		Pluck("submitter_id", &ids).Error; err != nil {
		return nil, err
	}

	return ids, nil
}
