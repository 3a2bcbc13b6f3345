package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/models"
)

// RoundRepository defines data operations for exercise rounds.
type RoundRepository interface {
	ListByCourse(ctx context.Context, courseID uint, onlyVisible bool) ([]models.ExerciseRound, error)
	GetByID(ctx context.Context, id uint) (models.ExerciseRound, error)
	GetByRemoteKey(ctx context.Context, courseID uint, remoteKey string) (models.ExerciseRound, error)
	Create(ctx context.Context, round *models.ExerciseRound) error
	Update(ctx context.Context, round *models.ExerciseRound) error
	IncrementMaxPoints(ctx context.Context, id uint, delta int) error
	Delete(ctx context.Context, id uint) error
}

type roundRepository struct {
	db *gorm.DB
}

// NewRoundRepository instantiates the repository.
func NewRoundRepository(db *gorm.DB) RoundRepository {
	return &roundRepository{db: db}
}

func (r *roundRepository) ListByCourse(ctx context.Context, courseID uint, onlyVisible bool) ([]models.ExerciseRound, error) {
	query := r.db.WithContext(ctx).Where("course_id = ?", courseID)
	if onlyVisible {
		query = query.Where("status <> ?", models.StatusHidden)
	}

	var rounds []models.ExerciseRound
	if err := query.Order("order_num ASC, id ASC").Find(&rounds).Error; err != nil {
		return nil, err
	}

	return rounds, nil
}

func (r *roundRepository) GetByID(ctx context.Context, id uint) (models.ExerciseRound, error) {
	var round models.ExerciseRound
	if err := r.db.WithContext(ctx).First(&round, id).Error; err != nil {
		return models.ExerciseRound{}, err
	}

	return round, nil
}

func (r *roundRepository) GetByRemoteKey(ctx context.Context, courseID uint, remoteKey string) (models.ExerciseRound, error) {
	var round models.ExerciseRound
	if err := r.db.WithContext(ctx).
		Where("course_id = ? AND remote_key = ?", courseID, remoteKey).
		First(&round).Error; err != nil {
		return models.ExerciseRound{}, err
	}

	return round, nil
}

func (r *roundRepository) Create(ctx context.Context, round *models.ExerciseRound) error {
	return r.db.WithContext(ctx).Create(round).Error
}

func (r *roundRepository) Update(ctx context.Context, round *models.ExerciseRound) error {
	return r.db.WithContext(ctx).Save(round).Error
}

func (r *roundRepository) IncrementMaxPoints(ctx context.Context, id uint, delta int) error {
	return r.db.WithContext(ctx).Model(&models.ExerciseRound{}).
		Where("id = ?", id).
		UpdateColumn("max_points", gorm.Expr("max_points + ?", delta)).Error
}

func (r *roundRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.ExerciseRound{}, id).Error
}
