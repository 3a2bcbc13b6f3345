package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/models"
)

// CategoryRepository defines data operations for exercise categories.
type CategoryRepository interface {
	ListByCourse(ctx context.Context, courseID uint, onlyVisible bool) ([]models.Category, error)
	GetByID(ctx context.Context, id uint) (models.Category, error)
	GetByName(ctx context.Context, courseID uint, name string) (models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uint) error
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository instantiates the repository.
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) ListByCourse(ctx context.Context, courseID uint, onlyVisible bool) ([]models.Category, error) {
	query := r.db.WithContext(ctx).Where("course_id = ?", courseID)
	if onlyVisible {
		query = query.Where("status <> ?", models.StatusHidden)
	}

	var categories []models.Category
	if err := query.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint) (models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return models.Category{}, err
	}

	return category, nil
}

func (r *categoryRepository) GetByName(ctx context.Context, courseID uint, name string) (models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).
		Where("course_id = ? AND name = ?", courseID, name).
		First(&category).Error; err != nil {
		return models.Category{}, err
	}

	return category, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *categoryRepository) Update(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *categoryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Category{}, id).Error
}
