package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/astra-lms/astra-api/internal/models"
)

// CourseRepository defines data operations for course configuration rows.
type CourseRepository interface {
	GetByID(ctx context.Context, id uint) (models.Course, error)
	GetByKey(ctx context.Context, courseKey string) (models.Course, error)
	Upsert(ctx context.Context, course *models.Course) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates the repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) GetByKey(ctx context.Context, courseKey string) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Where("course_key = ?", courseKey).First(&course).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) Upsert(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "course_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "api_key", "config_url", "module_numbering", "content_numbering", "updated_at",
		}),
	}).Create(course).Error
}
