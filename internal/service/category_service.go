package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/dto"
	"github.com/astra-lms/astra-api/internal/models"
	"github.com/astra-lms/astra-api/internal/repository"
)

// CategoryService manages exercise categories within a course.
type CategoryService interface {
	ListByCourse(ctx context.Context, courseKey string, includeHidden bool) ([]dto.CategoryResponse, error)
	Create(ctx context.Context, courseKey string, payload dto.CategoryCreateRequest) (dto.CategoryResponse, error)
	Delete(ctx context.Context, id uint) error
}

type categoryService struct {
	categories repository.CategoryRepository
	courses    repository.CourseRepository
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewCategoryService constructs a CategoryService instance.
func NewCategoryService(categories repository.CategoryRepository, courses repository.CourseRepository, validate *validator.Validate, logger zerolog.Logger) CategoryService {
	return &categoryService{
		categories: categories,
		courses:    courses,
		validator:  validate,
		logger:     logger.With().Str("component", "category_service").Logger(),
	}
}

func (s *categoryService) ListByCourse(ctx context.Context, courseKey string, includeHidden bool) ([]dto.CategoryResponse, error) {
	course, err := s.courses.GetByKey(ctx, courseKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	categories, err := s.categories.ListByCourse(ctx, course.ID, !includeHidden)
	if err != nil {
		return nil, err
	}

	return dto.NewCategoryResponseSlice(categories), nil
}

func (s *categoryService) Create(ctx context.Context, courseKey string, payload dto.CategoryCreateRequest) (dto.CategoryResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CategoryResponse{}, err
	}

	course, err := s.courses.GetByKey(ctx, courseKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CategoryResponse{}, ErrCourseNotFound
		}
		return dto.CategoryResponse{}, err
	}

	status := payload.Status
	if status == "" {
		status = models.StatusReady
	}

	category := models.Category{
		CourseID:     course.ID,
		Name:         payload.Name,
		Status:       status,
		PointsToPass: payload.PointsToPass,
	}

	if err := s.categories.Create(ctx, &category); err != nil {
		return dto.CategoryResponse{}, err
	}

	s.logger.Info().Uint("category_id", category.ID).Str("course_key", courseKey).Msg("category created")

	return dto.NewCategoryResponse(category), nil
}

func (s *categoryService) Delete(ctx context.Context, id uint) error {
	if _, err := s.categories.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}

	return s.categories.Delete(ctx, id)
}
