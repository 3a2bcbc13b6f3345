package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/astra-lms/astra-api/internal/models"
)

// EventRepository persists operator-visible service failure events.
type EventRepository interface {
	Create(ctx context.Context, event *models.ServiceFailureEvent) error
	ListByCourse(ctx context.Context, courseID uint, limit int) ([]models.ServiceFailureEvent, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository instantiates the repository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *models.ServiceFailureEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) ListByCourse(ctx context.Context, courseID uint, limit int) ([]models.ServiceFailureEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []models.ServiceFailureEvent
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}
