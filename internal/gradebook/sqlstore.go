package gradebook

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GradeItem is the persisted gradebook column row.
type GradeItem struct {
	ID           uint      `gorm:"primaryKey"`
	CourseID     uint      `gorm:"not null;index"`
	RoundID      uint      `gorm:"not null;uniqueIndex:idx_grade_item_round_number"`
	ItemNumber   int       `gorm:"not null;uniqueIndex:idx_grade_item_round_number"`
	Name         string    `gorm:"size:255;not null"`
	MaxPoints    int       `gorm:"not null;default:0"`
	PointsToPass int       `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GradeRow is one user's value in a gradebook column.
type GradeRow struct {
	ID          uint      `gorm:"primaryKey"`
	GradeItemID uint      `gorm:"not null;uniqueIndex:idx_grade_item_user"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_grade_item_user"`
	Value       float64   `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type sqlStore struct {
	db *gorm.DB
}

// NewSQLStore builds a Store backed by the relational database.
func NewSQLStore(db *gorm.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) UpsertItem(ctx context.Context, item Item) error {
	row := GradeItem{
		CourseID:     item.CourseID,
		RoundID:      item.RoundID,
		ItemNumber:   item.ItemNumber,
		Name:         item.Name,
		MaxPoints:    item.MaxPoints,
		PointsToPass: item.PointsToPass,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "round_id"}, {Name: "item_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "max_points", "points_to_pass", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return &SyncError{Ref: Ref{CourseID: item.CourseID, RoundID: item.RoundID, ItemNumber: item.ItemNumber}, Err: err}
	}

	return nil
}

func (s *sqlStore) DeleteItem(ctx context.Context, ref Ref) error {
	item, err := s.findItem(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return &SyncError{Ref: ref, Err: err}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("grade_item_id = ?", item.ID).Delete(&GradeRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&GradeItem{}, item.ID).Error
	})
	if err != nil {
		return &SyncError{Ref: ref, Err: err}
	}

	return nil
}

func (s *sqlStore) SetGrades(ctx context.Context, ref Ref, grades map[uint]float64) error {
	if len(grades) == 0 {
		return nil
	}

	item, err := s.findItem(ctx, ref)
	if err != nil {
		return &SyncError{Ref: ref, Err: err}
	}

	rows := make([]GradeRow, 0, len(grades))
	for userID, value := range grades {
		rows = append(rows, GradeRow{GradeItemID: item.ID, UserID: userID, Value: value})
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "grade_item_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return &SyncError{Ref: ref, Err: err}
	}

	return nil
}

func (s *sqlStore) ResetItem(ctx context.Context, ref Ref) error {
	item, err := s.findItem(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return &SyncError{Ref: ref, Err: err}
	}

	if err := s.db.WithContext(ctx).Where("grade_item_id = ?", item.ID).Delete(&GradeRow{}).Error; err != nil {
		return &SyncError{Ref: ref, Err: err}
	}

	return nil
}

func (s *sqlStore) GetGrade(ctx context.Context, ref Ref, userID uint) (float64, bool, error) {
	item, err := s.findItem(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, &SyncError{Ref: ref, Err: err}
	}

	var row GradeRow
	err = s.db.WithContext(ctx).
		Where("grade_item_id = ? AND user_id = ?", item.ID, userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, &SyncError{Ref: ref, Err: err}
	}

	return row.Value, true, nil
}

func (s *sqlStore) findItem(ctx context.Context, ref Ref) (GradeItem, error) {
	var item GradeItem
	err := s.db.WithContext(ctx).
		Where("round_id = ? AND item_number = ?", ref.RoundID, ref.ItemNumber).
		First(&item).Error
	if err != nil {
		return GradeItem{}, err
	}

	return item, nil
}
