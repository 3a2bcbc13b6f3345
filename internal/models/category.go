package models

import "time"

// Category groups exercises across rounds for reporting purposes.
type Category struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CourseID     uint      `gorm:"not null;uniqueIndex:idx_category_course_name" json:"course_id"`
	Name         string    `gorm:"size:255;not null;uniqueIndex:idx_category_course_name" json:"name"`
	Status       string    `gorm:"size:16;not null;default:ready" json:"status"`
	PointsToPass int       `gorm:"not null;default:0" json:"points_to_pass"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Course       Course    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsHidden reports whether the category is hidden from students.
func (c Category) IsHidden() bool {
	return c.Status == StatusHidden
}
