package models

import "time"

// Module and content numbering styles used when rendering the course index.
const (
	NumberingNone         = "none"
	NumberingArabic       = "arabic"
	NumberingRoman        = "roman"
	NumberingHiddenArabic = "hidden_arabic"
)

// Course holds the per-course configuration: the API key and configuration URL
// used to talk to the external exercise service, plus numbering preferences.
// There is exactly one row per host course.
type Course struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CourseKey        string    `gorm:"size:64;uniqueIndex;not null" json:"course_key"`
	Name             string    `gorm:"size:255;not null" json:"name"`
	APIKey           string    `gorm:"size:128" json:"-"`
	ConfigURL        string    `gorm:"size:512" json:"config_url"`
	ModuleNumbering  string    `gorm:"size:16;not null;default:arabic" json:"module_numbering"`
	ContentNumbering string    `gorm:"size:16;not null;default:arabic" json:"content_numbering"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
