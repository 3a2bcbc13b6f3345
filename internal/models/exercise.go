package models

import "time"

// Exercise is a gradable task backed by the external exercise service. Each
// exercise belongs to one round and one category, and may have a parent
// exercise (weak reference by id, never preloaded as an owning association).
type Exercise struct {
	ID                    uint          `gorm:"primaryKey" json:"id"`
	RoundID               uint          `gorm:"not null;index;uniqueIndex:idx_exercise_round_item" json:"round_id"`
	CategoryID            uint          `gorm:"not null;index" json:"category_id"`
	ParentID              *uint         `gorm:"index" json:"parent_id"`
	OrderNum              int           `gorm:"not null;default:1" json:"order_num"`
	RemoteKey             string        `gorm:"size:128;not null" json:"remote_key"`
	Name                  string        `gorm:"size:255;not null" json:"name"`
	ServiceURL            string        `gorm:"size:512;not null" json:"service_url"`
	Status                string        `gorm:"size:16;not null;default:ready" json:"status"`
	MaxPoints             int           `gorm:"not null;default:100" json:"max_points"`
	PointsToPass          int           `gorm:"not null;default:0" json:"points_to_pass"`
	MaxSubmissions        int           `gorm:"not null;default:10" json:"max_submissions"`
	MaxSubmissionFileSize int64         `gorm:"not null;default:1048576" json:"max_submission_file_size"`
	GradeItemNumber       int           `gorm:"not null;uniqueIndex:idx_exercise_round_item" json:"grade_item_number"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
	Round                 ExerciseRound `gorm:"foreignKey:RoundID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Category              Category      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsHidden reports whether the exercise is hidden from students.
func (e Exercise) IsHidden() bool {
	return e.Status == StatusHidden
}

// IsUnderMaintenance reports whether the exercise is closed for maintenance.
func (e Exercise) IsUnderMaintenance() bool {
	return e.Status == StatusMaintenance
}

// HasUnlimitedSubmissions reports whether the submission count is uncapped.
func (e Exercise) HasUnlimitedSubmissions() bool {
	return e.MaxSubmissions == 0
}

// Chapter is static course content inside a round. Chapters carry no points
// and accept no submissions; the summary layer lists them next to exercises.
type Chapter struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	RoundID      uint          `gorm:"not null;index" json:"round_id"`
	CategoryID   uint          `gorm:"not null;index" json:"category_id"`
	OrderNum     int           `gorm:"not null;default:1" json:"order_num"`
	RemoteKey    string        `gorm:"size:128;not null" json:"remote_key"`
	Name         string        `gorm:"size:255;not null" json:"name"`
	ServiceURL   string        `gorm:"size:512" json:"service_url"`
	Status       string        `gorm:"size:16;not null;default:ready" json:"status"`
	GeneratesTOC bool          `gorm:"not null;default:false" json:"generates_toc"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Round        ExerciseRound `gorm:"foreignKey:RoundID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Category     Category      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsHidden reports whether the chapter is hidden from students.
func (c Chapter) IsHidden() bool {
	return c.Status == StatusHidden
}
