package models

import "time"

// Statuses shared by rounds, exercises and categories.
const (
	StatusReady       = "ready"
	StatusHidden      = "hidden"
	StatusMaintenance = "maintenance"
)

// ExerciseRound is a time-boxed container of exercises and chapters within a
// course. MaxPoints is a denormalized sum over the round's exercises and is
// updated incrementally when exercises are created, updated or deleted.
type ExerciseRound struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	CourseID               uint       `gorm:"not null;index" json:"course_id"`
	Name                   string     `gorm:"size:255;not null" json:"name"`
	RemoteKey              string     `gorm:"size:128;not null" json:"remote_key"`
	OrderNum               int        `gorm:"not null;default:1" json:"order_num"`
	Status                 string     `gorm:"size:16;not null;default:ready" json:"status"`
	OpeningTime            time.Time  `gorm:"not null" json:"opening_time"`
	ClosingTime            time.Time  `gorm:"not null" json:"closing_time"`
	LateSubmissionsAllowed bool       `gorm:"not null;default:false" json:"late_submissions_allowed"`
	LateSubmissionDeadline *time.Time `json:"late_submission_deadline"`
	LateSubmissionPenalty  float64    `gorm:"not null;default:0.5" json:"late_submission_penalty"`
	MaxSubmissionsDefault  int        `gorm:"not null;default:10" json:"max_submissions_default"`
	MaxPoints              int        `gorm:"not null;default:0" json:"max_points"`
	PointsToPass           int        `gorm:"not null;default:0" json:"points_to_pass"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	Course                 Course     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsHidden reports whether the round is hidden from students.
func (r ExerciseRound) IsHidden() bool {
	return r.Status == StatusHidden
}

// IsUnderMaintenance reports whether the round is closed for maintenance.
func (r ExerciseRound) IsUnderMaintenance() bool {
	return r.Status == StatusMaintenance
}

// IsOpen reports whether submissions are accepted at the given time,
// ignoring the late submission period.
func (r ExerciseRound) IsOpen(at time.Time) bool {
	return !at.Before(r.OpeningTime) && !at.After(r.ClosingTime)
}

// IsLateSubmissionOpen reports whether the late submission period covers the
// given time.
func (r ExerciseRound) IsLateSubmissionOpen(at time.Time) bool {
	if !r.LateSubmissionsAllowed || r.LateSubmissionDeadline == nil {
		return false
	}
	return at.After(r.ClosingTime) && !at.After(*r.LateSubmissionDeadline)
}

// HasStarted reports whether the round has opened by the given time.
func (r ExerciseRound) HasStarted(at time.Time) bool {
	return !at.Before(r.OpeningTime)
}

// FinalDeadline returns the last moment a submission can still be accepted:
// the late submission deadline when late submissions are allowed, otherwise
// the closing time.
func (r ExerciseRound) FinalDeadline() time.Time {
	if r.LateSubmissionsAllowed && r.LateSubmissionDeadline != nil {
		return *r.LateSubmissionDeadline
	}
	return r.ClosingTime
}
