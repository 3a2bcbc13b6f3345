package models

import "time"

// Service failure kinds recorded by the grading relay.
const (
	FailureKindTransport       = "transport"
	FailureKindInvalidResponse = "invalid_response"
	FailureKindGradebookSync   = "gradebook_sync"
)

// ServiceFailureEvent is an operator-visible record of an exercise service
// failure: unreachable service, malformed grading payload or a gradebook
// write that was refused.
type ServiceFailureEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CourseID    uint      `gorm:"not null;index" json:"course_id"`
	Kind        string    `gorm:"size:32;not null" json:"kind"`
	ObjectTable string    `gorm:"size:64" json:"object_table"`
	ObjectID    uint      `json:"object_id"`
	URL         string    `gorm:"size:512" json:"url"`
	Error       string    `gorm:"type:text" json:"error"`
	CreatedAt   time.Time `json:"created_at"`
}
