package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission lifecycle states.
const (
	// SubmissionStatusInitialized marks a submission that has been created
	// but not yet sent to the exercise service.
	SubmissionStatusInitialized = "initialized"
	// SubmissionStatusWaiting marks a submission uploaded to the service and
	// waiting for a grading result.
	SubmissionStatusWaiting = "waiting"
	// SubmissionStatusReady marks a graded submission.
	SubmissionStatusReady = "ready"
	// SubmissionStatusError marks a submission whose grading failed.
	SubmissionStatusError = "error"
	// SubmissionStatusRejected marks a submission refused by deadline or
	// submission-limit policy after grading.
	SubmissionStatusRejected = "rejected"
)

// Submission is one student attempt at an exercise. It is created when the
// student uploads an answer, finalized exactly once by the grading relay and
// immutable afterwards except for manual re-grading by staff.
type Submission struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	ExerciseID         uint           `gorm:"not null;index:idx_submission_exercise_submitter" json:"exercise_id"`
	SubmitterID        uint           `gorm:"not null;index:idx_submission_exercise_submitter" json:"submitter_id"`
	Hash               string         `gorm:"size:64;uniqueIndex;not null" json:"hash"`
	Status             string         `gorm:"size:16;not null;default:initialized" json:"status"`
	SubmissionTime     time.Time      `gorm:"not null" json:"submission_time"`
	GradingTime        *time.Time     `json:"grading_time"`
	Grade              int            `gorm:"not null;default:0" json:"grade"`
	ServicePoints      int            `gorm:"not null;default:0" json:"service_points"`
	ServiceMaxPoints   int            `gorm:"not null;default:0" json:"service_max_points"`
	LatePenaltyApplied *float64       `json:"late_penalty_applied"`
	SubmissionData     datatypes.JSON `json:"submission_data"`
	GradingData        datatypes.JSON `json:"grading_data"`
	FileURL            string         `gorm:"size:512" json:"file_url"`
	Feedback           string         `gorm:"type:text" json:"feedback"`
	AssistantFeedback  string         `gorm:"type:text" json:"assistant_feedback"`
	GraderID           *uint          `json:"grader_id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Exercise           Exercise       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsGraded reports whether the grading relay has finalized this submission.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusReady || s.Status == SubmissionStatusRejected
}

// CountsTowardLimit reports whether the submission consumes one attempt from
// the exercise submission limit. Errored submissions do not count.
func (s Submission) CountsTowardLimit() bool {
	return s.Status != SubmissionStatusError
}

// IsLate reports whether the submission arrived after the round closing time.
func (s Submission) IsLate(round ExerciseRound) bool {
	return s.SubmissionTime.After(round.ClosingTime)
}
