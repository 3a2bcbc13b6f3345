package dto

import (
	"time"

	"github.com/astra-lms/astra-api/internal/models"
)

// SubmissionCreateRequest carries a student's answer to an exercise.
type SubmissionCreateRequest struct {
	SubmitterID uint              `json:"submitter_id" validate:"required"`
	Answer      map[string]string `json:"answer"`
}

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	ExerciseID  *uint
	SubmitterID *uint
	Status      *string `validate:"omitempty,oneof=initialized waiting ready error rejected"`
}

// SubmissionResponse is the API representation of a submission.
type SubmissionResponse struct {
	ID                 uint       `json:"id"`
	ExerciseID         uint       `json:"exercise_id"`
	SubmitterID        uint       `json:"submitter_id"`
	Hash               string     `json:"hash"`
	Status             string     `json:"status"`
	SubmissionTime     time.Time  `json:"submission_time"`
	GradingTime        *time.Time `json:"grading_time"`
	Grade              int        `json:"grade"`
	ServicePoints      int        `json:"service_points"`
	ServiceMaxPoints   int        `json:"service_max_points"`
	LatePenaltyApplied *float64   `json:"late_penalty_applied"`
	Feedback           string     `json:"feedback"`
	AssistantFeedback  string     `json:"assistant_feedback"`
	FileURL            string     `json:"file_url"`
}

// NewSubmissionResponse maps a submission model to its API representation.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:                 submission.ID,
		ExerciseID:         submission.ExerciseID,
		SubmitterID:        submission.SubmitterID,
		Hash:               submission.Hash,
		Status:             submission.Status,
		SubmissionTime:     submission.SubmissionTime,
		GradingTime:        submission.GradingTime,
		Grade:              submission.Grade,
		ServicePoints:      submission.ServicePoints,
		ServiceMaxPoints:   submission.ServiceMaxPoints,
		LatePenaltyApplied: submission.LatePenaltyApplied,
		Feedback:           submission.Feedback,
		AssistantFeedback:  submission.AssistantFeedback,
		FileURL:            submission.FileURL,
	}
}

// NewSubmissionResponseSlice maps a slice of submissions.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}
