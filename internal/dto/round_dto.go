package dto

import (
	"time"

	"github.com/astra-lms/astra-api/internal/models"
)

// RoundCreateRequest carries the fields for creating an exercise round.
type RoundCreateRequest struct {
	Name                   string     `json:"name" validate:"required,max=255"`
	RemoteKey              string     `json:"remote_key" validate:"required,max=128"`
	OrderNum               int        `json:"order_num" validate:"omitempty,min=0"`
	Status                 string     `json:"status" validate:"omitempty,oneof=ready hidden maintenance"`
	OpeningTime            time.Time  `json:"opening_time" validate:"required"`
	ClosingTime            time.Time  `json:"closing_time" validate:"required"`
	LateSubmissionsAllowed bool       `json:"late_submissions_allowed"`
	LateSubmissionDeadline *time.Time `json:"late_submission_deadline"`
	LateSubmissionPenalty  float64    `json:"late_submission_penalty" validate:"gte=0,lte=1"`
	MaxSubmissionsDefault  int        `json:"max_submissions_default" validate:"omitempty,min=0"`
	PointsToPass           int        `json:"points_to_pass" validate:"omitempty,min=0"`
}

// RoundUpdateRequest carries the mutable round fields; nil values are left
// unchanged.
type RoundUpdateRequest struct {
	Name                   *string    `json:"name" validate:"omitempty,max=255"`
	OrderNum               *int       `json:"order_num" validate:"omitempty,min=0"`
	Status                 *string    `json:"status" validate:"omitempty,oneof=ready hidden maintenance"`
	OpeningTime            *time.Time `json:"opening_time"`
	ClosingTime            *time.Time `json:"closing_time"`
	LateSubmissionsAllowed *bool      `json:"late_submissions_allowed"`
	LateSubmissionDeadline *time.Time `json:"late_submission_deadline"`
	LateSubmissionPenalty  *float64   `json:"late_submission_penalty" validate:"omitempty,gte=0,lte=1"`
	PointsToPass           *int       `json:"points_to_pass" validate:"omitempty,min=0"`
}

// RoundResponse is the API representation of an exercise round.
type RoundResponse struct {
	ID                     uint       `json:"id"`
	CourseID               uint       `json:"course_id"`
	Name                   string     `json:"name"`
	RemoteKey              string     `json:"remote_key"`
	OrderNum               int        `json:"order_num"`
	Status                 string     `json:"status"`
	OpeningTime            time.Time  `json:"opening_time"`
	ClosingTime            time.Time  `json:"closing_time"`
	LateSubmissionsAllowed bool       `json:"late_submissions_allowed"`
	LateSubmissionDeadline *time.Time `json:"late_submission_deadline"`
	LateSubmissionPenalty  float64    `json:"late_submission_penalty"`
	MaxPoints              int        `json:"max_points"`
	PointsToPass           int        `json:"points_to_pass"`
}

// NewRoundResponse maps a round model to its API representation.
func NewRoundResponse(round models.ExerciseRound) RoundResponse {
	return RoundResponse{
		ID:                     round.ID,
		CourseID:               round.CourseID,
		Name:                   round.Name,
		RemoteKey:              round.RemoteKey,
		OrderNum:               round.OrderNum,
		Status:                 round.Status,
		OpeningTime:            round.OpeningTime,
		ClosingTime:            round.ClosingTime,
		LateSubmissionsAllowed: round.LateSubmissionsAllowed,
		LateSubmissionDeadline: round.LateSubmissionDeadline,
		LateSubmissionPenalty:  round.LateSubmissionPenalty,
		MaxPoints:              round.MaxPoints,
		PointsToPass:           round.PointsToPass,
	}
}

// NewRoundResponseSlice maps a slice of rounds.
func NewRoundResponseSlice(rounds []models.ExerciseRound) []RoundResponse {
	responses := make([]RoundResponse, 0, len(rounds))
	for _, round := range rounds {
		responses = append(responses, NewRoundResponse(round))
	}
	return responses
}
