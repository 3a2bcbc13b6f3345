package dto

import "github.com/astra-lms/astra-api/internal/models"

// ExerciseCreateRequest carries the fields for creating an exercise.
type ExerciseCreateRequest struct {
	CategoryID            uint   `json:"category_id" validate:"required"`
	ParentID              *uint  `json:"parent_id"`
	OrderNum              int    `json:"order_num" validate:"omitempty,min=0"`
	RemoteKey             string `json:"remote_key" validate:"required,max=128"`
	Name                  string `json:"name" validate:"required,max=255"`
	ServiceURL            string `json:"service_url" validate:"required,url,max=512"`
	Status                string `json:"status" validate:"omitempty,oneof=ready hidden maintenance"`
	MaxPoints             int    `json:"max_points" validate:"min=0"`
	PointsToPass          int    `json:"points_to_pass" validate:"omitempty,min=0"`
	MaxSubmissions        *int   `json:"max_submissions" validate:"omitempty,min=0"`
	MaxSubmissionFileSize int64  `json:"max_submission_file_size" validate:"omitempty,min=0"`
	GradeItemNumber       int    `json:"grade_item_number" validate:"min=1"`
}

// ExerciseUpdateRequest carries the mutable exercise fields.
type ExerciseUpdateRequest struct {
	CategoryID            *uint   `json:"category_id"`
	OrderNum              *int    `json:"order_num" validate:"omitempty,min=0"`
	Name                  *string `json:"name" validate:"omitempty,max=255"`
	ServiceURL            *string `json:"service_url" validate:"omitempty,url,max=512"`
	Status                *string `json:"status" validate:"omitempty,oneof=ready hidden maintenance"`
	MaxPoints             *int    `json:"max_points" validate:"omitempty,min=0"`
	PointsToPass          *int    `json:"points_to_pass" validate:"omitempty,min=0"`
	MaxSubmissions        *int    `json:"max_submissions" validate:"omitempty,min=0"`
	MaxSubmissionFileSize *int64  `json:"max_submission_file_size" validate:"omitempty,min=0"`
}

// ExerciseResponse is the API representation of an exercise.
type ExerciseResponse struct {
	ID                    uint   `json:"id"`
	RoundID               uint   `json:"round_id"`
	CategoryID            uint   `json:"category_id"`
	ParentID              *uint  `json:"parent_id"`
	OrderNum              int    `json:"order_num"`
	RemoteKey             string `json:"remote_key"`
	Name                  string `json:"name"`
	Status                string `json:"status"`
	MaxPoints             int    `json:"max_points"`
	PointsToPass          int    `json:"points_to_pass"`
	MaxSubmissions        int    `json:"max_submissions"`
	MaxSubmissionFileSize int64  `json:"max_submission_file_size"`
	GradeItemNumber       int    `json:"grade_item_number"`
}

// NewExerciseResponse maps an exercise model to its API representation.
func NewExerciseResponse(exercise models.Exercise) ExerciseResponse {
	return ExerciseResponse{
		ID:                    exercise.ID,
		RoundID:               exercise.RoundID,
		CategoryID:            exercise.CategoryID,
		ParentID:              exercise.ParentID,
		OrderNum:              exercise.OrderNum,
		RemoteKey:             exercise.RemoteKey,
		Name:                  exercise.Name,
		Status:                exercise.Status,
		MaxPoints:             exercise.MaxPoints,
		PointsToPass:          exercise.PointsToPass,
		MaxSubmissions:        exercise.MaxSubmissions,
		MaxSubmissionFileSize: exercise.MaxSubmissionFileSize,
		GradeItemNumber:       exercise.GradeItemNumber,
	}
}

// NewExerciseResponseSlice maps a slice of exercises.
func NewExerciseResponseSlice(exercises []models.Exercise) []ExerciseResponse {
	responses := make([]ExerciseResponse, 0, len(exercises))
	for _, exercise := range exercises {
		responses = append(responses, NewExerciseResponse(exercise))
	}
	return responses
}

// ExercisePageResponse carries the exercise description loaded from the
// exercise service.
type ExercisePageResponse struct {
	ExerciseID uint   `json:"exercise_id"`
	Content    string `json:"content"`
}
