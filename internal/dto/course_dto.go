package dto

import "github.com/astra-lms/astra-api/internal/models"

// CourseUpsertRequest creates or updates the per-course configuration.
type CourseUpsertRequest struct {
	CourseKey        string `json:"course_key" validate:"required,max=64"`
	Name             string `json:"name" validate:"required,max=255"`
	APIKey           string `json:"api_key" validate:"omitempty,max=128"`
	ConfigURL        string `json:"config_url" validate:"omitempty,url,max=512"`
	ModuleNumbering  string `json:"module_numbering" validate:"omitempty,oneof=none arabic roman hidden_arabic"`
	ContentNumbering string `json:"content_numbering" validate:"omitempty,oneof=none arabic roman"`
}

// CourseResponse is the API representation of a course configuration.
type CourseResponse struct {
	ID               uint   `json:"id"`
	CourseKey        string `json:"course_key"`
	Name             string `json:"name"`
	ConfigURL        string `json:"config_url"`
	ModuleNumbering  string `json:"module_numbering"`
	ContentNumbering string `json:"content_numbering"`
}

// NewCourseResponse maps a course model to its API representation.
func NewCourseResponse(course models.Course) CourseResponse {
	return CourseResponse{
		ID:               course.ID,
		CourseKey:        course.CourseKey,
		Name:             course.Name,
		ConfigURL:        course.ConfigURL,
		ModuleNumbering:  course.ModuleNumbering,
		ContentNumbering: course.ContentNumbering,
	}
}

// CategoryCreateRequest carries the fields for creating a category.
type CategoryCreateRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Status       string `json:"status" validate:"omitempty,oneof=ready hidden"`
	PointsToPass int    `json:"points_to_pass" validate:"omitempty,min=0"`
}

// CategoryResponse is the API representation of a category.
type CategoryResponse struct {
	ID           uint   `json:"id"`
	CourseID     uint   `json:"course_id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	PointsToPass int    `json:"points_to_pass"`
}

// NewCategoryResponse maps a category model to its API representation.
func NewCategoryResponse(category models.Category) CategoryResponse {
	return CategoryResponse{
		ID:           category.ID,
		CourseID:     category.CourseID,
		Name:         category.Name,
		Status:       category.Status,
		PointsToPass: category.PointsToPass,
	}
}

// NewCategoryResponseSlice maps a slice of categories.
func NewCategoryResponseSlice(categories []models.Category) []CategoryResponse {
	responses := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		responses = append(responses, NewCategoryResponse(category))
	}
	return responses
}

// ImportResult reports what a course configuration import created or updated.
type ImportResult struct {
	Categories int `json:"categories"`
	Rounds     int `json:"rounds"`
	Exercises  int `json:"exercises"`
	Chapters   int `json:"chapters"`
}
