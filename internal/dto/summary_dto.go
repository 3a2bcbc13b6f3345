package dto

// UserExerciseSummary describes one student's standing in a single exercise.
type UserExerciseSummary struct {
	ExerciseID      uint                 `json:"exercise_id"`
	ExerciseName    string               `json:"exercise_name"`
	CategoryID      uint                 `json:"category_id"`
	MaxPoints       int                  `json:"max_points"`
	PointsToPass    int                  `json:"points_to_pass"`
	SubmissionCount int                  `json:"submission_count"`
	Points          int                  `json:"points"`
	Passed          bool                 `json:"passed"`
	BestSubmission  *SubmissionResponse  `json:"best_submission"`
	Submissions     []SubmissionResponse `json:"submissions"`
}

// UserModuleSummary aggregates one student's results over an exercise round.
type UserModuleSummary struct {
	RoundID      uint                  `json:"round_id"`
	RoundName    string                `json:"round_name"`
	MaxPoints    int                   `json:"max_points"`
	PointsToPass int                   `json:"points_to_pass"`
	TotalPoints  int                   `json:"total_points"`
	Passed       bool                  `json:"passed"`
	Exercises    []UserExerciseSummary `json:"exercises"`
	ChapterNames []string              `json:"chapter_names"`
}

// UserCategorySummary aggregates one student's results over a category.
type UserCategorySummary struct {
	CategoryID    uint   `json:"category_id"`
	CategoryName  string `json:"category_name"`
	MaxPoints     int    `json:"max_points"`
	PointsToPass  int    `json:"points_to_pass"`
	TotalPoints   int    `json:"total_points"`
	Passed        bool   `json:"passed"`
	ExerciseCount int    `json:"exercise_count"`
}

// UserCourseSummary is the whole-course roll-up for one student. It is
// recomputed from current submission state on each request and never
// persisted.
type UserCourseSummary struct {
	CourseID      uint                  `json:"course_id"`
	UserID        uint                  `json:"user_id"`
	ExerciseCount int                   `json:"exercise_count"`
	MaxPoints     int                   `json:"max_points"`
	TotalPoints   int                   `json:"total_points"`
	Modules       []UserModuleSummary   `json:"modules"`
	Categories    []UserCategorySummary `json:"categories"`
}
