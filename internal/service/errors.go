package service

import "errors"

// ErrCourseNotFound indicates the course configuration row is missing.
var ErrCourseNotFound = errors.New("course not found")

// ErrRoundNotFound indicates an exercise round could not be found.
var ErrRoundNotFound = errors.New("exercise round not found")

// ErrExerciseNotFound indicates an exercise could not be found.
var ErrExerciseNotFound = errors.New("exercise not found")

// ErrCategoryNotFound indicates a category could not be found.
var ErrCategoryNotFound = errors.New("category not found")

// ErrSubmissionNotFound indicates a submission could not be found.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionNotWaiting indicates a grading callback arrived for a
// submission that has already been finalized.
var ErrSubmissionNotWaiting = errors.New("submission is not waiting for grading")

// ErrServiceUnavailable is the user-facing failure when the exercise service
// cannot be reached. The underlying transport error is recorded as a service
// failure event, never shown to the student.
var ErrServiceUnavailable = errors.New("connecting to the exercise service failed")

// PolicyViolation rejects a submission before the exercise service is
// contacted: submission limit reached, exercise under maintenance, round not
// open, or deadline passed without an override.
type PolicyViolation struct {
	Reason string
}

func (e *PolicyViolation) Error() string {
	return e.Reason
}

func policyViolation(reason string) error {
	return &PolicyViolation{Reason: reason}
}
