package service

import (
	"math"

	"github.com/astra-lms/astra-api/internal/models"
)

// ClampPoints forces service-reported points into [0, maxPoints]. The second
// return value reports whether the input was out of range, which callers log
// as a misbehaving-service event.
func ClampPoints(points, maxPoints int) (int, bool) {
	if points < 0 {
		return 0, true
	}
	if points > maxPoints {
		return maxPoints, true
	}
	return points, false
}

// ApplyLatePenalty scales raw points by (1 - penalty), rounding down.
func ApplyLatePenalty(points int, penalty float64) int {
	if penalty <= 0 {
		return points
	}
	if penalty >= 1 {
		return 0
	}
	return int(math.Floor(float64(points) * (1 - penalty)))
}

// BestSubmission selects the submission that represents the student's grade
// for an exercise: the highest computed grade wins, ties go to the earliest
// submission time (then the lowest id, so the choice is deterministic no
// matter how the input is ordered). Errored submissions are ignored;
// rejected submissions carry grade zero and stay comparable.
func BestSubmission(submissions []models.Submission) *models.Submission {
	var best *models.Submission
	for i := range submissions {
		s := &submissions[i]
		if s.Status == models.SubmissionStatusError {
			continue
		}
		if best == nil || betterThan(s, best) {
			best = s
		}
	}
	return best
}

func betterThan(a, b *models.Submission) bool {
	if a.Grade != b.Grade {
		return a.Grade > b.Grade
	}
	if !a.SubmissionTime.Equal(b.SubmissionTime) {
		return a.SubmissionTime.Before(b.SubmissionTime)
	}
	return a.ID < b.ID
}
