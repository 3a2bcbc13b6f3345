package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/astra-lms/astra-api/internal/models"
)

func TestClampPoints(t *testing.T) {
	cases := []struct {
		name       string
		points     int
		max        int
		want       int
		outOfRange bool
	}{
		{name: "within range", points: 60, max: 100, want: 60},
		{name: "exact max", points: 100, max: 100, want: 100},
		{name: "zero", points: 0, max: 100, want: 0},
		{name: "over max", points: 150, max: 100, want: 100, outOfRange: true},
		{name: "negative", points: -5, max: 100, want: 0, outOfRange: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, outOfRange := ClampPoints(tc.points, tc.max)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.outOfRange, outOfRange)
		})
	}
}

func TestApplyLatePenalty(t *testing.T) {
	require.Equal(t, 40, ApplyLatePenalty(80, 0.5))
	require.Equal(t, 80, ApplyLatePenalty(80, 0))
	require.Equal(t, 0, ApplyLatePenalty(80, 1))
	require.Equal(t, 0, ApplyLatePenalty(80, 1.5))
	// 33 * 0.9 = 29.7 rounds down.
	require.Equal(t, 29, ApplyLatePenalty(33, 0.1))
}

func TestBestSubmissionPrefersHighestGrade(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	submissions := []models.Submission{
		{ID: 1, Grade: 40, Status: models.SubmissionStatusReady, SubmissionTime: base},
		{ID: 2, Grade: 90, Status: models.SubmissionStatusReady, SubmissionTime: base.Add(time.Hour)},
		{ID: 3, Grade: 70, Status: models.SubmissionStatusReady, SubmissionTime: base.Add(2 * time.Hour)},
	}

	best := BestSubmission(submissions)
	require.NotNil(t, best)
	require.Equal(t, uint(2), best.ID)
}

func TestBestSubmissionTieBreaksOnEarliestTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	submissions := []models.Submission{
		{ID: 5, Grade: 75, Status: models.SubmissionStatusReady, SubmissionTime: base.Add(time.Hour)},
		{ID: 6, Grade: 75, Status: models.SubmissionStatusReady, SubmissionTime: base},
	}

	best := BestSubmission(submissions)
	require.NotNil(t, best)
	require.Equal(t, uint(6), best.ID)
}

func TestBestSubmissionSkipsErrored(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	submissions := []models.Submission{
		{ID: 1, Grade: 100, Status: models.SubmissionStatusError, SubmissionTime: base},
		{ID: 2, Grade: 10, Status: models.SubmissionStatusReady, SubmissionTime: base.Add(time.Minute)},
	}

	best := BestSubmission(submissions)
	require.NotNil(t, best)
	require.Equal(t, uint(2), best.ID)

	require.Nil(t, BestSubmission([]models.Submission{
		{ID: 3, Status: models.SubmissionStatusError},
	}))
	require.Nil(t, BestSubmission(nil))
}

func TestBestSubmissionRejectedStaysComparable(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	submissions := []models.Submission{
		{ID: 1, Grade: 0, Status: models.SubmissionStatusRejected, SubmissionTime: base},
	}

	best := BestSubmission(submissions)
	require.NotNil(t, best)
	require.Equal(t, uint(1), best.ID)
	require.Equal(t, 0, best.Grade)
}

func TestBestSubmissionOrderIndependent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	submissions := []models.Submission{
		{ID: 1, Grade: 50, Status: models.SubmissionStatusReady, SubmissionTime: base},
		{ID: 2, Grade: 80, Status: models.SubmissionStatusReady, SubmissionTime: base.Add(time.Hour)},
		{ID: 3, Grade: 80, Status: models.SubmissionStatusReady, SubmissionTime: base.Add(30 * time.Minute)},
		{ID: 4, Grade: 80, Status: models.SubmissionStatusReady, SubmissionTime: base.Add(30 * time.Minute)},
		{ID: 5, Grade: 0, Status: models.SubmissionStatusRejected, SubmissionTime: base.Add(2 * time.Hour)},
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.Submission, len(submissions))
		copy(shuffled, submissions)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		best := BestSubmission(shuffled)
		require.NotNil(t, best)
		require.Equal(t, uint(3), best.ID)
	}
}
