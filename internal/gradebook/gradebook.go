// Package gradebook implements the external gradebook surface consumed by
// the grading relay: grade items keyed by (course, round, item number) and
// per-user grade values. The store is treated as an authoritative sink;
// failures are surfaced to the caller and never retried here.
package gradebook

import (
	"context"
	"fmt"
)

// RoundItemNumber is the reserved item number that holds the round total.
// Exercises use their own positive item numbers within the same round.
const RoundItemNumber = 0

// Item describes one gradebook column.
type Item struct {
	CourseID     uint
	RoundID      uint
	ItemNumber   int
	Name         string
	MaxPoints    int
	PointsToPass int
}

// Ref identifies an existing gradebook item.
type Ref struct {
	CourseID   uint
	RoundID    uint
	ItemNumber int
}

// SyncError wraps a gradebook store failure so callers can distinguish it
// from the submission's own persistence errors.
type SyncError struct {
	Ref Ref
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("gradebook sync for round %d item %d failed: %v", e.Ref.RoundID, e.Ref.ItemNumber, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Store is the persistence port for gradebook items and grades.
type Store interface {
	UpsertItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, ref Ref) error
	SetGrades(ctx context.Context, ref Ref, grades map[uint]float64) error
	ResetItem(ctx context.Context, ref Ref) error
	GetGrade(ctx context.Context, ref Ref, userID uint) (float64, bool, error)
}
