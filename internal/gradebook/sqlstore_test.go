package gradebook

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&GradeItem{}, &GradeRow{}))
	return NewSQLStore(db)
}

func TestUpsertItemCreatesAndUpdates(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	item := Item{CourseID: 1, RoundID: 2, ItemNumber: 1, Name: "Exercise 1", MaxPoints: 100}
	require.NoError(t, store.UpsertItem(ctx, item))

	item.Name = "Exercise 1 (renamed)"
	item.MaxPoints = 120
	require.NoError(t, store.UpsertItem(ctx, item))

	ref := Ref{CourseID: 1, RoundID: 2, ItemNumber: 1}
	require.NoError(t, store.SetGrades(ctx, ref, map[uint]float64{7: 50}))

	value, found, err := store.GetGrade(ctx, ref, 7)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 50.0, value)
}

func TestSetGradesOverwritesExistingValue(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ref := Ref{CourseID: 1, RoundID: 2, ItemNumber: 1}

	require.NoError(t, store.UpsertItem(ctx, Item{CourseID: 1, RoundID: 2, ItemNumber: 1, Name: "Exercise 1", MaxPoints: 100}))
	require.NoError(t, store.SetGrades(ctx, ref, map[uint]float64{7: 40}))
	require.NoError(t, store.SetGrades(ctx, ref, map[uint]float64{7: 80, 8: 60}))

	value, found, err := store.GetGrade(ctx, ref, 7)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 80.0, value)

	value, found, err = store.GetGrade(ctx, ref, 8)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 60.0, value)
}

func TestSetGradesUnknownItem(t *testing.T) {
	store := setupStore(t)
	ref := Ref{CourseID: 1, RoundID: 99, ItemNumber: 3}

	err := store.SetGrades(context.Background(), ref, map[uint]float64{7: 10})

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	require.Equal(t, ref, syncErr.Ref)
}

func TestSetGradesEmptyMapIsNoOp(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, store.SetGrades(context.Background(), Ref{RoundID: 1, ItemNumber: 1}, nil))
}

func TestResetItemClearsGrades(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ref := Ref{CourseID: 1, RoundID: 2, ItemNumber: 1}

	require.NoError(t, store.UpsertItem(ctx, Item{CourseID: 1, RoundID: 2, ItemNumber: 1, Name: "Exercise 1"}))
	require.NoError(t, store.SetGrades(ctx, ref, map[uint]float64{7: 40}))
	require.NoError(t, store.ResetItem(ctx, ref))

	_, found, err := store.GetGrade(ctx, ref, 7)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeleteItemRemovesItemAndGrades(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ref := Ref{CourseID: 1, RoundID: 2, ItemNumber: 1}

	require.NoError(t, store.UpsertItem(ctx, Item{CourseID: 1, RoundID: 2, ItemNumber: 1, Name: "Exercise 1"}))
	require.NoError(t, store.SetGrades(ctx, ref, map[uint]float64{7: 40}))
	require.NoError(t, store.DeleteItem(ctx, ref))

	_, found, err := store.GetGrade(ctx, ref, 7)
	require.NoError(t, err)
	require.False(t, found)

	// Deleting again is harmless.
	require.NoError(t, store.DeleteItem(ctx, ref))
}

func TestGetGradeMissing(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, found, err := store.GetGrade(ctx, Ref{RoundID: 1, ItemNumber: 1}, 7)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.UpsertItem(ctx, Item{CourseID: 1, RoundID: 1, ItemNumber: 1, Name: "Exercise"}))
	_, found, err = store.GetGrade(ctx, Ref{RoundID: 1, ItemNumber: 1}, 7)
	require.NoError(t, err)
	require.False(t, found)
}
