package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"wellness-sync/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkoutMetricRepository_UpsertSameActivityTwice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewWorkoutMetricRepository(db)
	start := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	metric := &model.WorkoutMetric{
		UserID: "u1", SourcePlatform: model.PlatformStrava, ExternalID: "9001", Title: "Morning Ride",
		ActivityType: "Ride", StartTime: start, DurationSeconds: 3600, DistanceMeters: 30000, Calories: 800, Points: 50,
	}

	// Both writes hit the same conflict key and return the same row id.
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (source_platform, external_id) DO UPDATE SET`)).
			WithArgs("u1", model.PlatformStrava, "9001", "Morning Ride", "Ride", start, 3600, 30000.0, 800.0, 0.0, 50, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	}

	require.NoError(t, repo.UpsertWorkoutMetric(context.Background(), metric))
	first := metric.ID
	require.NoError(t, repo.UpsertWorkoutMetric(context.Background(), metric))
	assert.Equal(t, first, metric.ID)
	assert.Equal(t, int64(42), metric.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkoutMetricRepository_DeleteWorkoutMetric(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewWorkoutMetricRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM workout_metrics WHERE source_platform=$1 AND external_id=$2`)).
		WithArgs(model.PlatformStrava, "9001").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteWorkoutMetric(context.Background(), model.PlatformStrava, "9001"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkoutMetricRepository_LatestStartTime(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewWorkoutMetricRepository(db)
	latest := time.Date(2024, 4, 30, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(start_time) FROM workout_metrics`)).
		WithArgs("u1", model.PlatformStrava).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(latest))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(start_time) FROM workout_metrics`)).
		WithArgs("u2", model.PlatformStrava).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	got, err := repo.LatestStartTime(context.Background(), "u1", model.PlatformStrava)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, latest.Equal(*got))

	none, err := repo.LatestStartTime(context.Background(), "u2", model.PlatformStrava)
	require.NoError(t, err)
	assert.Nil(t, none)
	require.NoError(t, mock.ExpectationsWereMet())
}
