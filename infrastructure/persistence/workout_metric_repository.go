package persistence

import (
	"context"
	"database/sql"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
)

type WorkoutMetricRepository struct{ db *sql.DB }

func NewWorkoutMetricRepository(db *sql.DB) repository.IWorkoutMetric {
	return &WorkoutMetricRepository{db: db}
}

// UpsertWorkoutMetric inserts or replaces the row keyed by (source_platform, external_id).
func (r *WorkoutMetricRepository) UpsertWorkoutMetric(ctx context.Context, m *model.WorkoutMetric) error {
	m.UpdatedAt = time.Now().UTC()
	q := `INSERT INTO workout_metrics (user_id, source_platform, external_id, title, activity_type, start_time,
			duration_seconds, distance_meters, calories, elevation_gain_meters, points, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		  ON CONFLICT (source_platform, external_id) DO UPDATE SET
			user_id=EXCLUDED.user_id,
			title=EXCLUDED.title,
			activity_type=EXCLUDED.activity_type,
			start_time=EXCLUDED.start_time,
			duration_seconds=EXCLUDED.duration_seconds,
			distance_meters=EXCLUDED.distance_meters,
			calories=EXCLUDED.calories,
			elevation_gain_meters=EXCLUDED.elevation_gain_meters,
			points=EXCLUDED.points,
			updated_at=EXCLUDED.updated_at
		  RETURNING id`
	err := r.db.QueryRowContext(ctx, q, m.UserID, m.SourcePlatform, m.ExternalID, m.Title, m.ActivityType, m.StartTime,
		m.DurationSeconds, m.DistanceMeters, m.Calories, m.ElevationGainMeters, m.Points, m.UpdatedAt).Scan(&m.ID)
	if err != nil {
		return apperror.Persistence("workouts.Upsert", err)
	}
	return nil
}

func (r *WorkoutMetricRepository) DeleteWorkoutMetric(ctx context.Context, platform, externalID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM workout_metrics WHERE source_platform=$1 AND external_id=$2`, platform, externalID); err != nil {
		return apperror.Persistence("workouts.Delete", err)
	}
	return nil
}

func (r *WorkoutMetricRepository) LatestStartTime(ctx context.Context, userID, platform string) (*time.Time, error) {
	var latest sql.NullTime
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(start_time) FROM workout_metrics WHERE user_id=$1 AND source_platform=$2`,
		userID, platform).Scan(&latest); err != nil {
		return nil, apperror.Persistence("workouts.LatestStartTime", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}
