package repository

import (
	"context"
	"time"

	"wellness-sync/domain/model"
)

type IWorkoutMetric interface {
	UpsertWorkoutMetric(ctx context.Context, m *model.WorkoutMetric) error
	DeleteWorkoutMetric(ctx context.Context, platform, externalID string) error
	// LatestStartTime returns nil when the user has no metrics for the platform.
	LatestStartTime(ctx context.Context, userID, platform string) (*time.Time, error)
}
