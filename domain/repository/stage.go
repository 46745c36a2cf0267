package repository

import (
	"context"

	"wellness-sync/domain/model"
)

// IStage reads the event catalog owned by the event management side of the platform.
type IStage interface {
	GetStage(ctx context.Context, stageID string) (*model.EventStage, error)
	ListStagesByDate(ctx context.Context, date string) ([]model.EventStage, error)
	ListStageSegments(ctx context.Context, stageID string) ([]model.StageSegment, error)
	ListParticipants(ctx context.Context, eventID string) ([]string, error)
	IsParticipant(ctx context.Context, eventID, userID string) (bool, error)
}

type IStageResult interface {
	UpsertStageResult(ctx context.Context, r *model.StageResult) error
	UpsertSegmentResult(ctx context.Context, r *model.SegmentResult) error
	// ListSegmentResults is ordered by elapsed time, fastest first.
	ListSegmentResults(ctx context.Context, segmentID string) ([]model.SegmentResult, error)
	UpdateSegmentPlacement(ctx context.Context, id int64, position, points int) error
	SumSegmentPoints(ctx context.Context, stageID string) (map[string]int, error)
	SetMountainPoints(ctx context.Context, stageID, userID string, points int) error
}
