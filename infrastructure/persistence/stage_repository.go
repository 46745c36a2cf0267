package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// StageRepository reads the event catalog through gorm on the shared connection pool.
// The catalog tables are owned by the event management service and are never migrated here.
type StageRepository struct {
	db *gorm.DB
}

// OpenGorm wraps an existing *sql.DB so gorm and the hand-written repositories share one pool.
func OpenGorm(sqlDB *sql.DB) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("err opening gorm postgres connection: %w", err)
	}
	return db, nil
}

func NewStageRepository(db *gorm.DB) repository.IStage {
	return &StageRepository{db: db}
}

func (r *StageRepository) GetStage(ctx context.Context, stageID string) (*model.EventStage, error) {
	var stages []model.EventStage
	if err := r.db.WithContext(ctx).Where("id = ?", stageID).Find(&stages).Error; err != nil {
		return nil, apperror.Persistence("stages.Get", err)
	}
	if len(stages) == 0 {
		return nil, apperror.NotFound("stages.Get", "stage "+stageID+" not found")
	}
	return &stages[0], nil
}

// ListStagesByDate matches the calendar date (YYYY-MM-DD) of the stage.
func (r *StageRepository) ListStagesByDate(ctx context.Context, date string) ([]model.EventStage, error) {
	var stages []model.EventStage
	if err := r.db.WithContext(ctx).Where("date = ?", date).Find(&stages).Error; err != nil {
		return nil, apperror.Persistence("stages.ListByDate", err)
	}
	return stages, nil
}

func (r *StageRepository) ListStageSegments(ctx context.Context, stageID string) ([]model.StageSegment, error) {
	var segments []model.StageSegment
	if err := r.db.WithContext(ctx).Where("stage_id = ?", stageID).Order("segment_order").Find(&segments).Error; err != nil {
		return nil, apperror.Persistence("stages.ListSegments", err)
	}
	return segments, nil
}

func (r *StageRepository) ListParticipants(ctx context.Context, eventID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.EventParticipant{}).Where("event_id = ?", eventID).Pluck("user_id", &ids).Error; err != nil {
		return nil, apperror.Persistence("stages.ListParticipants", err)
	}
	return ids, nil
}

func (r *StageRepository) IsParticipant(ctx context.Context, eventID, userID string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.EventParticipant{}).Where("event_id = ? AND user_id = ?", eventID, userID).Count(&n).Error; err != nil {
		return false, apperror.Persistence("stages.IsParticipant", err)
	}
	return n > 0, nil
}
