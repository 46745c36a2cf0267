package persistence

import (
	"context"
	"database/sql"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
)

type StageResultRepository struct{ db *sql.DB }

func NewStageResultRepository(db *sql.DB) repository.IStageResult {
	return &StageResultRepository{db: db}
}

// UpsertStageResult keeps one row per (stage_id, user_id). Re-scoring always resets the
// status to whatever the caller passes, which is pending for automated runs.
func (r *StageResultRepository) UpsertStageResult(ctx context.Context, s *model.StageResult) error {
	s.UpdatedAt = time.Now().UTC()
	var elapsed sql.NullInt64
	if s.ElapsedTimeSeconds != nil {
		elapsed = sql.NullInt64{Int64: int64(*s.ElapsedTimeSeconds), Valid: true}
	}
	q := `INSERT INTO stage_results (stage_id, user_id, strava_activity_id, elapsed_time_seconds, mountain_points, is_dnf, status, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		  ON CONFLICT (stage_id, user_id) DO UPDATE SET
			strava_activity_id=EXCLUDED.strava_activity_id,
			elapsed_time_seconds=EXCLUDED.elapsed_time_seconds,
			mountain_points=EXCLUDED.mountain_points,
			is_dnf=EXCLUDED.is_dnf,
			status=EXCLUDED.status,
			updated_at=EXCLUDED.updated_at
		  RETURNING id`
	err := r.db.QueryRowContext(ctx, q, s.StageID, s.UserID, s.StravaActivityID, elapsed, s.MountainPoints, s.IsDNF, string(s.Status), s.UpdatedAt).Scan(&s.ID)
	if err != nil {
		return apperror.Persistence("stageresults.Upsert", err)
	}
	return nil
}

// UpsertSegmentResult records a pass. Placement is cleared until the segment is re-ranked.
func (r *StageResultRepository) UpsertSegmentResult(ctx context.Context, s *model.SegmentResult) error {
	s.UpdatedAt = time.Now().UTC()
	q := `INSERT INTO segment_results (stage_id, segment_id, user_id, strava_effort_id, elapsed_time_seconds, position, points_earned, updated_at)
		  VALUES ($1,$2,$3,$4,$5,NULL,0,$6)
		  ON CONFLICT (segment_id, user_id) DO UPDATE SET
			stage_id=EXCLUDED.stage_id,
			strava_effort_id=EXCLUDED.strava_effort_id,
			elapsed_time_seconds=EXCLUDED.elapsed_time_seconds,
			position=NULL,
			points_earned=0,
			updated_at=EXCLUDED.updated_at
		  RETURNING id`
	err := r.db.QueryRowContext(ctx, q, s.StageID, s.SegmentID, s.UserID, s.StravaEffortID, s.ElapsedTimeSeconds, s.UpdatedAt).Scan(&s.ID)
	if err != nil {
		return apperror.Persistence("segmentresults.Upsert", err)
	}
	s.Position, s.PointsEarned = nil, 0
	return nil
}

func (r *StageResultRepository) ListSegmentResults(ctx context.Context, segmentID string) ([]model.SegmentResult, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, stage_id, segment_id, user_id, strava_effort_id, elapsed_time_seconds, position, points_earned, updated_at
		FROM segment_results WHERE segment_id=$1 ORDER BY elapsed_time_seconds ASC, id ASC`, segmentID)
	if err != nil {
		return nil, apperror.Persistence("segmentresults.List", err)
	}
	defer rows.Close()

	var out []model.SegmentResult
	for rows.Next() {
		var s model.SegmentResult
		var pos sql.NullInt64
		if err := rows.Scan(&s.ID, &s.StageID, &s.SegmentID, &s.UserID, &s.StravaEffortID, &s.ElapsedTimeSeconds, &pos, &s.PointsEarned, &s.UpdatedAt); err != nil {
			return nil, apperror.Persistence("segmentresults.List", err)
		}
		if pos.Valid {
			p := int(pos.Int64)
			s.Position = &p
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("segmentresults.List", err)
	}
	return out, nil
}

func (r *StageResultRepository) UpdateSegmentPlacement(ctx context.Context, id int64, position, points int) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE segment_results SET position=$2, points_earned=$3, updated_at=$4 WHERE id=$1`,
		id, position, points, time.Now().UTC()); err != nil {
		return apperror.Persistence("segmentresults.Place", err)
	}
	return nil
}

// SumSegmentPoints totals placement points per user for a stage.
func (r *StageResultRepository) SumSegmentPoints(ctx context.Context, stageID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, COALESCE(SUM(points_earned), 0) FROM segment_results WHERE stage_id=$1 GROUP BY user_id`, stageID)
	if err != nil {
		return nil, apperror.Persistence("segmentresults.Sum", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var userID string
		var pts int
		if err := rows.Scan(&userID, &pts); err != nil {
			return nil, apperror.Persistence("segmentresults.Sum", err)
		}
		totals[userID] = pts
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("segmentresults.Sum", err)
	}
	return totals, nil
}

func (r *StageResultRepository) SetMountainPoints(ctx context.Context, stageID, userID string, points int) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE stage_results SET mountain_points=$3, updated_at=$4 WHERE stage_id=$1 AND user_id=$2`,
		stageID, userID, points, time.Now().UTC()); err != nil {
		return apperror.Persistence("stageresults.SetMountainPoints", err)
	}
	return nil
}
