package usecase

import (
	"context"
	"math"
	"sort"
	"strconv"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
)

const mountainPointsPerEffort = 10

// IActivityMapper owns the write path for workout metrics and stage results.
type IActivityMapper interface {
	Upsert(ctx context.Context, userID string, act *model.StravaActivity) (*model.WorkoutMetric, error)
	Remove(ctx context.Context, externalID string) error
	// ScoreStageResult writes the (stage, user) result with status pending. finishSegmentID is
	// the Strava id of the finish segment, or "" when the whole activity counts.
	ScoreStageResult(ctx context.Context, stageID, userID string, act *model.StravaActivity, targetSegmentIDs []string, finishSegmentID string) (*model.StageResult, error)
	// ScoreSegments records one result per configured segment pass and returns how many were written.
	ScoreSegments(ctx context.Context, stageID, userID string, act *model.StravaActivity, segments []model.StageSegment) (int, error)
}

type activityMapper struct {
	workouts repository.IWorkoutMetric
	results  repository.IStageResult
}

func NewActivityMapper(workouts repository.IWorkoutMetric, results repository.IStageResult) IActivityMapper {
	return &activityMapper{workouts: workouts, results: results}
}

// ComputePoints awards 10 points per kilometre, rounded half away from zero.
func ComputePoints(distanceMeters *float64) int {
	if distanceMeters == nil {
		return 0
	}
	return int(math.Round(*distanceMeters / 1000 * 10))
}

// MapActivity converts a provider activity into the canonical workout record.
func MapActivity(userID string, act *model.StravaActivity) *model.WorkoutMetric {
	calories := act.Calories
	if calories == 0 {
		calories = act.Kilojoules
	}
	var distance float64
	if act.Distance != nil {
		distance = *act.Distance
	}
	return &model.WorkoutMetric{
		UserID:              userID,
		SourcePlatform:      model.PlatformStrava,
		ExternalID:          strconv.FormatInt(act.ID, 10),
		Title:               act.Name,
		ActivityType:        act.Type,
		StartTime:           act.StartDate.UTC(),
		DurationSeconds:     act.MovingTime,
		DistanceMeters:      distance,
		Calories:            calories,
		ElevationGainMeters: act.TotalElevationGain,
		Points:              ComputePoints(act.Distance),
	}
}

// MountainPoints counts every effort on a target segment, repeats included.
func MountainPoints(efforts []model.StravaSegmentEffort, targetSegmentIDs []string) int {
	targets := make(map[string]struct{}, len(targetSegmentIDs))
	for _, id := range targetSegmentIDs {
		targets[id] = struct{}{}
	}
	points := 0
	for _, e := range efforts {
		if _, ok := targets[strconv.FormatInt(e.Segment.ID, 10)]; ok {
			points += mountainPointsPerEffort
		}
	}
	return points
}

// FinishElapsed measures from activity start to the end of the first effort on the finish
// segment. ok is false when the athlete never passed it.
func FinishElapsed(act *model.StravaActivity, finishSegmentID string) (elapsed int, ok bool) {
	for _, e := range act.SegmentEfforts {
		if strconv.FormatInt(e.Segment.ID, 10) == finishSegmentID {
			return int(math.Floor(e.End().Sub(act.StartDate).Seconds())), true
		}
	}
	return 0, false
}

func (m *activityMapper) Upsert(ctx context.Context, userID string, act *model.StravaActivity) (*model.WorkoutMetric, error) {
	if act == nil || act.ID == 0 {
		return nil, apperror.Validation("mapper.Upsert", "activity without id")
	}
	metric := MapActivity(userID, act)
	if err := m.workouts.UpsertWorkoutMetric(ctx, metric); err != nil {
		return nil, err
	}
	return metric, nil
}

func (m *activityMapper) Remove(ctx context.Context, externalID string) error {
	if externalID == "" {
		return apperror.Validation("mapper.Remove", "external id is required")
	}
	return m.workouts.DeleteWorkoutMetric(ctx, model.PlatformStrava, externalID)
}

func (m *activityMapper) ScoreStageResult(ctx context.Context, stageID, userID string, act *model.StravaActivity, targetSegmentIDs []string, finishSegmentID string) (*model.StageResult, error) {
	if act == nil {
		return nil, apperror.Validation("mapper.ScoreStageResult", "activity is required")
	}
	result := &model.StageResult{
		StageID:          stageID,
		UserID:           userID,
		StravaActivityID: strconv.FormatInt(act.ID, 10),
		MountainPoints:   MountainPoints(act.SegmentEfforts, targetSegmentIDs),
		Status:           model.ResultPending,
	}
	if finishSegmentID == "" {
		elapsed := act.ElapsedTime
		result.ElapsedTimeSeconds = &elapsed
	} else if elapsed, ok := FinishElapsed(act, finishSegmentID); ok {
		result.ElapsedTimeSeconds = &elapsed
	} else {
		result.IsDNF = true
	}
	if err := m.results.UpsertStageResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (m *activityMapper) ScoreSegments(ctx context.Context, stageID, userID string, act *model.StravaActivity, segments []model.StageSegment) (int, error) {
	if act == nil || len(segments) == 0 {
		return 0, nil
	}

	passes := make(map[string][]model.StageSegment)
	var order []string
	for _, seg := range segments {
		if _, ok := passes[seg.StravaSegmentID]; !ok {
			order = append(order, seg.StravaSegmentID)
		}
		passes[seg.StravaSegmentID] = append(passes[seg.StravaSegmentID], seg)
	}

	written := 0
	for _, stravaID := range order {
		configured := passes[stravaID]
		sort.SliceStable(configured, func(i, j int) bool { return configured[i].SegmentOrder < configured[j].SegmentOrder })

		var efforts []model.StravaSegmentEffort
		for _, e := range act.SegmentEfforts {
			if strconv.FormatInt(e.Segment.ID, 10) == stravaID {
				efforts = append(efforts, e)
			}
		}
		sort.SliceStable(efforts, func(i, j int) bool { return efforts[i].StartDate.Before(efforts[j].StartDate) })

		// The i-th configured pass is matched to the i-th effort.
		for i, seg := range configured {
			if i >= len(efforts) {
				break
			}
			res := &model.SegmentResult{
				StageID:            stageID,
				SegmentID:          seg.ID,
				UserID:             userID,
				StravaEffortID:     strconv.FormatInt(efforts[i].ID, 10),
				ElapsedTimeSeconds: efforts[i].ElapsedTime,
			}
			if err := m.results.UpsertSegmentResult(ctx, res); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}
