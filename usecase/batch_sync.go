package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/dto"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/logger"

	"golang.org/x/sync/errgroup"
)

// LogBroadcaster receives live progress of a stage sync.
type LogBroadcaster interface {
	BroadcastLog(stageID, line string)
	BroadcastDone(stageID string)
}

type IBatchSync interface {
	// Run scores every participant of the stage and returns once all of them have finished.
	// It is not cancellable: the caller's cancellation is ignored once the run starts.
	Run(ctx context.Context, stageID string) (*dto.StageSyncReport, error)
}

type batchSync struct {
	stages      repository.IStage
	results     repository.IStageResult
	refresher   ITokenRefresher
	strava      repository.IStrava
	mapper      IActivityMapper
	broadcaster LogBroadcaster
	loc         *time.Location
	concurrency int
}

type BatchSyncDeps struct {
	Stages      repository.IStage
	Results     repository.IStageResult
	Refresher   ITokenRefresher
	Strava      repository.IStrava
	Mapper      IActivityMapper
	Broadcaster LogBroadcaster
}

func NewBatchSync(deps BatchSyncDeps, loc *time.Location, concurrency int) IBatchSync {
	if loc == nil {
		loc = time.UTC
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &batchSync{
		stages:      deps.Stages,
		results:     deps.Results,
		refresher:   deps.Refresher,
		strava:      deps.Strava,
		mapper:      deps.Mapper,
		broadcaster: deps.Broadcaster,
		loc:         loc,
		concurrency: concurrency,
	}
}

// runLog collects log lines from concurrent participants.
type runLog struct {
	mu          sync.Mutex
	stageID     string
	lines       []string
	broadcaster LogBroadcaster
}

func (l *runLog) add(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
	logger.GetLogger().WithField("stage_id", l.stageID).Info(line)
	if l.broadcaster != nil {
		l.broadcaster.BroadcastLog(l.stageID, line)
	}
}

func (l *runLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

type stagePlan struct {
	stage     *model.EventStage
	segments  []model.StageSegment
	targets   []string
	finishID  string
	after     int64
	before    int64
	segmented bool
}

func (b *batchSync) Run(ctx context.Context, stageID string) (*dto.StageSyncReport, error) {
	ctx = context.WithoutCancel(ctx)
	log := &runLog{stageID: stageID, broadcaster: b.broadcaster}
	if b.broadcaster != nil {
		defer b.broadcaster.BroadcastDone(stageID)
	}
	log.add("Starting process for stage_id: %s", stageID)

	stage, err := b.stages.GetStage(ctx, stageID)
	if err != nil {
		log.add("Error fetching stage: %v", err)
		return nil, err
	}
	log.add("Found stage: %s on %s", stage.Name, stage.Date.Format(model.DateLayout))

	segments, err := b.stages.ListStageSegments(ctx, stageID)
	if err != nil {
		// Segment scoring is optional, the stage still gets elapsed times.
		log.add("Error fetching segments: %v", err)
		segments = nil
	}
	start, end := stage.Window(b.loc)
	plan := &stagePlan{
		stage:     stage,
		segments:  segments,
		targets:   stage.TargetSegmentIDs(segments),
		finishID:  stage.FinishStravaSegmentID(segments),
		after:     start.Unix(),
		before:    end.Unix(),
		segmented: len(segments) > 0,
	}
	if stage.FinishMode == model.FinishModeSegment && plan.finishID == "" {
		log.add("WARNING: finish segment not found in stage segments, scoring whole activities")
	}
	log.add("Found %d configured segments, %d target segments", len(segments), len(plan.targets))

	participants, err := b.stages.ListParticipants(ctx, stage.EventID)
	if err != nil {
		log.add("Error fetching participants: %v", err)
		return nil, err
	}
	log.add("Found %d participants", len(participants))

	outcomes := make([]dto.ParticipantOutcome, len(participants))
	var segmentsWritten int
	var segMu sync.Mutex

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, userID := range participants {
		i, userID := i, userID
		g.Go(func() error {
			outcome, written := b.processParticipant(ctx, plan, userID, log)
			outcomes[i] = outcome
			segMu.Lock()
			segmentsWritten += written
			segMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if plan.segmented {
		b.rankSegments(ctx, stageID, segments, log)
	}

	processed := 0
	for _, o := range outcomes {
		if o.Status == dto.ParticipantSaved {
			processed++
		}
	}
	msg := fmt.Sprintf("Sync complete. %d participants, %d segment efforts.", processed, segmentsWritten)
	log.add("%s", msg)

	return &dto.StageSyncReport{
		Success:           true,
		StageID:           stageID,
		ProcessedCount:    processed,
		SegmentsProcessed: segmentsWritten,
		Message:           msg,
		Participants:      outcomes,
		Logs:              log.snapshot(),
	}, nil
}

// processParticipant never panics or returns an error: every failure becomes an outcome.
func (b *batchSync) processParticipant(ctx context.Context, plan *stagePlan, userID string, log *runLog) (outcome dto.ParticipantOutcome, written int) {
	outcome = dto.ParticipantOutcome{UserID: userID}
	fail := func(format string, args ...interface{}) {
		outcome.Status = dto.ParticipantFailed
		outcome.Message = fmt.Sprintf(format, args...)
		log.add("-> Error %s: %s", userID, outcome.Message)
	}
	defer func() {
		if r := recover(); r != nil {
			fail("panic: %v", r)
		}
	}()

	log.add("Processing user %s...", userID)
	cred, err := b.refresher.FreshCredential(ctx, userID, model.PlatformStrava)
	if err != nil {
		if errors.Is(err, apperror.ErrNotConnected) {
			outcome.Status = dto.ParticipantSkipped
			outcome.Message = "no strava connection"
			log.add("-> No tokens for %s. Skipping.", userID)
			return outcome, 0
		}
		fail("token refresh: %v", err)
		return outcome, 0
	}

	activities, err := b.strava.ListActivities(ctx, cred.AccessToken, repository.ListActivitiesParams{After: plan.after, Before: plan.before})
	if err != nil {
		fail("list activities: %v", err)
		return outcome, 0
	}
	if len(activities) == 0 {
		outcome.Status = dto.ParticipantSkipped
		outcome.Message = "no activity on stage date"
		log.add("-> No activities for %s.", userID)
		return outcome, 0
	}

	summary := activities[0]
	log.add("-> Found %d activities for %s. Using %s", len(activities), userID, summary.Name)
	detail, err := b.strava.GetActivity(ctx, cred.AccessToken, strconv.FormatInt(summary.ID, 10))
	if err != nil {
		fail("activity detail: %v", err)
		return outcome, 0
	}

	if plan.segmented {
		written, err = b.mapper.ScoreSegments(ctx, plan.stage.ID, userID, detail, plan.segments)
		if err != nil {
			log.add("-> Segment result error for %s: %v", userID, err)
		}
	}

	result, err := b.mapper.ScoreStageResult(ctx, plan.stage.ID, userID, detail, plan.targets, plan.finishID)
	if err != nil {
		fail("save result: %v", err)
		return outcome, written
	}

	outcome.Status = dto.ParticipantSaved
	if result.IsDNF {
		outcome.Message = "DNF: finish segment not passed"
	} else {
		outcome.Message = fmt.Sprintf("elapsed %s, %d mountain points", formatDuration(*result.ElapsedTimeSeconds), result.MountainPoints)
	}
	log.add("-> Saved %s: %s", userID, outcome.Message)
	return outcome, written
}

// rankSegments places every result of each configured segment by time and replaces each
// user's mountain points with the sum of their placement points.
func (b *batchSync) rankSegments(ctx context.Context, stageID string, segments []model.StageSegment, log *runLog) {
	log.add("Calculating segment positions...")
	for i := range segments {
		seg := &segments[i]
		results, err := b.results.ListSegmentResults(ctx, seg.ID)
		if err != nil {
			log.add("-> Error fetching segment results for %s: %v", seg.Name, err)
			continue
		}
		for pos, r := range results {
			if err := b.results.UpdateSegmentPlacement(ctx, r.ID, pos+1, seg.PointsFor(pos+1)); err != nil {
				log.add("-> Error placing %s on %s: %v", r.UserID, seg.Name, err)
			}
		}
		log.add("-> Updated %d positions for %s", len(results), seg.Name)
	}

	totals, err := b.results.SumSegmentPoints(ctx, stageID)
	if err != nil {
		log.add("-> Error fetching total segment results: %v", err)
		return
	}
	for userID, pts := range totals {
		if err := b.results.SetMountainPoints(ctx, stageID, userID, pts); err != nil {
			log.add("-> Error updating mountain points for %s: %v", userID, err)
		}
	}
	log.add("-> Updated mountain points for %d users.", len(totals))
}

func formatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, seconds%60)
}
