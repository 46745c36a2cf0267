package usecase

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/dto"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/configuration"
	"wellness-sync/infrastructure/logger"
)

const reconnectMessage = "Strava connection invalid. Please reconnect."

// IActivitySync pulls a user's recent activities on demand.
type IActivitySync interface {
	SyncUser(ctx context.Context, userID string) (*dto.UserSyncResult, error)
	Status(ctx context.Context, userID string) (*dto.ConnectionStatus, error)
}

type activitySync struct {
	vault       ITokenVault
	refresher   ITokenRefresher
	strava      repository.IStrava
	mapper      IActivityMapper
	workouts    repository.IWorkoutMetric
	connections repository.IDeviceConnection
	cfg         configuration.Sync
	now         func() time.Time
}

type ActivitySyncDeps struct {
	Vault       ITokenVault
	Refresher   ITokenRefresher
	Strava      repository.IStrava
	Mapper      IActivityMapper
	Workouts    repository.IWorkoutMetric
	Connections repository.IDeviceConnection
}

func NewActivitySync(deps ActivitySyncDeps, cfg configuration.Sync) IActivitySync {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 60
	}
	return &activitySync{
		vault:       deps.Vault,
		refresher:   deps.Refresher,
		strava:      deps.Strava,
		mapper:      deps.Mapper,
		workouts:    deps.Workouts,
		connections: deps.Connections,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *activitySync) SyncUser(ctx context.Context, userID string) (*dto.UserSyncResult, error) {
	cred, err := s.refresher.FreshCredential(ctx, userID, model.PlatformStrava)
	if err != nil {
		if status := apperror.StatusOf(err); errors.Is(err, apperror.ErrProvider) &&
			(status == http.StatusBadRequest || status == http.StatusUnauthorized) {
			return s.disconnect(ctx, userID, err)
		}
		return nil, err
	}

	since := s.now().AddDate(0, 0, -s.cfg.LookbackDays)
	latest, err := s.workouts.LatestStartTime(ctx, userID, model.PlatformStrava)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		since = *latest
	}

	var activities []model.StravaActivity
	pages := 0
	for page := 1; page <= s.cfg.MaxPages; page++ {
		batch, err := s.strava.ListActivities(ctx, cred.AccessToken, repository.ListActivitiesParams{
			After:   since.Unix(),
			Page:    page,
			PerPage: s.cfg.PageSize,
		})
		if err != nil {
			return nil, err
		}
		pages++
		activities = append(activities, batch...)
		if len(batch) < s.cfg.PageSize {
			break
		}
	}

	result := &dto.UserSyncResult{Success: true, Pages: pages}
	for i := range activities {
		act := &activities[i]
		if act.Calories == 0 && act.Kilojoules == 0 && result.DetailFetches < s.cfg.MaxDetailFetches {
			detail, err := s.strava.GetActivity(ctx, cred.AccessToken, strconv.FormatInt(act.ID, 10))
			if err != nil {
				logger.GetLogger().WithField("activity_id", act.ID).WithField("error", err).Warn("Failed to fetch activity details")
			} else {
				act.Calories, act.Kilojoules = detail.Calories, detail.Kilojoules
				result.DetailFetches++
			}
		}
		if _, err := s.mapper.Upsert(ctx, userID, act); err != nil {
			return nil, err
		}
		result.Synced++
	}

	logger.GetLogger().
		WithField("user_id", userID).
		WithField("synced", result.Synced).
		WithField("pages", pages).
		Info("Manual sync finished")
	return result, nil
}

// disconnect severs a connection whose refresh token the provider no longer accepts.
func (s *activitySync) disconnect(ctx context.Context, userID string, cause error) (*dto.UserSyncResult, error) {
	logger.GetLogger().WithField("user_id", userID).WithField("error", cause).Warn("Token revoked or invalid, deactivating connection")
	if err := s.connections.Deactivate(ctx, userID, model.PlatformStrava); err != nil {
		return nil, err
	}
	if err := s.vault.Revoke(ctx, userID, model.PlatformStrava); err != nil {
		return nil, err
	}
	return &dto.UserSyncResult{Success: false, Error: reconnectMessage}, nil
}

func (s *activitySync) Status(ctx context.Context, userID string) (*dto.ConnectionStatus, error) {
	status := &dto.ConnectionStatus{}
	conn, err := s.connections.GetConnection(ctx, userID, model.PlatformStrava)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	if conn != nil {
		status.Active = conn.IsActive
		status.AthleteID = conn.ProviderUserID
	}
	cred, err := s.vault.Get(ctx, userID, model.PlatformStrava)
	if err != nil && !errors.Is(err, apperror.ErrNotConnected) {
		return nil, err
	}
	if cred != nil {
		exp := cred.ExpiresAt
		status.ExpiresAt = &exp
		status.Connected = status.Active
	}
	return status, nil
}
