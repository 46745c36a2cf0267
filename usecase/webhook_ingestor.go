package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/logger"
)

const (
	OutcomeIgnored      = "ignored"
	OutcomeUnresolved   = "unresolved"
	OutcomeUpserted     = "upserted"
	OutcomeDeleted      = "deleted"
	OutcomeDeauthorized = "deauthorized"
	OutcomeFailed       = "failed"
)

const subscribeMode = "subscribe"

type IWebhookIngestor interface {
	// VerifyChallenge reports whether a subscription handshake carries the configured token.
	VerifyChallenge(mode, verifyToken string) bool
	// HandleEvent processes one push event. The outcome is always set, err explains a failure.
	HandleEvent(ctx context.Context, evt *model.WebhookEvent) (outcome string, err error)
}

type webhookIngestor struct {
	verifyToken string
	loc         *time.Location
	connections repository.IDeviceConnection
	vault       ITokenVault
	refresher   ITokenRefresher
	strava      repository.IStrava
	mapper      IActivityMapper
	stages      repository.IStage
	leaderboard repository.ILeaderboardTrigger
	notifier    repository.INotifier
	eventLog    repository.IWebhookEventLog
}

// WebhookDeps groups the collaborators of the ingestor.
type WebhookDeps struct {
	Connections repository.IDeviceConnection
	Vault       ITokenVault
	Refresher   ITokenRefresher
	Strava      repository.IStrava
	Mapper      IActivityMapper
	Stages      repository.IStage
	Leaderboard repository.ILeaderboardTrigger
	Notifier    repository.INotifier
	EventLog    repository.IWebhookEventLog
}

func NewWebhookIngestor(verifyToken string, loc *time.Location, deps WebhookDeps) IWebhookIngestor {
	if loc == nil {
		loc = time.UTC
	}
	return &webhookIngestor{
		verifyToken: verifyToken,
		loc:         loc,
		connections: deps.Connections,
		vault:       deps.Vault,
		refresher:   deps.Refresher,
		strava:      deps.Strava,
		mapper:      deps.Mapper,
		stages:      deps.Stages,
		leaderboard: deps.Leaderboard,
		notifier:    deps.Notifier,
		eventLog:    deps.EventLog,
	}
}

func (w *webhookIngestor) VerifyChallenge(mode, verifyToken string) bool {
	if mode != subscribeMode || w.verifyToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(verifyToken), []byte(w.verifyToken)) == 1
}

func (w *webhookIngestor) HandleEvent(ctx context.Context, evt *model.WebhookEvent) (string, error) {
	outcome, err := w.dispatch(ctx, evt)
	entry := logger.GetLogger().
		WithField("aspect_type", evt.AspectType).
		WithField("object_type", evt.ObjectType).
		WithField("object_id", evt.ObjectID).
		WithField("owner_id", evt.OwnerID).
		WithField("outcome", outcome)
	if err != nil {
		entry.WithField("error", err).Warn("Webhook event failed")
	} else {
		entry.Info("Webhook event processed")
	}

	if w.eventLog != nil {
		if logErr := w.eventLog.Record(ctx, evt, outcome); logErr != nil {
			logger.GetLogger().WithField("error", logErr).Warn("Unable to archive webhook event")
		}
	}
	return outcome, err
}

func (w *webhookIngestor) dispatch(ctx context.Context, evt *model.WebhookEvent) (string, error) {
	switch {
	case evt.ObjectType == model.ObjectActivity && (evt.AspectType == model.AspectCreate || evt.AspectType == model.AspectUpdate):
		return w.ingestActivity(ctx, evt)
	case evt.ObjectType == model.ObjectActivity && evt.AspectType == model.AspectDelete:
		if err := w.mapper.Remove(ctx, evt.ObjectID); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeDeleted, nil
	case evt.Deauthorization():
		return w.deauthorize(ctx, evt)
	default:
		return OutcomeIgnored, nil
	}
}

// resolve maps the provider athlete to an active local connection. A nil connection with a
// nil error means the athlete is not ours.
func (w *webhookIngestor) resolve(ctx context.Context, ownerID string) (*model.DeviceConnection, error) {
	conn, err := w.connections.ResolveUserByProviderID(ctx, model.PlatformStrava, ownerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return conn, nil
}

func (w *webhookIngestor) ingestActivity(ctx context.Context, evt *model.WebhookEvent) (string, error) {
	conn, err := w.resolve(ctx, evt.OwnerID)
	if err != nil {
		return OutcomeFailed, err
	}
	if conn == nil {
		return OutcomeUnresolved, nil
	}

	cred, err := w.refresher.FreshCredential(ctx, conn.UserID, model.PlatformStrava)
	if err != nil {
		return OutcomeFailed, err
	}
	act, err := w.strava.GetActivity(ctx, cred.AccessToken, evt.ObjectID)
	if err != nil {
		return OutcomeFailed, err
	}
	if _, err := w.mapper.Upsert(ctx, conn.UserID, act); err != nil {
		return OutcomeFailed, err
	}

	w.scoreStages(ctx, conn.UserID, act)
	return OutcomeUpserted, nil
}

// scoreStages scores every stage held on the activity's local date that the user takes part in.
// Failures are logged and never change the event outcome.
func (w *webhookIngestor) scoreStages(ctx context.Context, userID string, act *model.StravaActivity) {
	if w.stages == nil {
		return
	}
	date := act.StartDate.In(w.loc).Format(model.DateLayout)
	stages, err := w.stages.ListStagesByDate(ctx, date)
	if err != nil {
		logger.GetLogger().WithField("error", err).WithField("date", date).Warn("Unable to list stages for activity date")
		return
	}

	for i := range stages {
		stage := &stages[i]
		entry := logger.GetLogger().WithField("stage_id", stage.ID).WithField("user_id", userID)

		ok, err := w.stages.IsParticipant(ctx, stage.EventID, userID)
		if err != nil {
			entry.WithField("error", err).Warn("Participant lookup failed")
			continue
		}
		if !ok {
			continue
		}
		segments, err := w.stages.ListStageSegments(ctx, stage.ID)
		if err != nil {
			entry.WithField("error", err).Warn("Stage segment lookup failed")
			continue
		}
		result, err := w.mapper.ScoreStageResult(ctx, stage.ID, userID, act, stage.TargetSegmentIDs(segments), stage.FinishStravaSegmentID(segments))
		if err != nil {
			entry.WithField("error", err).Warn("Stage scoring failed")
			continue
		}
		entry.Info("Stage result updated from webhook")

		if w.leaderboard != nil {
			if err := w.leaderboard.TriggerRecalculation(ctx, stage.EventID); err != nil {
				entry.WithField("error", err).Warn("Leaderboard trigger failed")
			}
		}
		if w.notifier != nil {
			if err := w.notifier.Notify(ctx, stageNotification(stage, result)); err != nil {
				entry.WithField("error", err).Warn("Notification failed")
			}
		}
	}
}

func stageNotification(stage *model.EventStage, result *model.StageResult) *model.Notification {
	msg := fmt.Sprintf("Your activity was recorded for %s.", stage.Name)
	if result.IsDNF {
		msg = fmt.Sprintf("Your activity for %s did not reach the finish segment.", stage.Name)
	}
	return &model.Notification{
		UserID:  result.UserID,
		Title:   "Stage result updated",
		Message: msg,
		Type:    model.NotificationStageResult,
		Metadata: map[string]string{
			"stage_id": stage.ID,
			"event_id": stage.EventID,
		},
	}
}

func (w *webhookIngestor) deauthorize(ctx context.Context, evt *model.WebhookEvent) (string, error) {
	conn, err := w.resolve(ctx, evt.OwnerID)
	if err != nil {
		return OutcomeFailed, err
	}
	if conn == nil {
		return OutcomeUnresolved, nil
	}
	if err := w.vault.Revoke(ctx, conn.UserID, model.PlatformStrava); err != nil {
		return OutcomeFailed, err
	}
	if err := w.connections.Deactivate(ctx, conn.UserID, model.PlatformStrava); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeDeauthorized, nil
}
