package repository

import (
	"context"

	"wellness-sync/domain/model"
)

// IWebhookEventLog archives inbound push events with their processing outcome.
type IWebhookEventLog interface {
	Record(ctx context.Context, evt *model.WebhookEvent, outcome string) error
}

type ILeaderboardTrigger interface {
	TriggerRecalculation(ctx context.Context, eventID string) error
}

type INotifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}
