package persistence

import (
	"context"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

const webhookEventsCollection = "strava_webhook_events"

type webhookEventDocument struct {
	model.WebhookEvent `bson:",inline"`
	Outcome            string    `bson:"outcome"`
	Payload            string    `bson:"payload,omitempty"`
	ReceivedAt         time.Time `bson:"received_at"`
}

// WebhookEventLog archives push events in MongoDB. A nil client turns it into a no-op so the
// service keeps running without Mongo.
type WebhookEventLog struct {
	client   *mongo.Client
	database string
}

func NewWebhookEventLog(client *mongo.Client, database string) repository.IWebhookEventLog {
	return &WebhookEventLog{client: client, database: database}
}

func (l *WebhookEventLog) Record(ctx context.Context, evt *model.WebhookEvent, outcome string) error {
	if l.client == nil || evt == nil {
		return nil
	}
	doc := webhookEventDocument{
		WebhookEvent: *evt,
		Outcome:      outcome,
		Payload:      string(evt.Raw),
		ReceivedAt:   time.Now().UTC(),
	}
	if _, err := l.client.Database(l.database).Collection(webhookEventsCollection).InsertOne(ctx, doc); err != nil {
		return apperror.Persistence("webhooklog.Record", err)
	}
	return nil
}
