package pubsub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/logger"

	"cloud.google.com/go/pubsub"
)

// LeaderboardMessage asks the leaderboard service to recompute an event's standings.
type LeaderboardMessage struct {
	EventID     string    `json:"event_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type LeaderboardPublisher struct {
	PubSubClient *pubsub.Client
	topicName    string

	once  sync.Once
	topic *pubsub.Topic
	err   error
}

func NewLeaderboardPublisher(pubSubClient *pubsub.Client, topicName string) repository.ILeaderboardTrigger {
	return &LeaderboardPublisher{PubSubClient: pubSubClient, topicName: topicName}
}

// TriggerRecalculation publishes one message per call. Without a client it only logs.
func (p *LeaderboardPublisher) TriggerRecalculation(ctx context.Context, eventID string) error {
	if p.PubSubClient == nil {
		logger.GetLogger().WithField("event_id", eventID).Warn("PubSub client is nil - skipping leaderboard recalculation")
		return nil
	}
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(LeaderboardMessage{EventID: eventID, RequestedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	serverID, err := topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"event_id": eventID},
	}).Get(ctx)
	if err != nil {
		return err
	}

	logger.GetLogger().WithField("server ID", serverID).WithField("event_id", eventID).Info("Leaderboard recalculation published")
	return nil
}

// ensureTopic creates the topic on first use if it doesn't exist.
func (p *LeaderboardPublisher) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.once.Do(func() {
		topic := p.PubSubClient.Topic(p.topicName)
		exists, err := topic.Exists(ctx)
		if err != nil {
			p.err = err
			return
		}
		if !exists {
			logger.GetLogger().WithField("topic", p.topicName).Info("Topic doesn't exist - creating it")
			if topic, err = p.PubSubClient.CreateTopic(ctx, p.topicName); err != nil {
				p.err = err
				return
			}
		}
		p.topic = topic
	})
	return p.topic, p.err
}
