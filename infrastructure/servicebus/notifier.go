package servicebus

import (
	"context"
	"encoding/json"

	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// Notifier queues user notifications for the notification service.
type Notifier struct {
	AzservicebusClient *azservicebus.Client
	queue              string
}

func NewNotifier(azServiceBusClient *azservicebus.Client, queue string) repository.INotifier {
	return &Notifier{AzservicebusClient: azServiceBusClient, queue: queue}
}

func (n *Notifier) Notify(ctx context.Context, notification *model.Notification) error {
	if n.AzservicebusClient == nil {
		logger.GetLogger().WithField("user_id", notification.UserID).Warn("Service Bus client is nil - dropping notification")
		return nil
	}
	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	sender, err := n.AzservicebusClient.NewSender(n.queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender *azservicebus.Sender) {
		if err := sender.Close(context.Background()); err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}(sender)

	contentType := "application/json"
	subject := notification.Type
	msg := &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]any{
			"user_id": notification.UserID,
		},
	}
	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}
