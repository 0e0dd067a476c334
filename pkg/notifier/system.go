package notifier

import (
	"context"

	"github.com/transfa/collections-service/pkg/rabbitmq"
)

const (
	NotificationsExchange = "collections.notifications"
	chargeDueRoutingKey   = "charge.due"
)

// SystemSender publishes the notification for the in-app notification service.
type SystemSender struct {
	publisher rabbitmq.Publisher
}

// NewSystemSender creates a SystemSender.
func NewSystemSender(publisher rabbitmq.Publisher) *SystemSender {
	return &SystemSender{publisher: publisher}
}

func (s *SystemSender) Send(ctx context.Context, msg Message) error {
	return s.publisher.Publish(ctx, NotificationsExchange, chargeDueRoutingKey, msg)
}
