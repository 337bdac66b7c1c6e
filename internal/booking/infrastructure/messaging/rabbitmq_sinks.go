package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"carpool/internal/booking/domain"
	"carpool/pkg/rabbitmq"
)

// RabbitMQNotificationSink pushes stored notifications onto the booking
// exchange so the live delivery consumer can fan them out over websockets.
type RabbitMQNotificationSink struct {
	rabbit *rabbitmq.Connection
}

// NewRabbitMQNotificationSink creates a new RabbitMQ notification sink
func NewRabbitMQNotificationSink(rabbit *rabbitmq.Connection) *RabbitMQNotificationSink {
	return &RabbitMQNotificationSink{
		rabbit: rabbit,
	}
}

// Notify publishes the notification with its type as the routing suffix
func (s *RabbitMQNotificationSink) Notify(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	routingKey := fmt.Sprintf("booking.notification.%s", n.Type)
	if err := s.rabbit.Publish(ctx, rabbitmq.ExchangeBooking, routingKey, body); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	return nil
}

// RabbitMQChatSeeder announces chat membership changes. The chat subsystem
// consumes booking.chat.* to grant or revoke room access.
type RabbitMQChatSeeder struct {
	rabbit *rabbitmq.Connection
}

// NewRabbitMQChatSeeder creates a new RabbitMQ chat seeder
func NewRabbitMQChatSeeder(rabbit *rabbitmq.Connection) *RabbitMQChatSeeder {
	return &RabbitMQChatSeeder{
		rabbit: rabbit,
	}
}

func (s *RabbitMQChatSeeder) Join(ctx context.Context, rideID, userID string) error {
	return s.publish(ctx, "booking.chat.join", rideID, userID)
}

func (s *RabbitMQChatSeeder) Leave(ctx context.Context, rideID, userID string) error {
	return s.publish(ctx, "booking.chat.leave", rideID, userID)
}

func (s *RabbitMQChatSeeder) publish(ctx context.Context, routingKey, rideID, userID string) error {
	body, err := json.Marshal(map[string]string{
		"ride_id": rideID,
		"user_id": userID,
	})
	if err != nil {
		return fmt.Errorf("marshal chat event: %w", err)
	}

	if err := s.rabbit.Publish(ctx, rabbitmq.ExchangeBooking, routingKey, body); err != nil {
		return fmt.Errorf("publish chat event: %w", err)
	}

	return nil
}
