package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"
	"carpool/pkg/rabbitmq"
)

// RabbitMQEventPublisher implements service.EventPublisher. Events announce
// transitions that are already committed; a publish failure is logged by the
// caller and never rolls the transition back.
type RabbitMQEventPublisher struct {
	rabbit *rabbitmq.Connection
	logger logger.Logger
}

// NewRabbitMQEventPublisher creates a new RabbitMQ event publisher
func NewRabbitMQEventPublisher(rabbit *rabbitmq.Connection, logger logger.Logger) *RabbitMQEventPublisher {
	return &RabbitMQEventPublisher{
		rabbit: rabbit,
		logger: logger,
	}
}

// Publish publishes a domain event to the booking exchange
func (p *RabbitMQEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	message, routingKey := p.eventToMessage(event)
	if message == nil {
		return fmt.Errorf("unsupported event type: %s", event.EventType())
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.rabbit.Publish(ctx, rabbitmq.ExchangeBooking, routingKey, body); err != nil {
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}

	p.logger.WithFields(logger.LogFields{
		"event_type":  event.EventType(),
		"routing_key": routingKey,
	}).Info("event_published", "Domain event published to RabbitMQ")

	return nil
}

// eventToMessage converts a domain event to a RabbitMQ message
func (p *RabbitMQEventPublisher) eventToMessage(event domain.DomainEvent) (interface{}, string) {
	switch e := event.(type) {
	case domain.RequestSubmittedEvent:
		return map[string]interface{}{
			"request_id":      e.RequestID,
			"ride_id":         e.RideID,
			"passenger_id":    e.PassengerID,
			"driver_id":       e.DriverID,
			"seats_requested": e.SeatsRequested,
			"status":          "PENDING",
			"submitted_at":    e.SubmittedAt,
		}, "booking.request.submitted"

	case domain.RequestAcceptedEvent:
		return map[string]interface{}{
			"request_id":      e.RequestID,
			"ride_id":         e.RideID,
			"passenger_id":    e.PassengerID,
			"seats_booked":    e.SeatsBooked,
			"seats_remaining": e.SeatsRemaining,
			"status":          "ACCEPTED",
			"accepted_at":     e.AcceptedAt,
		}, "booking.request.accepted"

	case domain.RequestRejectedEvent:
		return map[string]interface{}{
			"request_id":   e.RequestID,
			"ride_id":      e.RideID,
			"passenger_id": e.PassengerID,
			"reason":       e.Reason,
			"status":       "REJECTED",
			"rejected_at":  e.RejectedAt,
		}, "booking.request.rejected"

	case domain.RequestCancelledEvent:
		return map[string]interface{}{
			"request_id":     e.RequestID,
			"ride_id":        e.RideID,
			"passenger_id":   e.PassengerID,
			"driver_id":      e.DriverID,
			"seats_released": e.SeatsReleased,
			"status":         "CANCELLED",
			"cancelled_at":   e.CancelledAt,
		}, "booking.request.cancelled"

	case domain.RideCancelledEvent:
		return map[string]interface{}{
			"ride_id":       e.RideID,
			"driver_id":     e.DriverID,
			"passenger_ids": e.PassengerIDs,
			"reason":        e.Reason,
			"status":        "CANCELLED",
			"cancelled_at":  e.CancelledAt,
		}, "booking.ride.cancelled"

	default:
		return nil, ""
	}
}
