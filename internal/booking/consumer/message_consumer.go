package consumer

import (
	"encoding/json"
	"time"

	"carpool/pkg/logger"
	"carpool/pkg/rabbitmq"
	"carpool/pkg/websocket"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BookingConsumer bridges the broker and live websocket clients: committed
// booking events and dispatched notifications come in through the booking
// exchange and are fanned out to whoever is connected.
type BookingConsumer struct {
	rabbit *rabbitmq.Connection
	ws     *websocket.Manager
	log    logger.Logger
}

func New(rabbit *rabbitmq.Connection, ws *websocket.Manager, log logger.Logger) *BookingConsumer {
	return &BookingConsumer{
		rabbit: rabbit,
		ws:     ws,
		log:    log,
	}
}

// NotificationMessage mirrors the dispatcher's published notification
type NotificationMessage struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// BookingEventMessage is the envelope of a committed transition event
type BookingEventMessage struct {
	RequestID    string   `json:"request_id,omitempty"`
	RideID       string   `json:"ride_id"`
	PassengerID  string   `json:"passenger_id,omitempty"`
	PassengerIDs []string `json:"passenger_ids,omitempty"`
	DriverID     string   `json:"driver_id,omitempty"`
	Status       string   `json:"status"`
}

// StartConsuming starts all message consumers
func (c *BookingConsumer) StartConsuming() error {
	if err := c.rabbit.Consume(rabbitmq.QueueBookingNotifications, func(msg amqp.Delivery) {
		c.handleNotification(msg.Body)
		msg.Ack(false)
	}); err != nil {
		return err
	}

	if err := c.rabbit.Consume(rabbitmq.QueueBookingEvents, func(msg amqp.Delivery) {
		c.handleBookingEvent(msg.Body)
		msg.Ack(false)
	}); err != nil {
		return err
	}

	c.log.Info("consumers_started", "Booking consumers started")
	return nil
}

func (c *BookingConsumer) handleNotification(body []byte) {
	var notification NotificationMessage
	if err := json.Unmarshal(body, &notification); err != nil {
		c.log.Error("unmarshal_notification_failed", err)
		return
	}

	payload := map[string]any{
		"type":    "notification",
		"payload": notification,
	}
	if err := c.ws.SendToUser(notification.UserID, payload); err != nil {
		c.log.WithFields(logger.LogFields{
			"user_id": notification.UserID,
		}).Error("notification_push_failed", err)
		return
	}

	c.log.WithFields(logger.LogFields{
		"user_id": notification.UserID,
		"kind":    notification.Type,
	}).Debug("notification_pushed", "Notification delivered over websocket")
}

// handleBookingEvent pushes a lightweight state update so open ride views
// refresh without polling. The durable notification already carries the
// human-readable part.
func (c *BookingConsumer) handleBookingEvent(body []byte) {
	var event BookingEventMessage
	if err := json.Unmarshal(body, &event); err != nil {
		c.log.Error("unmarshal_booking_event_failed", err)
		return
	}

	payload := map[string]any{
		"type":    "booking_update",
		"payload": event,
	}

	recipients := make([]string, 0, len(event.PassengerIDs)+2)
	if event.PassengerID != "" {
		recipients = append(recipients, event.PassengerID)
	}
	if event.DriverID != "" {
		recipients = append(recipients, event.DriverID)
	}
	recipients = append(recipients, event.PassengerIDs...)

	for _, userID := range recipients {
		if err := c.ws.SendToUser(userID, payload); err != nil {
			c.log.WithFields(logger.LogFields{
				"user_id": userID,
				"ride_id": event.RideID,
			}).Error("booking_update_push_failed", err)
		}
	}
}
