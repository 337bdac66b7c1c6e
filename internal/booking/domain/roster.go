package domain

import "time"

// RosterEntry is the materialized view of one accepted passenger on a ride.
// It is written by the effects dispatcher after an acceptance commits and
// deactivated when that acceptance is later cancelled or the ride closes.
type RosterEntry struct {
	RideID      string    `json:"ride_id"`
	PassengerID string    `json:"passenger_id"`
	RequestID   string    `json:"request_id"`
	SeatsBooked int       `json:"seats_booked"`
	JoinedAt    time.Time `json:"joined_at"`
	Active      bool      `json:"active"`
}

// Notification is a durable in-app notification record, one per user and
// event. Delivery to push transports is a downstream concern.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notification types mirrored by the client
const (
	NotifyRideRequest      = "ride_request"
	NotifyRequestAccepted  = "request_accepted"
	NotifyRequestRejected  = "request_rejected"
	NotifyRequestCancelled = "request_cancelled"
	NotifyRideCancelled    = "ride_cancelled"
)
