package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// RequestSubmittedEvent is raised when a passenger submits a join request
type RequestSubmittedEvent struct {
	RequestID      string
	RideID         string
	PassengerID    string
	DriverID       string
	SeatsRequested int
	SubmittedAt    time.Time
}

func (e RequestSubmittedEvent) EventType() string {
	return "booking.request.submitted"
}

func (e RequestSubmittedEvent) OccurredAt() time.Time {
	return e.SubmittedAt
}

// RequestAcceptedEvent is raised after seats were reserved and the request
// committed as accepted
type RequestAcceptedEvent struct {
	RequestID      string
	RideID         string
	PassengerID    string
	SeatsBooked    int
	SeatsRemaining int
	AcceptedAt     time.Time
}

func (e RequestAcceptedEvent) EventType() string {
	return "booking.request.accepted"
}

func (e RequestAcceptedEvent) OccurredAt() time.Time {
	return e.AcceptedAt
}

// RequestRejectedEvent is raised when the driver declines a pending request
type RequestRejectedEvent struct {
	RequestID   string
	RideID      string
	PassengerID string
	Reason      string
	RejectedAt  time.Time
}

func (e RequestRejectedEvent) EventType() string {
	return "booking.request.rejected"
}

func (e RequestRejectedEvent) OccurredAt() time.Time {
	return e.RejectedAt
}

// RequestCancelledEvent is raised when a passenger withdraws a request.
// SeatsReleased is zero for a pending request and the booked seat count for
// an accepted one.
type RequestCancelledEvent struct {
	RequestID     string
	RideID        string
	PassengerID   string
	DriverID      string
	SeatsReleased int
	CancelledAt   time.Time
}

func (e RequestCancelledEvent) EventType() string {
	return "booking.request.cancelled"
}

func (e RequestCancelledEvent) OccurredAt() time.Time {
	return e.CancelledAt
}

// RideCancelledEvent is raised when the driver cancels the whole ride
type RideCancelledEvent struct {
	RideID       string
	DriverID     string
	PassengerIDs []string
	Reason       string
	CancelledAt  time.Time
}

func (e RideCancelledEvent) EventType() string {
	return "booking.ride.cancelled"
}

func (e RideCancelledEvent) OccurredAt() time.Time {
	return e.CancelledAt
}
