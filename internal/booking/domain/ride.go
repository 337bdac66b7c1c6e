package domain

import (
	"fmt"
	"time"
)

// RideStatus represents the lifecycle state of a ride
type RideStatus string

const (
	RideActive    RideStatus = "ACTIVE"
	RideCompleted RideStatus = "COMPLETED"
	RideCancelled RideStatus = "CANCELLED"
)

// String returns string representation of status
func (s RideStatus) String() string {
	return string(s)
}

// IsValid checks if status is valid
func (s RideStatus) IsValid() bool {
	switch s {
	case RideActive, RideCompleted, RideCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status freezes further capacity mutation
func (s RideStatus) IsTerminal() bool {
	return s == RideCompleted || s == RideCancelled
}

// Ride is the core domain entity. It is the single source of truth for a
// ride's seat capacity: availableSeats is mutated only through Reserve and
// Release, and only while the coordinator holds the ride's section.
type Ride struct {
	id             string
	creatorID      string
	fromLocation   string
	toLocation     string
	departureAt    time.Time
	totalSeats     int
	availableSeats int
	pricePerSeat   float64
	status         RideStatus
	instantBooking bool
	chatEnabled    bool
	cancelReason   string
	createdAt      time.Time
	closedAt       *time.Time
}

// NewRide creates a new ride with validation
func NewRide(
	creatorID string,
	from, to string,
	departureAt time.Time,
	totalSeats int,
	pricePerSeat float64,
	instantBooking bool,
	chatEnabled bool,
) (*Ride, error) {
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creator id is required", ErrValidation)
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: origin and destination are required", ErrValidation)
	}
	if totalSeats < 1 {
		return nil, fmt.Errorf("%w: total seats must be at least 1", ErrValidation)
	}
	if pricePerSeat < 0 {
		return nil, fmt.Errorf("%w: price per seat must not be negative", ErrValidation)
	}

	return &Ride{
		creatorID:      creatorID,
		fromLocation:   from,
		toLocation:     to,
		departureAt:    departureAt,
		totalSeats:     totalSeats,
		availableSeats: totalSeats,
		pricePerSeat:   pricePerSeat,
		status:         RideActive,
		instantBooking: instantBooking,
		chatEnabled:    chatEnabled,
		createdAt:      time.Now(),
	}, nil
}

// ReconstructRide reconstructs a ride from persistence (used by repositories)
func ReconstructRide(
	id string,
	creatorID string,
	from, to string,
	departureAt time.Time,
	totalSeats int,
	availableSeats int,
	pricePerSeat float64,
	status RideStatus,
	instantBooking bool,
	chatEnabled bool,
	cancelReason string,
	createdAt time.Time,
	closedAt *time.Time,
) *Ride {
	return &Ride{
		id:             id,
		creatorID:      creatorID,
		fromLocation:   from,
		toLocation:     to,
		departureAt:    departureAt,
		totalSeats:     totalSeats,
		availableSeats: availableSeats,
		pricePerSeat:   pricePerSeat,
		status:         status,
		instantBooking: instantBooking,
		chatEnabled:    chatEnabled,
		cancelReason:   cancelReason,
		createdAt:      createdAt,
		closedAt:       closedAt,
	}
}

// Business methods

// Reserve atomically checks and debits n seats. The caller must hold the
// ride's section; the entity itself only enforces the capacity invariant.
func (r *Ride) Reserve(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: seat count must be at least 1", ErrValidation)
	}
	if r.status.IsTerminal() {
		return ErrRideClosed
	}
	if r.availableSeats < n {
		return ErrInsufficientSeats
	}

	r.availableSeats -= n
	return nil
}

// Release credits n seats back, clamped at totalSeats. A triggered clamp
// means a caller over-released; the entity repairs the counter and reports
// ErrSeatInvariant so the breach is never silent.
func (r *Ride) Release(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: seat count must be at least 1", ErrValidation)
	}

	r.availableSeats += n
	if r.availableSeats > r.totalSeats {
		r.availableSeats = r.totalSeats
		return ErrSeatInvariant
	}
	return nil
}

// Close transitions the ride to a terminal status. After this Reserve always
// fails with ErrRideClosed.
func (r *Ride) Close(status RideStatus, reason string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not a terminal ride status", ErrValidation, status)
	}
	if r.status.IsTerminal() {
		return ErrRideClosed
	}

	r.status = status
	r.cancelReason = reason
	now := time.Now()
	r.closedAt = &now
	return nil
}

// Query methods

// IsActive reports whether the ride still accepts capacity mutations
func (r *Ride) IsActive() bool {
	return !r.status.IsTerminal()
}

// IsFull is a derived view: no seats left while the ride is still active
func (r *Ride) IsFull() bool {
	return r.status == RideActive && r.availableSeats == 0
}

// IsCreator reports whether userID owns the ride
func (r *Ride) IsCreator(userID string) bool {
	return r.creatorID == userID
}

// Getters (encapsulation)

func (r *Ride) ID() string             { return r.id }
func (r *Ride) CreatorID() string      { return r.creatorID }
func (r *Ride) FromLocation() string   { return r.fromLocation }
func (r *Ride) ToLocation() string     { return r.toLocation }
func (r *Ride) DepartureAt() time.Time { return r.departureAt }
func (r *Ride) TotalSeats() int        { return r.totalSeats }
func (r *Ride) AvailableSeats() int    { return r.availableSeats }
func (r *Ride) PricePerSeat() float64  { return r.pricePerSeat }
func (r *Ride) Status() RideStatus     { return r.status }
func (r *Ride) InstantBooking() bool   { return r.instantBooking }
func (r *Ride) ChatEnabled() bool      { return r.chatEnabled }
func (r *Ride) CancelReason() string   { return r.cancelReason }
func (r *Ride) CreatedAt() time.Time   { return r.createdAt }
func (r *Ride) ClosedAt() *time.Time   { return r.closedAt }

// SetID sets the ride ID (used after persistence)
func (r *Ride) SetID(id string) {
	r.id = id
}
