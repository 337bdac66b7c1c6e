package domain

import "context"

// RideRepository is the port for ride persistence
type RideRepository interface {
	// Save persists a new ride
	Save(ctx context.Context, ride *Ride) error

	// Update persists capacity and status changes of an existing ride
	Update(ctx context.Context, ride *Ride) error

	// FindByID retrieves a ride by its ID
	FindByID(ctx context.Context, rideID string) (*Ride, error)

	// FindActive retrieves rides still open for booking
	FindActive(ctx context.Context) ([]*Ride, error)

	// FindByCreator retrieves a driver's rides, newest first
	FindByCreator(ctx context.Context, creatorID string) ([]*Ride, error)

	// Delete removes a ride; callers must check the accepted-passenger guard first
	Delete(ctx context.Context, rideID string) error
}

// RequestRepository is the port for join request persistence
type RequestRepository interface {
	// Save persists a new request
	Save(ctx context.Context, request *JoinRequest) error

	// FindByID retrieves a request by its ID
	FindByID(ctx context.Context, requestID string) (*JoinRequest, error)

	// FindActiveByRideAndPassenger returns the PENDING or ACCEPTED request
	// for the pair, or ErrRequestNotFound when none exists
	FindActiveByRideAndPassenger(ctx context.Context, rideID, passengerID string) (*JoinRequest, error)

	// FindByRide retrieves all requests for a ride (driver view)
	FindByRide(ctx context.Context, rideID string) ([]*JoinRequest, error)

	// FindByPassenger retrieves a passenger's requests, newest first
	FindByPassenger(ctx context.Context, passengerID string) ([]*JoinRequest, error)

	// FindAcceptedByRide retrieves the accepted requests for a ride
	FindAcceptedByRide(ctx context.Context, rideID string) ([]*JoinRequest, error)
}

// TransitionStore commits a lifecycle transition and its queued effects as
// one atomic write, so a crash between the state change and the effect
// queueing cannot drop the effect. A nil ride means the transition did not
// touch capacity.
type TransitionStore interface {
	CommitTransition(ctx context.Context, ride *Ride, request *JoinRequest, effects []*Effect) error

	// CommitRideCancel closes the ride and cancels every active request on
	// it in the same write
	CommitRideCancel(ctx context.Context, ride *Ride, requests []*JoinRequest, effects []*Effect) error
}

// RosterRepository is the port for the materialized roster view
type RosterRepository interface {
	// Upsert inserts or refreshes the entry for (ride, request); idempotent
	Upsert(ctx context.Context, entry *RosterEntry) error

	// Deactivate flags the entry for (ride, request) inactive; idempotent
	Deactivate(ctx context.Context, rideID, requestID string) error

	// FindActiveByRide retrieves the active roster of a ride
	FindActiveByRide(ctx context.Context, rideID string) ([]*RosterEntry, error)

	// HasActiveEntry reports whether the passenger holds a confirmed seat
	HasActiveEntry(ctx context.Context, rideID, passengerID string) (bool, error)
}

// EffectRepository is the port for the effect outbox
type EffectRepository interface {
	// FindPending retrieves up to limit unapplied effects, oldest first
	FindPending(ctx context.Context, limit int) ([]*Effect, error)

	// MarkApplied finalizes an effect; a second call is a no-op
	MarkApplied(ctx context.Context, effectID string) error

	// RecordAttempt bumps the attempt counter of a still-pending effect
	RecordAttempt(ctx context.Context, effectID string) error
}

// NotificationRepository is the port for durable in-app notifications
type NotificationRepository interface {
	// Insert stores a notification; inserting the same ID twice is a no-op
	Insert(ctx context.Context, n *Notification) error

	// ListByUser retrieves a user's notifications, newest first
	ListByUser(ctx context.Context, userID string) ([]*Notification, error)

	// MarkRead flags one of the user's notifications as read
	MarkRead(ctx context.Context, notificationID, userID string) error

	// MarkAllRead flags all of the user's notifications as read
	MarkAllRead(ctx context.Context, userID string) error
}
