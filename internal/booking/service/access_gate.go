package service

import (
	"context"
	"errors"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"
)

// AccessGate answers whether a user may act as a participant of a ride's
// chat and notification streams. It reads the roster and the request store
// but never touches capacity; snapshot reads are fine here because the gate
// is consulted outside the ride's section.
type AccessGate struct {
	rideRepo    domain.RideRepository
	requestRepo domain.RequestRepository
	rosterRepo  domain.RosterRepository
	logger      logger.Logger
}

func NewAccessGate(
	rideRepo domain.RideRepository,
	requestRepo domain.RequestRepository,
	rosterRepo domain.RosterRepository,
	logger logger.Logger,
) *AccessGate {
	return &AccessGate{
		rideRepo:    rideRepo,
		requestRepo: requestRepo,
		rosterRepo:  rosterRepo,
		logger:      logger,
	}
}

// IsParticipant reports whether userID is the driver, holds an active
// roster entry, or has an accepted request on the ride. The roster is a
// materialization that may lag one dispatcher cycle behind the request
// store, which is why both views are consulted.
func (g *AccessGate) IsParticipant(ctx context.Context, rideID, userID string) (bool, error) {
	ride, err := g.rideRepo.FindByID(ctx, rideID)
	if err != nil {
		return false, err
	}
	if ride.IsCreator(userID) {
		return true, nil
	}

	ok, err := g.rosterRepo.HasActiveEntry(ctx, rideID, userID)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	req, err := g.requestRepo.FindActiveByRideAndPassenger(ctx, rideID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			return false, nil
		}
		return false, err
	}
	return req.Status() == domain.RequestAccepted, nil
}

// Roster returns the current confirmed passengers of a ride.
func (g *AccessGate) Roster(ctx context.Context, rideID string) ([]*domain.RosterEntry, error) {
	if _, err := g.rideRepo.FindByID(ctx, rideID); err != nil {
		return nil, err
	}
	return g.rosterRepo.FindActiveByRide(ctx, rideID)
}
