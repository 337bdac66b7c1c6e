package service

import (
	"errors"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"
)

// RideLedger is the single owner of seat-capacity mutations. It operates on
// ride entities already loaded under the ride's section; it holds no lock
// itself so it can be tested in isolation, and persistence of the mutated
// counter happens in the same commit as the request transition.
type RideLedger struct {
	log logger.Logger
}

func NewRideLedger(log logger.Logger) *RideLedger {
	return &RideLedger{log: log}
}

// Reserve debits n seats or fails without mutation: ErrInsufficientSeats
// when capacity is short, ErrRideClosed once the ride is terminal.
func (l *RideLedger) Reserve(ride *domain.Ride, n int) error {
	return ride.Reserve(n)
}

// Release credits n seats back. An over-release is clamped by the entity
// and reported here as a logged invariant breach; the clamped counter is
// still the value that gets committed, so no phantom capacity survives.
func (l *RideLedger) Release(ride *domain.Ride, n int) error {
	err := ride.Release(n)
	if errors.Is(err, domain.ErrSeatInvariant) {
		l.log.WithFields(logger.LogFields{
			"ride_id":  ride.ID(),
			"released": n,
			"total":    ride.TotalSeats(),
		}).Error("seat_invariant_breach", err)
	}
	return err
}

// MarkTerminal freezes the ride's capacity; Reserve fails with
// ErrRideClosed from here on.
func (l *RideLedger) MarkTerminal(ride *domain.Ride, status domain.RideStatus, reason string) error {
	return ride.Close(status, reason)
}
