package service

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking/domain"
	"carpool/pkg/keymutex"
	"carpool/pkg/logger"
)

// RideCoordinator serializes every capacity-mutating operation against one
// ride. Accept, cancel and instant-book are check-then-act sequences over
// available_seats; running two of them interleaved on the same ride is how
// over-booking happens. Operations on different rides run in parallel.
type RideCoordinator struct {
	locks    *keymutex.KeyMutex
	lockWait time.Duration
	log      logger.Logger
}

func NewRideCoordinator(lockWait time.Duration, log logger.Logger) *RideCoordinator {
	return &RideCoordinator{
		locks:    keymutex.New(),
		lockWait: lockWait,
		log:      log,
	}
}

// WithRide runs fn while holding the ride's exclusive section. The wait for
// the section is bounded; exhaustion surfaces ErrBusy so callers retry with
// backoff instead of queueing forever.
func (c *RideCoordinator) WithRide(ctx context.Context, rideID string, fn func(ctx context.Context) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, c.lockWait)
	defer cancel()

	if err := c.locks.Lock(lockCtx, rideID); err != nil {
		c.log.WithFields(logger.LogFields{"ride_id": rideID}).Debug("ride_section_busy", "Could not acquire ride section in time")
		return fmt.Errorf("%w: %v", domain.ErrBusy, err)
	}
	defer c.locks.Unlock(rideID)

	return fn(ctx)
}
