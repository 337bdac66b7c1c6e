package service

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"

	"github.com/google/uuid"
)

// CancelRideCommand represents the driver cancelling the whole ride
type CancelRideCommand struct {
	RideID   string
	DriverID string
	Reason   string
}

// CancelRideUseCase closes a ride. Every active request on it is cancelled
// in the same commit so the roster and the request views stay in agreement,
// and each accepted passenger gets a notification.
type CancelRideUseCase struct {
	rideRepo       domain.RideRepository
	requestRepo    domain.RequestRepository
	store          domain.TransitionStore
	ledger         *RideLedger
	coordinator    *RideCoordinator
	eventPublisher EventPublisher
	logger         logger.Logger
}

func NewCancelRideUseCase(
	rideRepo domain.RideRepository,
	requestRepo domain.RequestRepository,
	store domain.TransitionStore,
	ledger *RideLedger,
	coordinator *RideCoordinator,
	eventPublisher EventPublisher,
	logger logger.Logger,
) *CancelRideUseCase {
	return &CancelRideUseCase{
		rideRepo:       rideRepo,
		requestRepo:    requestRepo,
		store:          store,
		ledger:         ledger,
		coordinator:    coordinator,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute runs the use case
func (uc *CancelRideUseCase) Execute(ctx context.Context, cmd CancelRideCommand) error {
	var (
		ride         *domain.Ride
		passengerIDs []string
	)

	err := uc.coordinator.WithRide(ctx, cmd.RideID, func(ctx context.Context) error {
		var err error
		ride, err = uc.rideRepo.FindByID(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if !ride.IsCreator(cmd.DriverID) {
			return domain.ErrNotRideOwner
		}

		if err := uc.ledger.MarkTerminal(ride, domain.RideCancelled, cmd.Reason); err != nil {
			return err
		}

		requests, err := uc.requestRepo.FindByRide(ctx, cmd.RideID)
		if err != nil {
			return err
		}

		var (
			cancelled []*domain.JoinRequest
			effects   []*domain.Effect
		)
		for _, req := range requests {
			if !req.IsActive() {
				continue
			}
			wasAccepted := req.Status() == domain.RequestAccepted
			if err := req.Cancel(); err != nil {
				return err
			}
			cancelled = append(cancelled, req)

			if wasAccepted {
				passengerIDs = append(passengerIDs, req.PassengerID())
				effects = append(effects,
					newRosterRemoveEffect(req),
					newNotifyEffect(
						domain.EffectNotifyPassenger,
						req,
						req.PassengerID(),
						domain.NotifyRideCancelled,
						"Ride Cancelled",
						fmt.Sprintf("Your ride from %s has been cancelled by the driver", rideLabel(ride)),
					),
				)
				if ride.ChatEnabled() {
					effects = append(effects, newChatEffect(domain.EffectChatLeave, req))
				}
			}
		}

		return uc.store.CommitRideCancel(ctx, ride, cancelled, effects)
	})
	if err != nil {
		uc.logger.WithFields(logger.LogFields{"ride_id": cmd.RideID}).Error("cancel_ride_failed", err)
		return err
	}

	uc.logger.WithFields(logger.LogFields{
		"ride_id": cmd.RideID,
		"reason":  cmd.Reason,
	}).Info("ride_cancelled", "Ride cancelled by driver")

	event := domain.RideCancelledEvent{
		RideID:       ride.ID(),
		DriverID:     cmd.DriverID,
		PassengerIDs: passengerIDs,
		Reason:       cmd.Reason,
		CancelledAt:  time.Now(),
	}
	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		uc.logger.WithFields(logger.LogFields{"ride_id": cmd.RideID}).Error("publish_event_failed", err)
	}

	return nil
}

// DeleteRideCommand represents the driver removing a ride outright
type DeleteRideCommand struct {
	RideID   string
	DriverID string
}

// DeleteRideUseCase removes a ride that never picked anyone up. A ride
// with accepted passengers cannot be deleted, only cancelled.
type DeleteRideUseCase struct {
	rideRepo    domain.RideRepository
	requestRepo domain.RequestRepository
	coordinator *RideCoordinator
	logger      logger.Logger
}

func NewDeleteRideUseCase(
	rideRepo domain.RideRepository,
	requestRepo domain.RequestRepository,
	coordinator *RideCoordinator,
	logger logger.Logger,
) *DeleteRideUseCase {
	return &DeleteRideUseCase{
		rideRepo:    rideRepo,
		requestRepo: requestRepo,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Execute runs the use case
func (uc *DeleteRideUseCase) Execute(ctx context.Context, cmd DeleteRideCommand) error {
	err := uc.coordinator.WithRide(ctx, cmd.RideID, func(ctx context.Context) error {
		ride, err := uc.rideRepo.FindByID(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if !ride.IsCreator(cmd.DriverID) {
			return domain.ErrNotRideOwner
		}

		accepted, err := uc.requestRepo.FindAcceptedByRide(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if len(accepted) > 0 {
			return domain.ErrRideHasPassengers
		}

		return uc.rideRepo.Delete(ctx, cmd.RideID)
	})
	if err != nil {
		uc.logger.WithFields(logger.LogFields{"ride_id": cmd.RideID}).Error("delete_ride_failed", err)
		return err
	}

	uc.logger.WithFields(logger.LogFields{"ride_id": cmd.RideID}).Info("ride_deleted", "Ride deleted")
	return nil
}

// CreateRideCommand represents a driver publishing a new ride
type CreateRideCommand struct {
	CreatorID      string
	FromLocation   string
	ToLocation     string
	DepartureAt    time.Time
	TotalSeats     int
	PricePerSeat   float64
	InstantBooking bool
	ChatEnabled    bool
}

// CreateRideUseCase publishes a ride with its full capacity available
type CreateRideUseCase struct {
	rideRepo domain.RideRepository
	logger   logger.Logger
}

func NewCreateRideUseCase(rideRepo domain.RideRepository, logger logger.Logger) *CreateRideUseCase {
	return &CreateRideUseCase{rideRepo: rideRepo, logger: logger}
}

// Execute runs the use case
func (uc *CreateRideUseCase) Execute(ctx context.Context, cmd CreateRideCommand) (*RideDTO, error) {
	ride, err := domain.NewRide(
		cmd.CreatorID,
		cmd.FromLocation,
		cmd.ToLocation,
		cmd.DepartureAt,
		cmd.TotalSeats,
		cmd.PricePerSeat,
		cmd.InstantBooking,
		cmd.ChatEnabled,
	)
	if err != nil {
		return nil, err
	}
	ride.SetID(uuid.NewString())

	if err := uc.rideRepo.Save(ctx, ride); err != nil {
		uc.logger.Error("save_ride_failed", err)
		return nil, fmt.Errorf("failed to save ride: %w", err)
	}

	uc.logger.WithFields(logger.LogFields{"ride_id": ride.ID()}).Info("ride_created", "Ride published")
	return ToRideDTO(ride), nil
}
