package service

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"
)

// RejectRequestCommand represents the driver declining a pending request
type RejectRequestCommand struct {
	RequestID string
	DriverID  string
	Reason    string
}

// RejectRequestUseCase declines a pending request. No seats were ever
// reserved for a pending request, so there is no ledger effect.
type RejectRequestUseCase struct {
	rideRepo       domain.RideRepository
	requestRepo    domain.RequestRepository
	store          domain.TransitionStore
	coordinator    *RideCoordinator
	eventPublisher EventPublisher
	logger         logger.Logger
}

func NewRejectRequestUseCase(
	rideRepo domain.RideRepository,
	requestRepo domain.RequestRepository,
	store domain.TransitionStore,
	coordinator *RideCoordinator,
	eventPublisher EventPublisher,
	logger logger.Logger,
) *RejectRequestUseCase {
	return &RejectRequestUseCase{
		rideRepo:       rideRepo,
		requestRepo:    requestRepo,
		store:          store,
		coordinator:    coordinator,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute runs the use case
func (uc *RejectRequestUseCase) Execute(ctx context.Context, cmd RejectRequestCommand) (*RequestDTO, error) {
	peek, err := uc.requestRepo.FindByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}

	var (
		request *domain.JoinRequest
		ride    *domain.Ride
	)

	err = uc.coordinator.WithRide(ctx, peek.RideID(), func(ctx context.Context) error {
		var err error
		request, err = uc.requestRepo.FindByID(ctx, cmd.RequestID)
		if err != nil {
			return err
		}
		ride, err = uc.rideRepo.FindByID(ctx, request.RideID())
		if err != nil {
			return err
		}
		if !ride.IsCreator(cmd.DriverID) {
			return domain.ErrNotRideOwner
		}

		// Retried reject: current state is already the requested outcome.
		if request.Status() == domain.RequestRejected {
			return nil
		}

		if err := request.Reject(cmd.Reason); err != nil {
			return err
		}

		effects := []*domain.Effect{
			newNotifyEffect(
				domain.EffectNotifyPassenger,
				request,
				request.PassengerID(),
				domain.NotifyRequestRejected,
				"Request Declined",
				fmt.Sprintf("Your request to join the ride from %s was declined", rideLabel(ride)),
			),
		}

		return uc.store.CommitTransition(ctx, nil, request, effects)
	})
	if err != nil {
		uc.logger.WithFields(logger.LogFields{"request_id": cmd.RequestID}).Error("reject_request_failed", err)
		return nil, err
	}

	uc.logger.WithFields(logger.LogFields{
		"ride_id":    ride.ID(),
		"request_id": request.ID(),
	}).Info("request_rejected", "Join request rejected")

	event := domain.RequestRejectedEvent{
		RequestID:   request.ID(),
		RideID:      ride.ID(),
		PassengerID: request.PassengerID(),
		Reason:      cmd.Reason,
		RejectedAt:  time.Now(),
	}
	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		uc.logger.WithFields(logger.LogFields{"request_id": request.ID()}).Error("publish_event_failed", err)
	}

	return ToRequestDTO(request), nil
}
