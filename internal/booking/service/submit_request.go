package service

import (
	"context"
	"errors"
	"fmt"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"

	"github.com/google/uuid"
)

// SubmitRequestCommand represents a passenger's intent to join a ride
type SubmitRequestCommand struct {
	RideID        string
	PassengerID   string
	PassengerName string
	Seats         int
	Message       string
}

// SubmitRequestUseCase creates a pending join request. No seats are
// reserved here; reservation happens only at accept time so unreviewed
// requests cannot soft-lock capacity.
type SubmitRequestUseCase struct {
	rideRepo       domain.RideRepository
	requestRepo    domain.RequestRepository
	store          domain.TransitionStore
	coordinator    *RideCoordinator
	eventPublisher EventPublisher
	logger         logger.Logger
}

func NewSubmitRequestUseCase(
	rideRepo domain.RideRepository,
	requestRepo domain.RequestRepository,
	store domain.TransitionStore,
	coordinator *RideCoordinator,
	eventPublisher EventPublisher,
	logger logger.Logger,
) *SubmitRequestUseCase {
	return &SubmitRequestUseCase{
		rideRepo:       rideRepo,
		requestRepo:    requestRepo,
		store:          store,
		coordinator:    coordinator,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute runs the use case
func (uc *SubmitRequestUseCase) Execute(ctx context.Context, cmd SubmitRequestCommand) (*RequestDTO, error) {
	var (
		request *domain.JoinRequest
		ride    *domain.Ride
	)

	// The duplicate check is check-then-act, so even submission runs under
	// the ride's section.
	err := uc.coordinator.WithRide(ctx, cmd.RideID, func(ctx context.Context) error {
		var err error
		ride, err = uc.rideRepo.FindByID(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if !ride.IsActive() {
			return domain.ErrRideClosed
		}
		if ride.IsCreator(cmd.PassengerID) {
			return domain.ErrSelfBooking
		}

		_, err = uc.requestRepo.FindActiveByRideAndPassenger(ctx, cmd.RideID, cmd.PassengerID)
		if err == nil {
			return domain.ErrDuplicateRequest
		}
		if !errors.Is(err, domain.ErrRequestNotFound) {
			return fmt.Errorf("check existing request: %w", err)
		}

		request, err = domain.NewJoinRequest(cmd.RideID, cmd.PassengerID, cmd.Seats, cmd.Message)
		if err != nil {
			return err
		}
		request.SetID(uuid.NewString())

		effects := []*domain.Effect{
			newNotifyEffect(
				domain.EffectNotifyDriver,
				request,
				ride.CreatorID(),
				domain.NotifyRideRequest,
				"New Ride Request",
				fmt.Sprintf("%s wants to join your ride from %s", cmd.PassengerName, rideLabel(ride)),
			),
		}

		return uc.store.CommitTransition(ctx, nil, request, effects)
	})
	if err != nil {
		uc.logger.WithFields(logger.LogFields{"ride_id": cmd.RideID}).Error("submit_request_failed", err)
		return nil, err
	}

	uc.logger.WithFields(logger.LogFields{
		"ride_id":    cmd.RideID,
		"request_id": request.ID(),
	}).Info("request_submitted", "Join request created")

	event := domain.RequestSubmittedEvent{
		RequestID:      request.ID(),
		RideID:         ride.ID(),
		PassengerID:    request.PassengerID(),
		DriverID:       ride.CreatorID(),
		SeatsRequested: request.SeatsRequested(),
		SubmittedAt:    request.CreatedAt(),
	}
	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		// The request is already committed; a publish failure is not the
		// caller's problem.
		uc.logger.WithFields(logger.LogFields{"request_id": request.ID()}).Error("publish_event_failed", err)
	}

	return ToRequestDTO(request), nil
}
