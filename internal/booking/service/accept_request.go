package service

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"
)

// AcceptRequestCommand represents the driver approving a pending request
type AcceptRequestCommand struct {
	RequestID string
	DriverID  string
	Note      string
}

// AcceptRequestUseCase is the only path that debits seats. The reservation
// and the state transition commit together under the ride's section; if the
// ledger refuses, the request stays pending for the driver to reject or
// retry later.
type AcceptRequestUseCase struct {
	rideRepo       domain.RideRepository
	requestRepo    domain.RequestRepository
	store          domain.TransitionStore
	ledger         *RideLedger
	coordinator    *RideCoordinator
	eventPublisher EventPublisher
	logger         logger.Logger
}

func NewAcceptRequestUseCase(
	rideRepo domain.RideRepository,
	requestRepo domain.RequestRepository,
	store domain.TransitionStore,
	ledger *RideLedger,
	coordinator *RideCoordinator,
	eventPublisher EventPublisher,
	logger logger.Logger,
) *AcceptRequestUseCase {
	return &AcceptRequestUseCase{
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
func (uc *AcceptRequestUseCase) Execute(ctx context.Context, cmd AcceptRequestCommand) (*RequestDTO, error) {
	// Pre-read outside the section only to learn which ride to lock.
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
		// Reload under the section; the pre-read may be stale.
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

		// Retried accept of an already-accepted request: report current
		// state as success, no second debit.
		if request.Status() == domain.RequestAccepted {
			return nil
		}

		// Lifecycle step first, tentatively; the ledger step decides
		// whether it sticks.
		if err := request.Accept(cmd.Note); err != nil {
			return err
		}
		if err := uc.ledger.Reserve(ride, request.SeatsRequested()); err != nil {
			request.Revert()
			return err
		}

		effects := []*domain.Effect{
			newRosterUpsertEffect(request),
			newNotifyEffect(
				domain.EffectNotifyPassenger,
				request,
				request.PassengerID(),
				domain.NotifyRequestAccepted,
				"Request Accepted!",
				fmt.Sprintf("Your request to join the ride from %s was accepted", rideLabel(ride)),
			),
		}
		if ride.ChatEnabled() {
			effects = append(effects, newChatEffect(domain.EffectChatJoin, request))
		}

		return uc.store.CommitTransition(ctx, ride, request, effects)
	})
	if err != nil {
		uc.logger.WithFields(logger.LogFields{"request_id": cmd.RequestID}).Error("accept_request_failed", err)
		return nil, err
	}

	uc.logger.WithFields(logger.LogFields{
		"ride_id":    ride.ID(),
		"request_id": request.ID(),
		"seats_left": ride.AvailableSeats(),
	}).Info("request_accepted", "Join request accepted")

	event := domain.RequestAcceptedEvent{
		RequestID:      request.ID(),
		RideID:         ride.ID(),
		PassengerID:    request.PassengerID(),
		SeatsBooked:    request.SeatsRequested(),
		SeatsRemaining: ride.AvailableSeats(),
		AcceptedAt:     time.Now(),
	}
	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		uc.logger.WithFields(logger.LogFields{"request_id": request.ID()}).Error("publish_event_failed", err)
	}

	return ToRequestDTO(request), nil
}
