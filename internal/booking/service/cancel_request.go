package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"
)

// CancelRequestCommand represents a passenger withdrawing a request
type CancelRequestCommand struct {
	RequestID   string
	PassengerID string
}

// CancelRequestUseCase withdraws a request. Cancelling an accepted request
// releases its seats back to the ledger before the state flips; cancelling
// a pending one touches no capacity.
type CancelRequestUseCase struct {
	rideRepo       domain.RideRepository
	requestRepo    domain.RequestRepository
	store          domain.TransitionStore
	ledger         *RideLedger
	coordinator    *RideCoordinator
	eventPublisher EventPublisher
	logger         logger.Logger
}

func NewCancelRequestUseCase(
	rideRepo domain.RideRepository,
	requestRepo domain.RequestRepository,
	store domain.TransitionStore,
	ledger *RideLedger,
	coordinator *RideCoordinator,
	eventPublisher EventPublisher,
	logger logger.Logger,
) *CancelRequestUseCase {
	return &CancelRequestUseCase{
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
func (uc *CancelRequestUseCase) Execute(ctx context.Context, cmd CancelRequestCommand) (*RequestDTO, error) {
	peek, err := uc.requestRepo.FindByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}

	var (
		request       *domain.JoinRequest
		ride          *domain.Ride
		seatsReleased int
	)

	err = uc.coordinator.WithRide(ctx, peek.RideID(), func(ctx context.Context) error {
		var err error
		request, err = uc.requestRepo.FindByID(ctx, cmd.RequestID)
		if err != nil {
			return err
		}
		if request.PassengerID() != cmd.PassengerID {
			return domain.ErrRequestNotFound
		}
		ride, err = uc.rideRepo.FindByID(ctx, request.RideID())
		if err != nil {
			return err
		}

		// Retried cancel: already done.
		if request.Status() == domain.RequestCancelled {
			return nil
		}

		wasAccepted := request.Status() == domain.RequestAccepted

		if err := request.Cancel(); err != nil {
			return err
		}

		effects := []*domain.Effect{
			newNotifyEffect(
				domain.EffectNotifyDriver,
				request,
				ride.CreatorID(),
				domain.NotifyRequestCancelled,
				"Request Withdrawn",
				fmt.Sprintf("A passenger withdrew from your ride from %s", rideLabel(ride)),
			),
		}

		var commitRide *domain.Ride
		if wasAccepted {
			// A frozen ride keeps its counter; only active rides get the
			// seats back.
			if ride.IsActive() {
				if err := uc.ledger.Release(ride, request.SeatsRequested()); err != nil && !errors.Is(err, domain.ErrSeatInvariant) {
					request.Revert()
					return err
				}
				seatsReleased = request.SeatsRequested()
				commitRide = ride
			}
			effects = append(effects, newRosterRemoveEffect(request))
			if ride.ChatEnabled() {
				effects = append(effects, newChatEffect(domain.EffectChatLeave, request))
			}
		}

		return uc.store.CommitTransition(ctx, commitRide, request, effects)
	})
	if err != nil {
		uc.logger.WithFields(logger.LogFields{"request_id": cmd.RequestID}).Error("cancel_request_failed", err)
		return nil, err
	}

	uc.logger.WithFields(logger.LogFields{
		"ride_id":    ride.ID(),
		"request_id": request.ID(),
	}).Info("request_cancelled", "Join request cancelled")

	event := domain.RequestCancelledEvent{
		RequestID:     request.ID(),
		RideID:        ride.ID(),
		PassengerID:   request.PassengerID(),
		DriverID:      ride.CreatorID(),
		SeatsReleased: seatsReleased,
		CancelledAt:   time.Now(),
	}
	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		uc.logger.WithFields(logger.LogFields{"request_id": request.ID()}).Error("publish_event_failed", err)
	}

	return ToRequestDTO(request), nil
}
