package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"

	"github.com/google/uuid"
)

// InstantBookCommand represents a fused submit-and-accept on an
// auto-accepting ride
type InstantBookCommand struct {
	RideID        string
	PassengerID   string
	PassengerName string
	Seats         int
	Message       string
}

// InstantBookUseCase books a seat without driver review. It goes through
// the same duplicate, self-booking and reservation checks as the two-step
// path; the only difference is that submit and accept commit together.
type InstantBookUseCase struct {
	rideRepo       domain.RideRepository
	requestRepo    domain.RequestRepository
	store          domain.TransitionStore
	ledger         *RideLedger
	coordinator    *RideCoordinator
	eventPublisher EventPublisher
	logger         logger.Logger
}

func NewInstantBookUseCase(
	rideRepo domain.RideRepository,
	requestRepo domain.RequestRepository,
	store domain.TransitionStore,
	ledger *RideLedger,
	coordinator *RideCoordinator,
	eventPublisher EventPublisher,
	logger logger.Logger,
) *InstantBookUseCase {
	return &InstantBookUseCase{
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
func (uc *InstantBookUseCase) Execute(ctx context.Context, cmd InstantBookCommand) (*RequestDTO, error) {
	var (
		request *domain.JoinRequest
		ride    *domain.Ride
	)

	err := uc.coordinator.WithRide(ctx, cmd.RideID, func(ctx context.Context) error {
		var err error
		ride, err = uc.rideRepo.FindByID(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		if !ride.IsActive() {
			return domain.ErrRideClosed
		}
		if !ride.InstantBooking() {
			return domain.ErrInstantBookingDisabled
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

		if err := request.Accept(""); err != nil {
			return err
		}
		if err := uc.ledger.Reserve(ride, request.SeatsRequested()); err != nil {
			request.Revert()
			return err
		}

		effects := []*domain.Effect{
			newRosterUpsertEffect(request),
			newNotifyEffect(
				domain.EffectNotifyDriver,
				request,
				ride.CreatorID(),
				domain.NotifyRideRequest,
				"New Passenger",
				fmt.Sprintf("%s booked %d seat(s) on your ride from %s", cmd.PassengerName, cmd.Seats, rideLabel(ride)),
			),
		}
		if ride.ChatEnabled() {
			effects = append(effects, newChatEffect(domain.EffectChatJoin, request))
		}

		return uc.store.CommitTransition(ctx, ride, request, effects)
	})
	if err != nil {
		uc.logger.WithFields(logger.LogFields{"ride_id": cmd.RideID}).Error("instant_book_failed", err)
		return nil, err
	}

	uc.logger.WithFields(logger.LogFields{
		"ride_id":    ride.ID(),
		"request_id": request.ID(),
		"seats_left": ride.AvailableSeats(),
	}).Info("instant_booked", "Seat booked instantly")

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
