package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"carpool/internal/booking/domain"
	"carpool/internal/booking/infrastructure/repository"
	"carpool/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingPublisher records published events instead of touching a broker
type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

type fixture struct {
	store      *repository.MemoryStore
	pub        *capturingPublisher
	createRide *CreateRideUseCase
	cancelRide *CancelRideUseCase
	deleteRide *DeleteRideUseCase
	submit     *SubmitRequestUseCase
	accept     *AcceptRequestUseCase
	reject     *RejectRequestUseCase
	cancel     *CancelRequestUseCase
	instant    *InstantBookUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewLogger("booking-test")
	store := repository.NewMemoryStore()
	requests := store.Requests()
	coordinator := NewRideCoordinator(time.Second, log)
	ledger := NewRideLedger(log)
	pub := &capturingPublisher{}

	return &fixture{
		store:      store,
		pub:        pub,
		createRide: NewCreateRideUseCase(store, log),
		cancelRide: NewCancelRideUseCase(store, requests, store, ledger, coordinator, pub, log),
		deleteRide: NewDeleteRideUseCase(store, requests, coordinator, log),
		submit:     NewSubmitRequestUseCase(store, requests, store, coordinator, pub, log),
		accept:     NewAcceptRequestUseCase(store, requests, store, ledger, coordinator, pub, log),
		reject:     NewRejectRequestUseCase(store, requests, store, coordinator, pub, log),
		cancel:     NewCancelRequestUseCase(store, requests, store, ledger, coordinator, pub, log),
		instant:    NewInstantBookUseCase(store, requests, store, ledger, coordinator, pub, log),
	}
}

func (f *fixture) mustCreateRide(t *testing.T, driverID string, seats int, instantBooking bool) *RideDTO {
	t.Helper()
	ride, err := f.createRide.Execute(context.Background(), CreateRideCommand{
		CreatorID:      driverID,
		FromLocation:   "Almaty",
		ToLocation:     "Astana",
		DepartureAt:    time.Now().Add(24 * time.Hour),
		TotalSeats:     seats,
		PricePerSeat:   1500,
		InstantBooking: instantBooking,
		ChatEnabled:    true,
	})
	require.NoError(t, err)
	return ride
}

func (f *fixture) mustSubmit(t *testing.T, rideID, passengerID string, seats int) *RequestDTO {
	t.Helper()
	req, err := f.submit.Execute(context.Background(), SubmitRequestCommand{
		RideID:        rideID,
		PassengerID:   passengerID,
		PassengerName: "Test Passenger",
		Seats:         seats,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) rideSeats(t *testing.T, rideID string) int {
	t.Helper()
	ride, err := f.store.FindByID(context.Background(), rideID)
	require.NoError(t, err)
	return ride.AvailableSeats()
}

func (f *fixture) pendingEffectKinds(t *testing.T) map[domain.EffectKind]int {
	t.Helper()
	pending, err := f.store.FindPending(context.Background(), 100)
	require.NoError(t, err)
	kinds := make(map[domain.EffectKind]int)
	for _, e := range pending {
		kinds[e.Kind]++
	}
	return kinds
}

func TestSubmitRequest_DoesNotDebitSeats(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)

	req := f.mustSubmit(t, ride.ID, "passenger-1", 2)

	assert.Equal(t, "PENDING", req.Status)
	assert.Equal(t, 3, f.rideSeats(t, ride.ID), "submission must never reserve")

	kinds := f.pendingEffectKinds(t)
	assert.Equal(t, 1, kinds[domain.EffectNotifyDriver])
	assert.Contains(t, f.pub.eventTypes(), "booking.request.submitted")
}

func TestSubmitRequest_SelfBooking(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)

	_, err := f.submit.Execute(context.Background(), SubmitRequestCommand{
		RideID:      ride.ID,
		PassengerID: "driver-1",
		Seats:       1,
	})
	assert.ErrorIs(t, err, domain.ErrSelfBooking)
}

func TestSubmitRequest_DuplicateActivePair(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	f.mustSubmit(t, ride.ID, "passenger-1", 1)

	_, err := f.submit.Execute(context.Background(), SubmitRequestCommand{
		RideID:      ride.ID,
		PassengerID: "passenger-1",
		Seats:       1,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	// A cancelled request frees the pair for a fresh submission.
	reqs, err := f.store.FindByRide(context.Background(), ride.ID)
	require.NoError(t, err)
	_, err = f.cancel.Execute(context.Background(), CancelRequestCommand{
		RequestID:   reqs[0].ID(),
		PassengerID: "passenger-1",
	})
	require.NoError(t, err)

	f.mustSubmit(t, ride.ID, "passenger-1", 1)
}

func TestSubmitRequest_ClosedRide(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	require.NoError(t, f.cancelRide.Execute(context.Background(), CancelRideCommand{
		RideID:   ride.ID,
		DriverID: "driver-1",
		Reason:   "weather",
	}))

	_, err := f.submit.Execute(context.Background(), SubmitRequestCommand{
		RideID:      ride.ID,
		PassengerID: "passenger-1",
		Seats:       1,
	})
	assert.ErrorIs(t, err, domain.ErrRideClosed)
}

func TestAcceptRequest_ReservesSeats(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	req := f.mustSubmit(t, ride.ID, "passenger-1", 2)

	dto, err := f.accept.Execute(context.Background(), AcceptRequestCommand{
		RequestID: req.ID,
		DriverID:  "driver-1",
		Note:      "see you there",
	})
	require.NoError(t, err)

	assert.Equal(t, "ACCEPTED", dto.Status)
	assert.Equal(t, 1, f.rideSeats(t, ride.ID))

	kinds := f.pendingEffectKinds(t)
	assert.Equal(t, 1, kinds[domain.EffectRosterUpsert])
	assert.Equal(t, 1, kinds[domain.EffectNotifyPassenger])
	assert.Equal(t, 1, kinds[domain.EffectChatJoin])
}

func TestAcceptRequest_IdempotentRetry(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	req := f.mustSubmit(t, ride.ID, "passenger-1", 2)

	_, err := f.accept.Execute(context.Background(), AcceptRequestCommand{RequestID: req.ID, DriverID: "driver-1"})
	require.NoError(t, err)

	dto, err := f.accept.Execute(context.Background(), AcceptRequestCommand{RequestID: req.ID, DriverID: "driver-1"})
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", dto.Status)
	assert.Equal(t, 1, f.rideSeats(t, ride.ID), "retried accept must not debit twice")
}

func TestAcceptRequest_InsufficientSeatsKeepsRequestPending(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 2, false)
	first := f.mustSubmit(t, ride.ID, "passenger-1", 2)
	second := f.mustSubmit(t, ride.ID, "passenger-2", 1)

	_, err := f.accept.Execute(context.Background(), AcceptRequestCommand{RequestID: first.ID, DriverID: "driver-1"})
	require.NoError(t, err)

	_, err = f.accept.Execute(context.Background(), AcceptRequestCommand{RequestID: second.ID, DriverID: "driver-1"})
	assert.ErrorIs(t, err, domain.ErrInsufficientSeats)

	stored, err := f.store.FindRequestByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, stored.Status(), "failed accept must leave the request reviewable")
	assert.Equal(t, 0, f.rideSeats(t, ride.ID))
}

func TestAcceptRequest_NotOwner(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	req := f.mustSubmit(t, ride.ID, "passenger-1", 1)

	_, err := f.accept.Execute(context.Background(), AcceptRequestCommand{RequestID: req.ID, DriverID: "intruder"})
	assert.ErrorIs(t, err, domain.ErrNotRideOwner)
}

func TestRejectRequest_NoCapacityEffect(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	req := f.mustSubmit(t, ride.ID, "passenger-1", 2)

	dto, err := f.reject.Execute(context.Background(), RejectRequestCommand{
		RequestID: req.ID,
		DriverID:  "driver-1",
		Reason:    "car is for family this time",
	})
	require.NoError(t, err)

	assert.Equal(t, "REJECTED", dto.Status)
	assert.Equal(t, 3, f.rideSeats(t, ride.ID))

	// Retried reject reports the same terminal state.
	dto, err = f.reject.Execute(context.Background(), RejectRequestCommand{RequestID: req.ID, DriverID: "driver-1"})
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", dto.Status)
}

func TestCancelRequest_PendingTouchesNoCapacity(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	req := f.mustSubmit(t, ride.ID, "passenger-1", 2)

	dto, err := f.cancel.Execute(context.Background(), CancelRequestCommand{
		RequestID:   req.ID,
		PassengerID: "passenger-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", dto.Status)
	assert.Equal(t, 3, f.rideSeats(t, ride.ID))
}

func TestCancelRequest_AcceptedReleasesSeats(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	req := f.mustSubmit(t, ride.ID, "passenger-1", 2)
	_, err := f.accept.Execute(context.Background(), AcceptRequestCommand{RequestID: req.ID, DriverID: "driver-1"})
	require.NoError(t, err)
	require.Equal(t, 1, f.rideSeats(t, ride.ID))

	_, err = f.cancel.Execute(context.Background(), CancelRequestCommand{
		RequestID:   req.ID,
		PassengerID: "passenger-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, f.rideSeats(t, ride.ID), "cancelling an accepted request returns its seats")
}

func TestCancelRequest_BeforeDispatchKeepsWithdrawalNotice(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	req := f.mustSubmit(t, ride.ID, "passenger-1", 1)

	// The dispatcher has not drained the submit-time driver notice yet.
	// Cancelling now must still queue the withdrawal notice: the two
	// share a kind but are different notifications.
	_, err := f.cancel.Execute(context.Background(), CancelRequestCommand{
		RequestID:   req.ID,
		PassengerID: "passenger-1",
	})
	require.NoError(t, err)

	pending, err := f.store.FindPending(context.Background(), 100)
	require.NoError(t, err)
	var types []string
	for _, e := range pending {
		if e.Kind == domain.EffectNotifyDriver {
			types = append(types, e.NotificationType())
		}
	}
	assert.Contains(t, types, domain.NotifyRideRequest)
	assert.Contains(t, types, domain.NotifyRequestCancelled)
}

func TestCancelRequest_WrongPassenger(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	req := f.mustSubmit(t, ride.ID, "passenger-1", 1)

	// Someone else's request reads as absent, not forbidden.
	_, err := f.cancel.Execute(context.Background(), CancelRequestCommand{
		RequestID:   req.ID,
		PassengerID: "passenger-2",
	})
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestCancelRide_CancelsEveryActiveRequest(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	accepted := f.mustSubmit(t, ride.ID, "passenger-1", 2)
	pending := f.mustSubmit(t, ride.ID, "passenger-2", 1)
	_, err := f.accept.Execute(context.Background(), AcceptRequestCommand{RequestID: accepted.ID, DriverID: "driver-1"})
	require.NoError(t, err)

	require.NoError(t, f.cancelRide.Execute(context.Background(), CancelRideCommand{
		RideID:   ride.ID,
		DriverID: "driver-1",
		Reason:   "car broke down",
	}))

	stored, err := f.store.FindByID(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RideCancelled, stored.Status())
	assert.Equal(t, 1, stored.AvailableSeats(), "a closed ride freezes its counter")

	for _, id := range []string{accepted.ID, pending.ID} {
		req, err := f.store.FindRequestByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestCancelled, req.Status())
	}

	kinds := f.pendingEffectKinds(t)
	assert.Equal(t, 1, kinds[domain.EffectRosterRemove], "only the accepted passenger was on the roster")
	assert.Contains(t, f.pub.eventTypes(), "booking.ride.cancelled")
}

func TestCancelRide_NotOwner(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)

	err := f.cancelRide.Execute(context.Background(), CancelRideCommand{
		RideID:   ride.ID,
		DriverID: "driver-2",
		Reason:   "nope",
	})
	assert.ErrorIs(t, err, domain.ErrNotRideOwner)
}

func TestDeleteRide_GuardedByAcceptedPassengers(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	req := f.mustSubmit(t, ride.ID, "passenger-1", 1)
	_, err := f.accept.Execute(context.Background(), AcceptRequestCommand{RequestID: req.ID, DriverID: "driver-1"})
	require.NoError(t, err)

	err = f.deleteRide.Execute(context.Background(), DeleteRideCommand{RideID: ride.ID, DriverID: "driver-1"})
	assert.ErrorIs(t, err, domain.ErrRideHasPassengers)

	_, err = f.cancel.Execute(context.Background(), CancelRequestCommand{RequestID: req.ID, PassengerID: "passenger-1"})
	require.NoError(t, err)

	require.NoError(t, f.deleteRide.Execute(context.Background(), DeleteRideCommand{RideID: ride.ID, DriverID: "driver-1"}))
	_, err = f.store.FindByID(context.Background(), ride.ID)
	assert.ErrorIs(t, err, domain.ErrRideNotFound)
}

func TestInstantBook_DisabledRide(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)

	_, err := f.instant.Execute(context.Background(), InstantBookCommand{
		RideID:      ride.ID,
		PassengerID: "passenger-1",
		Seats:       1,
	})
	assert.ErrorIs(t, err, domain.ErrInstantBookingDisabled)
}

func TestInstantBook_BooksImmediately(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, true)

	dto, err := f.instant.Execute(context.Background(), InstantBookCommand{
		RideID:        ride.ID,
		PassengerID:   "passenger-1",
		PassengerName: "Aigerim",
		Seats:         2,
	})
	require.NoError(t, err)

	assert.Equal(t, "ACCEPTED", dto.Status)
	assert.Equal(t, 1, f.rideSeats(t, ride.ID))

	kinds := f.pendingEffectKinds(t)
	assert.Equal(t, 1, kinds[domain.EffectRosterUpsert])
	assert.Equal(t, 1, kinds[domain.EffectChatJoin])
}

// End-to-end capacity walk: a two-seat ride, competing requests, a
// withdrawal, and a re-accept.
func TestLifecycle_TwoSeatScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ride := f.mustCreateRide(t, "driver-1", 2, false)

	reqA := f.mustSubmit(t, ride.ID, "passenger-a", 2)
	reqB := f.mustSubmit(t, ride.ID, "passenger-b", 1)
	assert.Equal(t, 2, f.rideSeats(t, ride.ID))

	_, err := f.accept.Execute(ctx, AcceptRequestCommand{RequestID: reqA.ID, DriverID: "driver-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, f.rideSeats(t, ride.ID))

	_, err = f.accept.Execute(ctx, AcceptRequestCommand{RequestID: reqB.ID, DriverID: "driver-1"})
	assert.ErrorIs(t, err, domain.ErrInsufficientSeats)

	_, err = f.cancel.Execute(ctx, CancelRequestCommand{RequestID: reqA.ID, PassengerID: "passenger-a"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.rideSeats(t, ride.ID))

	_, err = f.accept.Execute(ctx, AcceptRequestCommand{RequestID: reqB.ID, DriverID: "driver-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.rideSeats(t, ride.ID))
}
