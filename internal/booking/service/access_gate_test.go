package service

import (
	"context"
	"testing"
	"time"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateFixture(t *testing.T) (*fixture, *AccessGate) {
	t.Helper()
	f := newFixture(t)
	gate := NewAccessGate(f.store, f.store.Requests(), f.store, logger.NewLogger("gate-test"))
	return f, gate
}

func TestAccessGate_DriverIsParticipant(t *testing.T) {
	f, gate := newGateFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)

	ok, err := gate.IsParticipant(context.Background(), ride.ID, "driver-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAccessGate_StrangerIsNot(t *testing.T) {
	f, gate := newGateFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)

	ok, err := gate.IsParticipant(context.Background(), ride.ID, "stranger")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccessGate_PendingRequesterIsNot(t *testing.T) {
	f, gate := newGateFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	f.mustSubmit(t, ride.ID, "passenger-1", 1)

	ok, err := gate.IsParticipant(context.Background(), ride.ID, "passenger-1")
	require.NoError(t, err)
	assert.False(t, ok, "a request under review grants nothing")
}

func TestAccessGate_AcceptedRequestGrantsBeforeRosterCatchesUp(t *testing.T) {
	f, gate := newGateFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)
	req := f.mustSubmit(t, ride.ID, "passenger-1", 1)
	_, err := f.accept.Execute(context.Background(), AcceptRequestCommand{RequestID: req.ID, DriverID: "driver-1"})
	require.NoError(t, err)

	// The dispatcher has not run, so the roster is still empty. The
	// accepted request alone must admit the passenger.
	ok, err := gate.IsParticipant(context.Background(), ride.ID, "passenger-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAccessGate_ActiveRosterEntryGrants(t *testing.T) {
	f, gate := newGateFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)

	require.NoError(t, f.store.Upsert(context.Background(), &domain.RosterEntry{
		RideID:      ride.ID,
		PassengerID: "passenger-1",
		RequestID:   uuid.NewString(),
		SeatsBooked: 1,
		JoinedAt:    time.Now(),
		Active:      true,
	}))

	ok, err := gate.IsParticipant(context.Background(), ride.ID, "passenger-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAccessGate_MissingRide(t *testing.T) {
	_, gate := newGateFixture(t)

	_, err := gate.IsParticipant(context.Background(), "no-such-ride", "anyone")
	assert.ErrorIs(t, err, domain.ErrRideNotFound)

	_, err = gate.Roster(context.Background(), "no-such-ride")
	assert.ErrorIs(t, err, domain.ErrRideNotFound)
}

func TestAccessGate_RosterListsConfirmedPassengers(t *testing.T) {
	f, gate := newGateFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)

	entries, err := gate.Roster(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, f.store.Upsert(context.Background(), &domain.RosterEntry{
		RideID:      ride.ID,
		PassengerID: "passenger-1",
		RequestID:   uuid.NewString(),
		SeatsBooked: 2,
		JoinedAt:    time.Now(),
		Active:      true,
	}))

	entries, err = gate.Roster(context.Background(), ride.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].SeatsBooked)
}
