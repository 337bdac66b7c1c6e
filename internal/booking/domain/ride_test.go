package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRide(t *testing.T, seats int) *Ride {
	t.Helper()
	ride, err := NewRide("driver-1", "Almaty", "Astana", time.Now().Add(24*time.Hour), seats, 1500, false, true)
	require.NoError(t, err)
	ride.SetID("ride-1")
	return ride
}

func TestNewRide_Validation(t *testing.T) {
	tests := []struct {
		name      string
		creatorID string
		from      string
		to        string
		seats     int
		price     float64
		wantErr   bool
	}{
		{"valid", "driver-1", "A", "B", 3, 1000, false},
		{"missing creator", "", "A", "B", 3, 1000, true},
		{"missing origin", "driver-1", "", "B", 3, 1000, true},
		{"missing destination", "driver-1", "A", "", 3, 1000, true},
		{"zero seats", "driver-1", "A", "B", 0, 1000, true},
		{"negative price", "driver-1", "A", "B", 3, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ride, err := NewRide(tt.creatorID, tt.from, tt.to, time.Now(), tt.seats, tt.price, false, false)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				assert.Nil(t, ride)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.seats, ride.AvailableSeats())
			assert.Equal(t, RideActive, ride.Status())
		})
	}
}

func TestRide_Reserve(t *testing.T) {
	ride := newTestRide(t, 3)

	require.NoError(t, ride.Reserve(2))
	assert.Equal(t, 1, ride.AvailableSeats())

	err := ride.Reserve(2)
	assert.ErrorIs(t, err, ErrInsufficientSeats)
	assert.Equal(t, 1, ride.AvailableSeats(), "failed reserve must not touch the counter")

	require.NoError(t, ride.Reserve(1))
	assert.True(t, ride.IsFull())
}

func TestRide_Reserve_InvalidCount(t *testing.T) {
	ride := newTestRide(t, 3)
	assert.ErrorIs(t, ride.Reserve(0), ErrValidation)
	assert.ErrorIs(t, ride.Reserve(-1), ErrValidation)
}

func TestRide_Reserve_ClosedRide(t *testing.T) {
	ride := newTestRide(t, 3)
	require.NoError(t, ride.Close(RideCancelled, "changed plans"))

	assert.ErrorIs(t, ride.Reserve(1), ErrRideClosed)
}

func TestRide_Release(t *testing.T) {
	ride := newTestRide(t, 3)
	require.NoError(t, ride.Reserve(2))

	require.NoError(t, ride.Release(2))
	assert.Equal(t, 3, ride.AvailableSeats())
}

func TestRide_Release_ClampsAtTotal(t *testing.T) {
	ride := newTestRide(t, 3)
	require.NoError(t, ride.Reserve(1))

	err := ride.Release(5)
	assert.ErrorIs(t, err, ErrSeatInvariant)
	assert.Equal(t, 3, ride.AvailableSeats(), "clamp must repair the counter")
}

func TestRide_Close(t *testing.T) {
	ride := newTestRide(t, 3)

	require.NoError(t, ride.Close(RideCancelled, "weather"))
	assert.Equal(t, RideCancelled, ride.Status())
	assert.Equal(t, "weather", ride.CancelReason())
	assert.NotNil(t, ride.ClosedAt())
	assert.False(t, ride.IsActive())

	// Closing twice is refused.
	assert.ErrorIs(t, ride.Close(RideCompleted, ""), ErrRideClosed)
}

func TestRide_Close_NonTerminalStatus(t *testing.T) {
	ride := newTestRide(t, 3)
	assert.ErrorIs(t, ride.Close(RideActive, ""), ErrValidation)
}

func TestRide_IsFull_OnlyWhileActive(t *testing.T) {
	ride := newTestRide(t, 1)
	require.NoError(t, ride.Reserve(1))
	assert.True(t, ride.IsFull())

	require.NoError(t, ride.Close(RideCompleted, ""))
	assert.False(t, ride.IsFull(), "a closed ride is not 'full', it is closed")
}
