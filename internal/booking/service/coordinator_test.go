package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRideCoordinator_SerializesSameRide(t *testing.T) {
	c := NewRideCoordinator(5*time.Second, logger.NewLogger("test"))

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.WithRide(context.Background(), "ride-1", func(ctx context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "two sections on one ride must never overlap")
}

func TestRideCoordinator_ConcurrentAcceptsNeverOverbook(t *testing.T) {
	f := newFixture(t)
	ride := f.mustCreateRide(t, "driver-1", 3, false)

	requestIDs := make([]string, 6)
	for i := range requestIDs {
		req := f.mustSubmit(t, ride.ID, "passenger-"+string(rune('a'+i)), 1)
		requestIDs[i] = req.ID
	}

	// drive all six accepts through the section at once
	var wg sync.WaitGroup
	results := make([]error, len(requestIDs))
	for i, id := range requestIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, err := f.accept.Execute(context.Background(), AcceptRequestCommand{
				RequestID: id,
				DriverID:  "driver-1",
			})
			results[i] = err
		}(i, id)
	}
	wg.Wait()

	accepted, refused := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			accepted++
		default:
			assert.ErrorIs(t, err, domain.ErrInsufficientSeats)
			refused++
		}
	}
	assert.Equal(t, 3, accepted, "exactly the capacity may win")
	assert.Equal(t, 3, refused)
	assert.Equal(t, 0, f.rideSeats(t, ride.ID))
}

func TestRideCoordinator_IndependentRidesRunInParallel(t *testing.T) {
	c := NewRideCoordinator(50*time.Millisecond, logger.NewLogger("test"))

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = c.WithRide(context.Background(), "ride-1", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	// ride-2 is untouched by ride-1's long section
	err := c.WithRide(context.Background(), "ride-2", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRideCoordinator_BoundedWait(t *testing.T) {
	c := NewRideCoordinator(20*time.Millisecond, logger.NewLogger("test"))

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = c.WithRide(context.Background(), "ride-1", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	start := time.Now()
	err := c.WithRide(context.Background(), "ride-1", func(ctx context.Context) error {
		t.Fatal("section body must not run when the wait expires")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBusy)
	assert.Less(t, time.Since(start), time.Second)
}
