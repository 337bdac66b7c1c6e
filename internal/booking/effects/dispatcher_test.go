package effects

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carpool/internal/booking/domain"
	"carpool/internal/booking/infrastructure/repository"
	"carpool/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSink struct {
	mu   sync.Mutex
	sent []*domain.Notification
	fail bool
}

func (s *stubSink) Notify(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broker unavailable")
	}
	s.sent = append(s.sent, n)
	return nil
}

type stubChat struct {
	joins  []string
	leaves []string
}

func (c *stubChat) Join(ctx context.Context, rideID, userID string) error {
	c.joins = append(c.joins, rideID+"/"+userID)
	return nil
}

func (c *stubChat) Leave(ctx context.Context, rideID, userID string) error {
	c.leaves = append(c.leaves, rideID+"/"+userID)
	return nil
}

type dispatcherFixture struct {
	store *repository.MemoryStore
	sink  *stubSink
	chat  *stubChat
	d     *Dispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	sink := &stubSink{}
	chat := &stubChat{}
	d := NewDispatcher(store, store, store, sink, chat, time.Second, 50, logger.NewLogger("dispatcher-test"))
	return &dispatcherFixture{store: store, sink: sink, chat: chat, d: d}
}

// enqueue commits a request transition carrying the given effects, which is
// the only way effects enter the outbox in production.
func (f *dispatcherFixture) enqueue(t *testing.T, effects ...*domain.Effect) {
	t.Helper()
	request, err := domain.NewJoinRequest(effects[0].RideID, "passenger-1", 1, "")
	require.NoError(t, err)
	require.NoError(t, f.store.CommitTransition(context.Background(), nil, request, effects))
}

func notifyEffect(kind domain.EffectKind, userID, notifType string) *domain.Effect {
	return &domain.Effect{
		ID:        uuid.NewString(),
		RequestID: uuid.NewString(),
		RideID:    "ride-1",
		Kind:      kind,
		UserID:    userID,
		Title:     "New join request",
		Message:   "Someone wants a seat",
		Payload:   map[string]any{"type": notifType},
		Status:    domain.EffectPending,
		CreatedAt: time.Now(),
	}
}

func TestDrainOnce_AppliesNotifyEffect(t *testing.T) {
	f := newDispatcherFixture(t)
	effect := notifyEffect(domain.EffectNotifyDriver, "driver-1", domain.NotifyRideRequest)
	f.enqueue(t, effect)

	applied, err := f.d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	notifications, err := f.store.ListByUser(context.Background(), "driver-1")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, effect.ID, notifications[0].ID)
	assert.Equal(t, domain.NotifyRideRequest, notifications[0].Type)
	assert.False(t, notifications[0].Read)

	require.Len(t, f.sink.sent, 1)

	// nothing left to drain
	applied, err = f.d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestDrainOnce_MaterializesRoster(t *testing.T) {
	f := newDispatcherFixture(t)
	requestID := uuid.NewString()
	f.enqueue(t, &domain.Effect{
		ID:        uuid.NewString(),
		RequestID: requestID,
		RideID:    "ride-1",
		Kind:      domain.EffectRosterUpsert,
		UserID:    "passenger-1",
		Seats:     2,
		Status:    domain.EffectPending,
		CreatedAt: time.Now(),
	})

	_, err := f.d.DrainOnce(context.Background())
	require.NoError(t, err)

	roster, err := f.store.FindActiveByRide(context.Background(), "ride-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "passenger-1", roster[0].PassengerID)
	assert.Equal(t, 2, roster[0].SeatsBooked)

	// the matching remove flips the entry inactive
	f.enqueue(t, &domain.Effect{
		ID:        uuid.NewString(),
		RequestID: requestID,
		RideID:    "ride-1",
		Kind:      domain.EffectRosterRemove,
		UserID:    "passenger-1",
		Status:    domain.EffectPending,
		CreatedAt: time.Now(),
	})
	_, err = f.d.DrainOnce(context.Background())
	require.NoError(t, err)

	roster, err = f.store.FindActiveByRide(context.Background(), "ride-1")
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestDrainOnce_SeedsChatMembership(t *testing.T) {
	f := newDispatcherFixture(t)
	f.enqueue(t,
		&domain.Effect{
			ID: uuid.NewString(), RequestID: uuid.NewString(), RideID: "ride-1",
			Kind: domain.EffectChatJoin, UserID: "passenger-1",
			Status: domain.EffectPending, CreatedAt: time.Now(),
		},
		&domain.Effect{
			ID: uuid.NewString(), RequestID: uuid.NewString(), RideID: "ride-1",
			Kind: domain.EffectChatLeave, UserID: "passenger-2",
			Status: domain.EffectPending, CreatedAt: time.Now(),
		},
	)

	applied, err := f.d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, []string{"ride-1/passenger-1"}, f.chat.joins)
	assert.Equal(t, []string{"ride-1/passenger-2"}, f.chat.leaves)
}

func TestDrainOnce_FailingEffectStaysPending(t *testing.T) {
	f := newDispatcherFixture(t)
	f.sink.fail = true
	effect := notifyEffect(domain.EffectNotifyPassenger, "passenger-1", domain.NotifyRequestAccepted)
	f.enqueue(t, effect)

	applied, err := f.d.DrainOnce(context.Background())
	require.NoError(t, err, "one bad effect must not fail the drain")
	assert.Zero(t, applied)

	pending, err := f.store.FindPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)

	// recovery: the next drain applies it
	f.sink.fail = false
	applied, err = f.d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	notifications, err := f.store.ListByUser(context.Background(), "passenger-1")
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestDrainOnce_RedeliveryIsIdempotent(t *testing.T) {
	f := newDispatcherFixture(t)
	effect := notifyEffect(domain.EffectNotifyDriver, "driver-1", domain.NotifyRideRequest)
	f.enqueue(t, effect)

	_, err := f.d.DrainOnce(context.Background())
	require.NoError(t, err)

	// At-least-once delivery: the same effect record lands in the outbox
	// again. The notification keyed by the effect ID must not duplicate.
	f.enqueue(t, effect)
	_, err = f.d.DrainOnce(context.Background())
	require.NoError(t, err)

	notifications, err := f.store.ListByUser(context.Background(), "driver-1")
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
	assert.GreaterOrEqual(t, len(f.sink.sent), 2, "the sink relay runs per delivery")
}

func TestDrainOnce_UnknownKindIsParked(t *testing.T) {
	f := newDispatcherFixture(t)
	f.enqueue(t, &domain.Effect{
		ID: uuid.NewString(), RequestID: uuid.NewString(), RideID: "ride-1",
		Kind: domain.EffectKind("promote_to_copilot"), UserID: "passenger-1",
		Status: domain.EffectPending, CreatedAt: time.Now(),
	})

	applied, err := f.d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	pending, err := f.store.FindPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
