package repository

import (
	"context"
	"sort"
	"sync"

	"carpool/internal/booking/domain"
)

// MemoryStore is an in-memory implementation of every persistence port.
// It backs unit tests and local runs without Postgres. Entities are stored
// as snapshots, so mutations on a loaded aggregate are invisible until a
// commit writes them back, same as with the SQL store.
type MemoryStore struct {
	mu            sync.RWMutex
	rides         map[string]*domain.Ride
	requests      map[string]*domain.JoinRequest
	roster        map[string]*domain.RosterEntry
	effects       map[string]*domain.Effect
	effectOrder   []string
	notifications map[string]*domain.Notification
	notifOrder    []string
}

var (
	_ domain.RideRepository         = (*MemoryStore)(nil)
	_ domain.RequestRepository      = memoryRequestRepo{}
	_ domain.TransitionStore        = (*MemoryStore)(nil)
	_ domain.RosterRepository       = (*MemoryStore)(nil)
	_ domain.EffectRepository       = (*MemoryStore)(nil)
	_ domain.NotificationRepository = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:         make(map[string]*domain.Ride),
		requests:      make(map[string]*domain.JoinRequest),
		roster:        make(map[string]*domain.RosterEntry),
		effects:       make(map[string]*domain.Effect),
		notifications: make(map[string]*domain.Notification),
	}
}

func copyRide(r *domain.Ride) *domain.Ride {
	return domain.ReconstructRide(
		r.ID(), r.CreatorID(), r.FromLocation(), r.ToLocation(), r.DepartureAt(),
		r.TotalSeats(), r.AvailableSeats(), r.PricePerSeat(), r.Status(),
		r.InstantBooking(), r.ChatEnabled(), r.CancelReason(), r.CreatedAt(), r.ClosedAt(),
	)
}

func copyRequest(r *domain.JoinRequest) *domain.JoinRequest {
	return domain.ReconstructJoinRequest(
		r.ID(), r.RideID(), r.PassengerID(), r.SeatsRequested(), r.Status(),
		r.Message(), r.ResponseNote(), r.CreatedAt(), r.RespondedAt(),
	)
}

func copyEffect(e *domain.Effect) *domain.Effect {
	c := *e
	if e.Payload != nil {
		c.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			c.Payload[k] = v
		}
	}
	return &c
}

func rosterKey(rideID, requestID string) string {
	return rideID + "/" + requestID
}

// --- domain.RideRepository ---

func (s *MemoryStore) Save(ctx context.Context, ride *domain.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides[ride.ID()] = copyRide(ride)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, ride *domain.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rides[ride.ID()]; !ok {
		return domain.ErrRideNotFound
	}
	s.rides[ride.ID()] = copyRide(ride)
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, rideID string) (*domain.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ride, ok := s.rides[rideID]
	if !ok {
		return nil, domain.ErrRideNotFound
	}
	return copyRide(ride), nil
}

func (s *MemoryStore) FindActive(ctx context.Context) ([]*domain.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rides []*domain.Ride
	for _, ride := range s.rides {
		if ride.Status() == domain.RideActive {
			rides = append(rides, copyRide(ride))
		}
	}
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].DepartureAt().Before(rides[j].DepartureAt())
	})
	return rides, nil
}

func (s *MemoryStore) FindByCreator(ctx context.Context, creatorID string) ([]*domain.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rides []*domain.Ride
	for _, ride := range s.rides {
		if ride.CreatorID() == creatorID {
			rides = append(rides, copyRide(ride))
		}
	}
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].CreatedAt().After(rides[j].CreatedAt())
	})
	return rides, nil
}

func (s *MemoryStore) Delete(ctx context.Context, rideID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rides[rideID]; !ok {
		return domain.ErrRideNotFound
	}
	delete(s.rides, rideID)
	return nil
}

// --- domain.RequestRepository ---

// Requests returns the store's request repository view. A separate view is
// needed because Save and FindByID on the store itself belong to the ride
// repository.
func (s *MemoryStore) Requests() domain.RequestRepository {
	return memoryRequestRepo{s}
}

type memoryRequestRepo struct {
	s *MemoryStore
}

func (r memoryRequestRepo) Save(ctx context.Context, request *domain.JoinRequest) error {
	return r.s.SaveRequest(ctx, request)
}

func (r memoryRequestRepo) FindByID(ctx context.Context, requestID string) (*domain.JoinRequest, error) {
	return r.s.FindRequestByID(ctx, requestID)
}

func (r memoryRequestRepo) FindActiveByRideAndPassenger(ctx context.Context, rideID, passengerID string) (*domain.JoinRequest, error) {
	return r.s.FindActiveByRideAndPassenger(ctx, rideID, passengerID)
}

func (r memoryRequestRepo) FindByRide(ctx context.Context, rideID string) ([]*domain.JoinRequest, error) {
	return r.s.FindByRide(ctx, rideID)
}

func (r memoryRequestRepo) FindByPassenger(ctx context.Context, passengerID string) ([]*domain.JoinRequest, error) {
	return r.s.FindByPassenger(ctx, passengerID)
}

func (r memoryRequestRepo) FindAcceptedByRide(ctx context.Context, rideID string) ([]*domain.JoinRequest, error) {
	return r.s.FindAcceptedByRide(ctx, rideID)
}

func (s *MemoryStore) SaveRequest(ctx context.Context, request *domain.JoinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.ID()] = copyRequest(request)
	return nil
}

func (s *MemoryStore) FindRequestByID(ctx context.Context, requestID string) (*domain.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return copyRequest(request), nil
}

func (s *MemoryStore) FindActiveByRideAndPassenger(ctx context.Context, rideID, passengerID string) (*domain.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, request := range s.requests {
		if request.RideID() == rideID && request.PassengerID() == passengerID && request.IsActive() {
			return copyRequest(request), nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

func (s *MemoryStore) FindByRide(ctx context.Context, rideID string) ([]*domain.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var requests []*domain.JoinRequest
	for _, request := range s.requests {
		if request.RideID() == rideID {
			requests = append(requests, copyRequest(request))
		}
	}
	sortRequestsOldestFirst(requests)
	return requests, nil
}

func (s *MemoryStore) FindByPassenger(ctx context.Context, passengerID string) ([]*domain.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var requests []*domain.JoinRequest
	for _, request := range s.requests {
		if request.PassengerID() == passengerID {
			requests = append(requests, copyRequest(request))
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt().After(requests[j].CreatedAt())
	})
	return requests, nil
}

func (s *MemoryStore) FindAcceptedByRide(ctx context.Context, rideID string) ([]*domain.JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var requests []*domain.JoinRequest
	for _, request := range s.requests {
		if request.RideID() == rideID && request.Status() == domain.RequestAccepted {
			requests = append(requests, copyRequest(request))
		}
	}
	sortRequestsOldestFirst(requests)
	return requests, nil
}

func sortRequestsOldestFirst(requests []*domain.JoinRequest) {
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt().Before(requests[j].CreatedAt())
	})
}

// --- domain.TransitionStore ---

func (s *MemoryStore) CommitTransition(ctx context.Context, ride *domain.Ride, request *domain.JoinRequest, effects []*domain.Effect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ride != nil {
		if _, ok := s.rides[ride.ID()]; !ok {
			return domain.ErrRideNotFound
		}
		s.rides[ride.ID()] = copyRide(ride)
	}
	s.requests[request.ID()] = copyRequest(request)
	s.insertEffectsLocked(effects)
	return nil
}

func (s *MemoryStore) CommitRideCancel(ctx context.Context, ride *domain.Ride, requests []*domain.JoinRequest, effects []*domain.Effect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rides[ride.ID()]; !ok {
		return domain.ErrRideNotFound
	}
	s.rides[ride.ID()] = copyRide(ride)
	for _, request := range requests {
		s.requests[request.ID()] = copyRequest(request)
	}
	s.insertEffectsLocked(effects)
	return nil
}

func (s *MemoryStore) insertEffectsLocked(effects []*domain.Effect) {
	for _, effect := range effects {
		duplicate := false
		for _, existing := range s.effects {
			if existing.RequestID == effect.RequestID &&
				existing.Kind == effect.Kind &&
				existing.NotificationType() == effect.NotificationType() &&
				existing.Status == domain.EffectPending {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		s.effects[effect.ID] = copyEffect(effect)
		s.effectOrder = append(s.effectOrder, effect.ID)
	}
}

// --- domain.RosterRepository ---

func (s *MemoryStore) Upsert(ctx context.Context, entry *domain.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *entry
	s.roster[rosterKey(entry.RideID, entry.RequestID)] = &c
	return nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, rideID, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.roster[rosterKey(rideID, requestID)]; ok {
		entry.Active = false
	}
	return nil
}

func (s *MemoryStore) FindActiveByRide(ctx context.Context, rideID string) ([]*domain.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []*domain.RosterEntry
	for _, entry := range s.roster {
		if entry.RideID == rideID && entry.Active {
			c := *entry
			entries = append(entries, &c)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})
	return entries, nil
}

func (s *MemoryStore) HasActiveEntry(ctx context.Context, rideID, passengerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.roster {
		if entry.RideID == rideID && entry.PassengerID == passengerID && entry.Active {
			return true, nil
		}
	}
	return false, nil
}

// --- domain.EffectRepository ---

func (s *MemoryStore) FindPending(ctx context.Context, limit int) ([]*domain.Effect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []*domain.Effect
	for _, id := range s.effectOrder {
		effect := s.effects[id]
		if effect.Status != domain.EffectPending {
			continue
		}
		pending = append(pending, copyEffect(effect))
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *MemoryStore) MarkApplied(ctx context.Context, effectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if effect, ok := s.effects[effectID]; ok && effect.Status == domain.EffectPending {
		effect.Status = domain.EffectApplied
	}
	return nil
}

func (s *MemoryStore) RecordAttempt(ctx context.Context, effectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if effect, ok := s.effects[effectID]; ok && effect.Status == domain.EffectPending {
		effect.Attempts++
	}
	return nil
}

// --- domain.NotificationRepository ---

func (s *MemoryStore) Insert(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return nil
	}
	c := *n
	s.notifications[n.ID] = &c
	s.notifOrder = append(s.notifOrder, n.ID)
	return nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var notifications []*domain.Notification
	for i := len(s.notifOrder) - 1; i >= 0; i-- {
		n := s.notifications[s.notifOrder[i]]
		if n.UserID == userID {
			c := *n
			notifications = append(notifications, &c)
		}
	}
	return notifications, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, notificationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.notifications[notificationID]; ok && n.UserID == userID {
		n.Read = true
	}
	return nil
}

func (s *MemoryStore) MarkAllRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}
