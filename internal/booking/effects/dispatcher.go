// Package effects applies the durable side effects of committed booking
// transitions: roster materialization, notification records, chat access
// seeding. Effects are queued in the same commit as the transition and
// drained here at-least-once; application is idempotent, so a crash between
// commit and dispatch costs a retry, never a lost or doubled effect.
package effects

import (
	"context"
	"fmt"
	"time"

	"carpool/internal/booking/domain"
	"carpool/pkg/logger"
)

// NotificationSink accepts fire-and-forget notification enqueues (push
// relay, live socket fan-out). Failures are retried with the effect.
type NotificationSink interface {
	Notify(ctx context.Context, n *domain.Notification) error
}

// ChatSeeder grants and revokes a passenger's access to a ride's message
// stream.
type ChatSeeder interface {
	Join(ctx context.Context, rideID, userID string) error
	Leave(ctx context.Context, rideID, userID string) error
}

// Dispatcher drains the effect outbox.
type Dispatcher struct {
	effectRepo domain.EffectRepository
	rosterRepo domain.RosterRepository
	notifRepo  domain.NotificationRepository
	sink       NotificationSink
	chat       ChatSeeder
	logger     logger.Logger

	pollInterval time.Duration
	batchSize    int
}

func NewDispatcher(
	effectRepo domain.EffectRepository,
	rosterRepo domain.RosterRepository,
	notifRepo domain.NotificationRepository,
	sink NotificationSink,
	chat ChatSeeder,
	pollInterval time.Duration,
	batchSize int,
	logger logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		effectRepo:   effectRepo,
		rosterRepo:   rosterRepo,
		notifRepo:    notifRepo,
		sink:         sink,
		chat:         chat,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Run drains the outbox until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx); err != nil {
				d.logger.Error("effect_drain_failed", err)
			}
		}
	}
}

// DrainOnce picks up one batch of pending effects and applies them.
// Returns how many were applied. A failing effect is left pending with its
// attempt counter bumped; it never blocks the rest of the batch.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	pending, err := d.effectRepo.FindPending(ctx, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending effects: %w", err)
	}

	applied := 0
	for _, effect := range pending {
		if err := d.apply(ctx, effect); err != nil {
			d.logger.WithFields(logger.LogFields{
				"effect_id":  effect.ID,
				"kind":       string(effect.Kind),
				"request_id": effect.RequestID,
				"attempts":   effect.Attempts,
			}).Error("effect_apply_failed", err)
			if err := d.effectRepo.RecordAttempt(ctx, effect.ID); err != nil {
				d.logger.Error("effect_record_attempt_failed", err)
			}
			continue
		}
		if err := d.effectRepo.MarkApplied(ctx, effect.ID); err != nil {
			// The effect was applied; next drain re-applies it as a no-op
			// and marks it again.
			d.logger.Error("effect_mark_applied_failed", err)
			continue
		}
		applied++
	}
	return applied, nil
}

func (d *Dispatcher) apply(ctx context.Context, e *domain.Effect) error {
	switch e.Kind {
	case domain.EffectNotifyPassenger, domain.EffectNotifyDriver:
		n := &domain.Notification{
			// The effect ID doubles as the notification ID, which is what
			// makes a re-applied notify effect a no-op.
			ID:        e.ID,
			UserID:    e.UserID,
			Type:      e.NotificationType(),
			Title:     e.Title,
			Message:   e.Message,
			Data:      e.Payload,
			CreatedAt: e.CreatedAt,
		}
		if err := d.notifRepo.Insert(ctx, n); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		if err := d.sink.Notify(ctx, n); err != nil {
			return fmt.Errorf("notify sink: %w", err)
		}
		return nil

	case domain.EffectRosterUpsert:
		entry := &domain.RosterEntry{
			RideID:      e.RideID,
			PassengerID: e.UserID,
			RequestID:   e.RequestID,
			SeatsBooked: e.Seats,
			JoinedAt:    e.CreatedAt,
			Active:      true,
		}
		return d.rosterRepo.Upsert(ctx, entry)

	case domain.EffectRosterRemove:
		return d.rosterRepo.Deactivate(ctx, e.RideID, e.RequestID)

	case domain.EffectChatJoin:
		return d.chat.Join(ctx, e.RideID, e.UserID)

	case domain.EffectChatLeave:
		return d.chat.Leave(ctx, e.RideID, e.UserID)

	default:
		// Unknown kinds are a deploy-ordering bug; park them as applied so
		// they stop clogging the queue, loudly.
		d.logger.WithFields(logger.LogFields{"effect_id": e.ID}).Error("effect_unknown_kind", fmt.Errorf("unknown effect kind %q", e.Kind))
		return nil
	}
}
