package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"carpool/internal/booking/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTransitionStore implements domain.TransitionStore. Every booking
// transition goes through here: the ride's capacity row, the request's
// lifecycle row and the queued effects land in one transaction, so readers
// never observe a debited seat without its accepted request, or a committed
// transition without its effects.
type PostgresTransitionStore struct {
	db *pgxpool.Pool
}

// NewPostgresTransitionStore creates a new PostgreSQL transition store
func NewPostgresTransitionStore(db *pgxpool.Pool) *PostgresTransitionStore {
	return &PostgresTransitionStore{
		db: db,
	}
}

// CommitTransition commits one request transition. A nil ride means the
// transition did not touch capacity.
func (s *PostgresTransitionStore) CommitTransition(ctx context.Context, ride *domain.Ride, request *domain.JoinRequest, effects []*domain.Effect) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if ride != nil {
		if err := updateRide(ctx, tx, ride); err != nil {
			return err
		}
	}

	if err := upsertRequest(ctx, tx, request); err != nil {
		return err
	}

	if err := insertEffects(ctx, tx, effects); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CommitRideCancel closes the ride and cancels every active request on it in
// the same write
func (s *PostgresTransitionStore) CommitRideCancel(ctx context.Context, ride *domain.Ride, requests []*domain.JoinRequest, effects []*domain.Effect) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateRide(ctx, tx, ride); err != nil {
		return err
	}

	for _, request := range requests {
		if err := upsertRequest(ctx, tx, request); err != nil {
			return err
		}
	}

	if err := insertEffects(ctx, tx, effects); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func updateRide(ctx context.Context, tx pgx.Tx, ride *domain.Ride) error {
	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET
			available_seats = $1,
			status = $2,
			cancel_reason = $3,
			closed_at = $4,
			updated_at = NOW()
		WHERE id = $5
	`,
		ride.AvailableSeats(),
		ride.Status().String(),
		ride.CancelReason(),
		ride.ClosedAt(),
		ride.ID(),
	)
	if err != nil {
		return fmt.Errorf("update ride: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRideNotFound
	}

	return nil
}

func upsertRequest(ctx context.Context, tx pgx.Tx, request *domain.JoinRequest) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO join_requests (
			id, ride_id, passenger_id, seats_requested, status,
			message, response_note, created_at, responded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET
			status = EXCLUDED.status,
			response_note = EXCLUDED.response_note,
			responded_at = EXCLUDED.responded_at
	`,
		request.ID(),
		request.RideID(),
		request.PassengerID(),
		request.SeatsRequested(),
		request.Status().String(),
		request.Message(),
		request.ResponseNote(),
		request.CreatedAt(),
		request.RespondedAt(),
	)
	if err != nil {
		return fmt.Errorf("upsert request: %w", err)
	}

	return nil
}

func insertEffects(ctx context.Context, tx pgx.Tx, effects []*domain.Effect) error {
	for _, effect := range effects {
		payload, err := json.Marshal(effect.Payload)
		if err != nil {
			return fmt.Errorf("marshal effect payload: %w", err)
		}

		// A pending effect with the same kind and notification type for
		// the same request is the same logical effect queued twice; drop
		// the duplicate. Differing types never collapse: a withdrawal
		// notice must survive an undrained submit notice.
		_, err = tx.Exec(ctx, `
			INSERT INTO booking_effects (
				id, request_id, ride_id, kind, user_id, seats,
				title, message, payload, status, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (request_id, kind, (COALESCE(payload->>'type', ''))) WHERE status = 'PENDING' DO NOTHING
		`,
			effect.ID,
			effect.RequestID,
			effect.RideID,
			string(effect.Kind),
			effect.UserID,
			effect.Seats,
			effect.Title,
			effect.Message,
			payload,
			string(effect.Status),
			effect.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert effect: %w", err)
		}
	}

	return nil
}
