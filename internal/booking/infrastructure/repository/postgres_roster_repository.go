package repository

import (
	"context"
	"fmt"

	"carpool/internal/booking/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRosterRepository implements domain.RosterRepository. The roster is
// a materialized view of accepted requests, written only by the effects
// dispatcher; both writes are idempotent so a re-applied effect is harmless.
type PostgresRosterRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRosterRepository creates a new PostgreSQL roster repository
func NewPostgresRosterRepository(db *pgxpool.Pool) *PostgresRosterRepository {
	return &PostgresRosterRepository{
		db: db,
	}
}

// Upsert inserts or refreshes the entry for (ride, request)
func (r *PostgresRosterRepository) Upsert(ctx context.Context, entry *domain.RosterEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ride_roster (
			ride_id, request_id, passenger_id, seats_booked, joined_at, active
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ride_id, request_id) DO UPDATE
		SET
			seats_booked = EXCLUDED.seats_booked,
			active = EXCLUDED.active
	`,
		entry.RideID,
		entry.RequestID,
		entry.PassengerID,
		entry.SeatsBooked,
		entry.JoinedAt,
		entry.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert roster entry: %w", err)
	}

	return nil
}

// Deactivate flags the entry for (ride, request) inactive. Deactivating a
// missing or already-inactive entry is a no-op.
func (r *PostgresRosterRepository) Deactivate(ctx context.Context, rideID, requestID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE ride_roster
		SET active = FALSE
		WHERE ride_id = $1 AND request_id = $2
	`, rideID, requestID)
	if err != nil {
		return fmt.Errorf("deactivate roster entry: %w", err)
	}

	return nil
}

// FindActiveByRide retrieves the active roster of a ride, oldest join first
func (r *PostgresRosterRepository) FindActiveByRide(ctx context.Context, rideID string) ([]*domain.RosterEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ride_id, request_id, passenger_id, seats_booked, joined_at, active
		FROM ride_roster
		WHERE ride_id = $1 AND active = TRUE
		ORDER BY joined_at ASC
	`, rideID)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	var entries []*domain.RosterEntry
	for rows.Next() {
		entry := &domain.RosterEntry{}
		err := rows.Scan(
			&entry.RideID,
			&entry.RequestID,
			&entry.PassengerID,
			&entry.SeatsBooked,
			&entry.JoinedAt,
			&entry.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}

	return entries, nil
}

// HasActiveEntry reports whether the passenger holds a confirmed seat
func (r *PostgresRosterRepository) HasActiveEntry(ctx context.Context, rideID, passengerID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ride_roster
			WHERE ride_id = $1 AND passenger_id = $2 AND active = TRUE
		)
	`, rideID, passengerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query roster membership: %w", err)
	}

	return exists, nil
}
