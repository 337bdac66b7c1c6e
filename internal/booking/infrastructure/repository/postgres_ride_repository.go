package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carpool/internal/booking/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRideRepository implements domain.RideRepository
type PostgresRideRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRideRepository creates a new PostgreSQL ride repository
func NewPostgresRideRepository(db *pgxpool.Pool) *PostgresRideRepository {
	return &PostgresRideRepository{
		db: db,
	}
}

const rideColumns = `
	id, creator_id, from_location, to_location, departure_at,
	total_seats, available_seats, price_per_seat, status,
	instant_booking, chat_enabled, COALESCE(cancel_reason, ''),
	created_at, closed_at
`

// Save persists a new ride
func (r *PostgresRideRepository) Save(ctx context.Context, ride *domain.Ride) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO rides (
			id, creator_id, from_location, to_location, departure_at,
			total_seats, available_seats, price_per_seat, status,
			instant_booking, chat_enabled, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		ride.ID(),
		ride.CreatorID(),
		ride.FromLocation(),
		ride.ToLocation(),
		ride.DepartureAt(),
		ride.TotalSeats(),
		ride.AvailableSeats(),
		ride.PricePerSeat(),
		ride.Status().String(),
		ride.InstantBooking(),
		ride.ChatEnabled(),
		ride.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}

	return nil
}

// Update persists capacity and status changes of an existing ride
func (r *PostgresRideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	tag, err := r.db.Exec(ctx, `
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

// FindByID retrieves a ride by its ID
func (r *PostgresRideRepository) FindByID(ctx context.Context, rideID string) (*domain.Ride, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE id = $1
	`, rideID)

	ride, err := scanRide(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRideNotFound
		}
		return nil, fmt.Errorf("query ride: %w", err)
	}

	return ride, nil
}

// FindActive retrieves rides still open for booking, soonest departure first
func (r *PostgresRideRepository) FindActive(ctx context.Context) ([]*domain.Ride, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE status = 'ACTIVE'
		ORDER BY departure_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query active rides: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

// FindByCreator retrieves a driver's rides, newest first
func (r *PostgresRideRepository) FindByCreator(ctx context.Context, creatorID string) ([]*domain.Ride, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE creator_id = $1
		ORDER BY created_at DESC
	`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("query rides by creator: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

// Delete removes a ride; callers must check the accepted-passenger guard first
func (r *PostgresRideRepository) Delete(ctx context.Context, rideID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rides WHERE id = $1`, rideID)
	if err != nil {
		return fmt.Errorf("delete ride: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRideNotFound
	}

	return nil
}

func scanRide(row pgx.Row) (*domain.Ride, error) {
	var (
		id             string
		creatorID      string
		fromLocation   string
		toLocation     string
		departureAt    time.Time
		totalSeats     int
		availableSeats int
		pricePerSeat   float64
		status         string
		instantBooking bool
		chatEnabled    bool
		cancelReason   string
		createdAt      time.Time
		closedAt       *time.Time
	)

	err := row.Scan(
		&id, &creatorID, &fromLocation, &toLocation, &departureAt,
		&totalSeats, &availableSeats, &pricePerSeat, &status,
		&instantBooking, &chatEnabled, &cancelReason,
		&createdAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}

	return domain.ReconstructRide(
		id,
		creatorID,
		fromLocation,
		toLocation,
		departureAt,
		totalSeats,
		availableSeats,
		pricePerSeat,
		domain.RideStatus(status),
		instantBooking,
		chatEnabled,
		cancelReason,
		createdAt,
		closedAt,
	), nil
}

func collectRides(rows pgx.Rows) ([]*domain.Ride, error) {
	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rides: %w", err)
	}

	return rides, nil
}
