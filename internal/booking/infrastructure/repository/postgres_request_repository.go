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

// PostgresRequestRepository implements domain.RequestRepository
type PostgresRequestRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRequestRepository creates a new PostgreSQL request repository
func NewPostgresRequestRepository(db *pgxpool.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{
		db: db,
	}
}

const requestColumns = `
	id, ride_id, passenger_id, seats_requested, status,
	COALESCE(message, ''), COALESCE(response_note, ''),
	created_at, responded_at
`

// Save persists a new request
func (r *PostgresRequestRepository) Save(ctx context.Context, request *domain.JoinRequest) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO join_requests (
			id, ride_id, passenger_id, seats_requested, status,
			message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		request.ID(),
		request.RideID(),
		request.PassengerID(),
		request.SeatsRequested(),
		request.Status().String(),
		request.Message(),
		request.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	return nil
}

// FindByID retrieves a request by its ID
func (r *PostgresRequestRepository) FindByID(ctx context.Context, requestID string) (*domain.JoinRequest, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM join_requests
		WHERE id = $1
	`, requestID)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("query request: %w", err)
	}

	return request, nil
}

// FindActiveByRideAndPassenger returns the PENDING or ACCEPTED request for
// the pair, or ErrRequestNotFound when none exists
func (r *PostgresRequestRepository) FindActiveByRideAndPassenger(ctx context.Context, rideID, passengerID string) (*domain.JoinRequest, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM join_requests
		WHERE ride_id = $1 AND passenger_id = $2 AND status IN ('PENDING', 'ACCEPTED')
	`, rideID, passengerID)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("query active request: %w", err)
	}

	return request, nil
}

// FindByRide retrieves all requests for a ride (driver view), oldest first
func (r *PostgresRequestRepository) FindByRide(ctx context.Context, rideID string) ([]*domain.JoinRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM join_requests
		WHERE ride_id = $1
		ORDER BY created_at ASC
	`, rideID)
	if err != nil {
		return nil, fmt.Errorf("query requests by ride: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// FindByPassenger retrieves a passenger's requests, newest first
func (r *PostgresRequestRepository) FindByPassenger(ctx context.Context, passengerID string) ([]*domain.JoinRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM join_requests
		WHERE passenger_id = $1
		ORDER BY created_at DESC
	`, passengerID)
	if err != nil {
		return nil, fmt.Errorf("query requests by passenger: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// FindAcceptedByRide retrieves the accepted requests for a ride
func (r *PostgresRequestRepository) FindAcceptedByRide(ctx context.Context, rideID string) ([]*domain.JoinRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM join_requests
		WHERE ride_id = $1 AND status = 'ACCEPTED'
		ORDER BY created_at ASC
	`, rideID)
	if err != nil {
		return nil, fmt.Errorf("query accepted requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

func scanRequest(row pgx.Row) (*domain.JoinRequest, error) {
	var (
		id             string
		rideID         string
		passengerID    string
		seatsRequested int
		status         string
		message        string
		responseNote   string
		createdAt      time.Time
		respondedAt    *time.Time
	)

	err := row.Scan(
		&id, &rideID, &passengerID, &seatsRequested, &status,
		&message, &responseNote, &createdAt, &respondedAt,
	)
	if err != nil {
		return nil, err
	}

	return domain.ReconstructJoinRequest(
		id,
		rideID,
		passengerID,
		seatsRequested,
		domain.RequestStatus(status),
		message,
		responseNote,
		createdAt,
		respondedAt,
	), nil
}

func collectRequests(rows pgx.Rows) ([]*domain.JoinRequest, error) {
	var requests []*domain.JoinRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}

	return requests, nil
}
