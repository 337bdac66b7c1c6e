package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carpool/internal/booking/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresEffectRepository implements domain.EffectRepository over the
// booking_effects outbox table
type PostgresEffectRepository struct {
	db *pgxpool.Pool
}

// NewPostgresEffectRepository creates a new PostgreSQL effect repository
func NewPostgresEffectRepository(db *pgxpool.Pool) *PostgresEffectRepository {
	return &PostgresEffectRepository{
		db: db,
	}
}

// FindPending retrieves up to limit unapplied effects, oldest first
func (r *PostgresEffectRepository) FindPending(ctx context.Context, limit int) ([]*domain.Effect, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			id, request_id, ride_id, kind, user_id, seats,
			COALESCE(title, ''), COALESCE(message, ''), payload,
			status, attempts, created_at, applied_at
		FROM booking_effects
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending effects: %w", err)
	}
	defer rows.Close()

	var effects []*domain.Effect
	for rows.Next() {
		var (
			effect  domain.Effect
			kind    string
			status  string
			payload []byte
			applied *time.Time
		)

		err := rows.Scan(
			&effect.ID, &effect.RequestID, &effect.RideID, &kind,
			&effect.UserID, &effect.Seats, &effect.Title, &effect.Message,
			&payload, &status, &effect.Attempts, &effect.CreatedAt, &applied,
		)
		if err != nil {
			return nil, fmt.Errorf("scan effect: %w", err)
		}

		effect.Kind = domain.EffectKind(kind)
		effect.Status = domain.EffectStatus(status)
		effect.AppliedAt = applied
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &effect.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal effect payload: %w", err)
			}
		}

		effects = append(effects, &effect)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate effects: %w", err)
	}

	return effects, nil
}

// MarkApplied finalizes an effect; a second call is a no-op
func (r *PostgresEffectRepository) MarkApplied(ctx context.Context, effectID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE booking_effects
		SET status = 'APPLIED', applied_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`, effectID)
	if err != nil {
		return fmt.Errorf("mark effect applied: %w", err)
	}

	return nil
}

// RecordAttempt bumps the attempt counter of a still-pending effect
func (r *PostgresEffectRepository) RecordAttempt(ctx context.Context, effectID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE booking_effects
		SET attempts = attempts + 1
		WHERE id = $1 AND status = 'PENDING'
	`, effectID)
	if err != nil {
		return fmt.Errorf("record effect attempt: %w", err)
	}

	return nil
}
