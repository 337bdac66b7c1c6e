package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"carpool/internal/booking/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresNotificationRepository implements domain.NotificationRepository
type PostgresNotificationRepository struct {
	db *pgxpool.Pool
}

// NewPostgresNotificationRepository creates a new PostgreSQL notification repository
func NewPostgresNotificationRepository(db *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{
		db: db,
	}
}

// Insert stores a notification. The ID is the originating effect's ID, so a
// re-dispatched effect inserts nothing the second time.
func (r *PostgresNotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO notifications (
			id, user_id, type, title, message, data, read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (id) DO NOTHING
	`,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		data,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

// ListByUser retrieves a user's notifications, newest first
func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, title, message, data, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var (
			n    domain.Notification
			data []byte
		)

		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("unmarshal notification data: %w", err)
			}
		}

		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead flags one of the user's notifications as read
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, notificationID, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	return nil
}

// MarkAllRead flags all of the user's notifications as read
func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE
		WHERE user_id = $1 AND read = FALSE
	`, userID)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}

	return nil
}
