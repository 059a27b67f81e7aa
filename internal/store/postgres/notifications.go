package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/store"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) InsertNotification(ctx context.Context, n *models.Notification) (int64, error) {
	if err := n.Validate(); err != nil {
		return 0, fmt.Errorf("invalid notification: %w", err)
	}
	if n.PublicID == uuid.Nil {
		n.PublicID = uuid.New()
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO notifications (public_id, user_id, email_id, type, message, created_at, is_read)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		n.PublicID, n.UserID, n.EmailID, n.Type, n.Message, n.Timestamp, n.Read,
	).Scan(&n.ID)
	if err != nil {
		return 0, translateErr(err)
	}
	return n.ID, nil
}

func (s *NotificationStore) ListNotificationsByUserID(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.id, n.public_id, n.user_id, n.email_id, e.public_id, n.type, n.message, n.created_at, n.is_read
		 FROM notifications n
		 JOIN emails e ON e.id = n.email_id
		 WHERE n.user_id = $1
		 ORDER BY n.created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.PublicID, &n.UserID, &n.EmailID, &n.EmailPublicID, &n.Type, &n.Message, &n.Timestamp, &n.Read); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *NotificationStore) MarkNotificationRead(ctx context.Context, userID int64, publicID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE public_id = $1 AND user_id = $2`,
		publicID, userID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
