package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/znz-systems/triage/internal/models"
)

type EmailStore struct {
	db *sql.DB
}

func NewEmailStore(db *sql.DB) *EmailStore {
	return &EmailStore{db: db}
}

const emailColumns = `id, public_id, user_id, provider_message_id, subject, sender, message_date, body, category, confidence, synced_at`

func (s *EmailStore) FindEmailByProviderID(ctx context.Context, userID int64, providerMessageID string) (*models.EmailRecord, error) {
	var e models.EmailRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails
		 WHERE user_id = $1 AND provider_message_id = $2`,
		userID, providerMessageID,
	).Scan(&e.ID, &e.PublicID, &e.UserID, &e.ProviderMessageID, &e.Subject, &e.Sender,
		&e.Date, &e.Body, &e.Category, &e.Confidence, &e.SyncedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &e, nil
}

func (s *EmailStore) InsertEmail(ctx context.Context, rec *models.EmailRecord) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, fmt.Errorf("invalid email record: %w", err)
	}
	if rec.PublicID == uuid.Nil {
		rec.PublicID = uuid.New()
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO emails (public_id, user_id, provider_message_id, subject, sender, message_date, body, category, confidence, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		rec.PublicID, rec.UserID, rec.ProviderMessageID, rec.Subject, rec.Sender,
		rec.Date, rec.Body, string(rec.Category), rec.Confidence, rec.SyncedAt,
	).Scan(&rec.ID)
	if err != nil {
		return 0, translateErr(err)
	}
	return rec.ID, nil
}

func (s *EmailStore) ListEmailsByUserID(ctx context.Context, userID int64, limit int) ([]models.EmailRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails
		 WHERE user_id = $1
		 ORDER BY message_date DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []models.EmailRecord
	for rows.Next() {
		var e models.EmailRecord
		if err := rows.Scan(&e.ID, &e.PublicID, &e.UserID, &e.ProviderMessageID, &e.Subject, &e.Sender,
			&e.Date, &e.Body, &e.Category, &e.Confidence, &e.SyncedAt); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
