package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/znz-systems/triage/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByPublicID(ctx context.Context, publicID uuid.UUID) (*models.User, error)
	UpdateIMAPCredentials(ctx context.Context, userID int64, imapEmail string, sealedSecret []byte) error
}

// EmailStore is the persistence surface the sync pipeline needs for EmailRecords.
// FindEmailByProviderID returns ErrNotFound when the dedup key is absent, and
// InsertEmail returns ErrDuplicate when the key was inserted concurrently.
type EmailStore interface {
	FindEmailByProviderID(ctx context.Context, userID int64, providerMessageID string) (*models.EmailRecord, error)
	InsertEmail(ctx context.Context, rec *models.EmailRecord) (int64, error)
	ListEmailsByUserID(ctx context.Context, userID int64, limit int) ([]models.EmailRecord, error)
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) (int64, error)
	ListNotificationsByUserID(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID int64, publicID uuid.UUID) error
}
