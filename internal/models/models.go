package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxBodyChars caps the stored body of an EmailRecord.
const MaxBodyChars = 1000

// Category is the classifier label attached to an EmailRecord.
type Category string

const (
	CategoryUrgent    Category = "urgent"
	CategoryHR        Category = "hr"
	CategoryFinancial Category = "financial"
	CategoryGeneral   Category = "general"
)

// Categories lists every valid Category in sorted order.
var Categories = []Category{CategoryFinancial, CategoryGeneral, CategoryHR, CategoryUrgent}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryUrgent, CategoryHR, CategoryFinancial, CategoryGeneral:
		return true
	}
	return false
}

// NotificationTypeUrgent is the only notification type the pipeline emits.
const NotificationTypeUrgent = "urgent"

type User struct {
	ID             int64
	PublicID       uuid.UUID
	Username       string
	Email          string
	PasswordHash   string
	IMAPEmail      string
	IMAPSecret     []byte // sealed, see internal/secret
	IMAPConfigured bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type EmailRecord struct {
	ID                int64
	PublicID          uuid.UUID
	UserID            int64
	ProviderMessageID string
	Subject           string
	Sender            string
	Date              time.Time
	Body              string
	Category          Category
	Confidence        float64
	SyncedAt          time.Time
}

type Notification struct {
	ID            int64
	PublicID      uuid.UUID
	UserID        int64
	EmailID       int64
	EmailPublicID uuid.UUID // filled in by reads
	Type          string
	Message       string
	Timestamp     time.Time
	Read          bool
}

var (
	ErrMissingUser       = errors.New("user reference is required")
	ErrMissingProviderID = errors.New("provider message id is required")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidConfidence = errors.New("confidence must be within [0, 1]")
	ErrBodyTooLong       = errors.New("body exceeds maximum length")
	ErrMissingEmail      = errors.New("email reference is required")
)

// Validate checks the invariants an EmailRecord must hold before it is stored.
func (e *EmailRecord) Validate() error {
	if e.UserID <= 0 {
		return ErrMissingUser
	}
	if strings.TrimSpace(e.ProviderMessageID) == "" {
		return ErrMissingProviderID
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	if e.Confidence < 0 || e.Confidence > 1 || e.Confidence != e.Confidence {
		return fmt.Errorf("%w: %v", ErrInvalidConfidence, e.Confidence)
	}
	if utf8.RuneCountInString(e.Body) > MaxBodyChars {
		return ErrBodyTooLong
	}
	return nil
}

// Validate checks the invariants a Notification must hold before it is stored.
func (n *Notification) Validate() error {
	if n.UserID <= 0 {
		return ErrMissingUser
	}
	if n.EmailID <= 0 {
		return ErrMissingEmail
	}
	if strings.TrimSpace(n.Type) == "" {
		return errors.New("notification type is required")
	}
	return nil
}
