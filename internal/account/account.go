// Package account manages the mail-account credentials attached to a user.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/znz-systems/triage/internal/fetch"
	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/secret"
	"github.com/znz-systems/triage/internal/store"
)

var (
	ErrNotConfigured = errors.New("mail account not configured")
	ErrInvalidInput  = errors.New("mail account email and password are required")
)

type Service struct {
	users store.UserStore
	box   *secret.Box
}

func NewService(users store.UserStore, box *secret.Box) *Service {
	return &Service{users: users, box: box}
}

// Configure seals password and stores it against user.
func (s *Service) Configure(ctx context.Context, user *models.User, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}

	sealed, err := s.box.Seal([]byte(password), ownerTag(user))
	if err != nil {
		return fmt.Errorf("sealing mail password: %w", err)
	}

	if err := s.users.UpdateIMAPCredentials(ctx, user.ID, email, sealed); err != nil {
		return fmt.Errorf("saving mail credentials: %w", err)
	}

	user.IMAPEmail = email
	user.IMAPSecret = sealed
	user.IMAPConfigured = true
	return nil
}

// Credentials opens the stored secret for user. The plaintext only lives for
// the duration of a sync.
func (s *Service) Credentials(user *models.User) (fetch.Credentials, error) {
	if !user.IMAPConfigured || user.IMAPEmail == "" || len(user.IMAPSecret) == 0 {
		return fetch.Credentials{}, ErrNotConfigured
	}
	plain, err := s.box.Open(user.IMAPSecret, ownerTag(user))
	if err != nil {
		return fetch.Credentials{}, fmt.Errorf("opening mail password: %w", err)
	}
	return fetch.Credentials{Username: user.IMAPEmail, Password: string(plain)}, nil
}

func ownerTag(user *models.User) []byte {
	return []byte(user.PublicID.String())
}
