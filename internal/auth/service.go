package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/store"
)

// Sentinel errors returned by Service methods.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("incorrect email or password")
)

// ValidationError reports unacceptable signup input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// Session is what a successful login hands back to the client.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// Service provides authentication business logic.
type Service struct {
	users  store.UserStore
	tokens *TokenIssuer
}

// NewService creates a new auth service with the given user store and token issuer.
func NewService(users store.UserStore, tokens *TokenIssuer) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
	}
}

// Signup registers a new user with the given username, email and password.
// It validates the email address and that password is at least 8 characters.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" {
		return nil, invalid("username is required")
	}
	if email == "" {
		return nil, invalid("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email is invalid")
	}
	if utf8.RuneCountInString(password) < 8 {
		return nil, invalid("password must be at least 8 characters")
	}
	if len(password) > MaxPasswordBytes {
		return nil, invalid("password must be at most 72 bytes")
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up email: %w", err)
	}
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up username: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, email, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates a user by email and password, returning a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		CheckPassword("", password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.PublicID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ValidateToken checks the bearer token and returns the associated user.
func (s *Service) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	publicID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByPublicID(ctx, publicID)
	if err != nil {
		return nil, errors.New("user not found")
	}

	return user, nil
}
