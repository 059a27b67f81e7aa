package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/store"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, public_id, username, email, password_hash, imap_email, imap_secret, imap_configured, created_at, updated_at`

func (s *UserStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	user := &models.User{
		PublicID:     uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (public_id, username, email, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		user.PublicID, user.Username, user.Email, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}

	return user, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *UserStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *UserStore) GetUserByPublicID(ctx context.Context, publicID uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE public_id = $1`, publicID)
}

func (s *UserStore) UpdateIMAPCredentials(ctx context.Context, userID int64, imapEmail string, sealedSecret []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET imap_email = $2, imap_secret = $3, imap_configured = TRUE, updated_at = NOW()
		 WHERE id = $1`,
		userID, imapEmail, sealedSecret,
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

func (s *UserStore) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	user := &models.User{}
	var imapEmail sql.NullString
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.PublicID, &user.Username, &user.Email, &user.PasswordHash,
		&imapEmail, &user.IMAPSecret, &user.IMAPConfigured, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	user.IMAPEmail = imapEmail.String
	return user, nil
}
