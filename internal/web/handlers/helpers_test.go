package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/znz-systems/triage/internal/fetch"
	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/store"
	"github.com/znz-systems/triage/internal/web/middleware"
)

// --- Shared mock stores ---

type mockUserStore struct {
	mu     sync.Mutex
	users  []*models.User
	nextID int64
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{nextID: 1}
}

func (m *mockUserStore) CreateUser(_ context.Context, username, email, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email || u.Username == username {
			return nil, store.ErrDuplicate
		}
	}
	u := &models.User{
		ID:           m.nextID,
		PublicID:     uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.nextID++
	m.users = append(m.users, u)
	return u, nil
}

func (m *mockUserStore) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *mockUserStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *mockUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *mockUserStore) GetUserByPublicID(_ context.Context, publicID uuid.UUID) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.PublicID == publicID })
}

func (m *mockUserStore) UpdateIMAPCredentials(_ context.Context, userID int64, imapEmail string, sealed []byte) error {
	u, err := m.GetUserByID(context.Background(), userID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u.IMAPEmail = imapEmail
	u.IMAPSecret = sealed
	u.IMAPConfigured = true
	return nil
}

type mockEmailStore struct {
	emails  []models.EmailRecord
	listErr error
}

func (m *mockEmailStore) FindEmailByProviderID(context.Context, int64, string) (*models.EmailRecord, error) {
	return nil, store.ErrNotFound
}

func (m *mockEmailStore) InsertEmail(context.Context, *models.EmailRecord) (int64, error) {
	return 0, nil
}

func (m *mockEmailStore) ListEmailsByUserID(_ context.Context, userID int64, limit int) ([]models.EmailRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.EmailRecord
	for _, e := range m.emails {
		if e.UserID == userID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockNotificationStore struct {
	notes []models.Notification
}

func (m *mockNotificationStore) InsertNotification(context.Context, *models.Notification) (int64, error) {
	return 0, nil
}

func (m *mockNotificationStore) ListNotificationsByUserID(_ context.Context, userID int64, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range m.notes {
		if n.UserID == userID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationStore) MarkNotificationRead(_ context.Context, userID int64, publicID uuid.UUID) error {
	for i := range m.notes {
		if m.notes[i].UserID == userID && m.notes[i].PublicID == publicID {
			m.notes[i].Read = true
			return nil
		}
	}
	return store.ErrNotFound
}

type stubSyncer struct {
	count   int
	err     error
	gotUser int64
	gotCred fetch.Credentials
	entered chan struct{}
	block   chan struct{}
}

func (s *stubSyncer) Sync(_ context.Context, userID int64, creds fetch.Credentials) (int, error) {
	s.gotUser = userID
	s.gotCred = creds
	if s.entered != nil {
		close(s.entered)
	}
	if s.block != nil {
		<-s.block
	}
	return s.count, s.err
}

// --- Request helpers ---

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), user))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}
