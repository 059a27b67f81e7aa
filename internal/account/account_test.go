package account

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znz-systems/triage/internal/fetch"
	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/secret"
	"github.com/znz-systems/triage/internal/store"
)

type fakeUsers struct {
	store.UserStore
	updated map[int64][]byte
}

func (f *fakeUsers) UpdateIMAPCredentials(_ context.Context, userID int64, _ string, sealed []byte) error {
	if f.updated == nil {
		f.updated = make(map[int64][]byte)
	}
	f.updated[userID] = sealed
	return nil
}

func newService(t *testing.T) (*Service, *fakeUsers) {
	t.Helper()
	box, err := secret.NewEphemeralBox()
	require.NoError(t, err)
	users := &fakeUsers{}
	return NewService(users, box), users
}

func TestConfigureAndCredentials(t *testing.T) {
	svc, users := newService(t)
	user := &models.User{ID: 4, PublicID: uuid.New()}

	require.NoError(t, svc.Configure(context.Background(), user, "me@gmail.com", "app-pass"))
	assert.True(t, user.IMAPConfigured)
	assert.NotContains(t, string(users.updated[4]), "app-pass")

	creds, err := svc.Credentials(user)
	require.NoError(t, err)
	assert.Equal(t, fetch.Credentials{Username: "me@gmail.com", Password: "app-pass"}, creds)
}

func TestConfigureRejectsMissingFields(t *testing.T) {
	svc, _ := newService(t)
	user := &models.User{ID: 1, PublicID: uuid.New()}

	assert.ErrorIs(t, svc.Configure(context.Background(), user, "", "pw"), ErrInvalidInput)
	assert.ErrorIs(t, svc.Configure(context.Background(), user, "me@gmail.com", ""), ErrInvalidInput)
	assert.ErrorIs(t, svc.Configure(context.Background(), user, "nope", "pw"), ErrInvalidInput)
}

func TestCredentialsNotConfigured(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Credentials(&models.User{ID: 1, PublicID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCredentialsBoundToOwner(t *testing.T) {
	svc, _ := newService(t)
	owner := &models.User{ID: 1, PublicID: uuid.New()}
	require.NoError(t, svc.Configure(context.Background(), owner, "me@gmail.com", "pw"))

	other := &models.User{
		ID:             2,
		PublicID:       uuid.New(),
		IMAPEmail:      owner.IMAPEmail,
		IMAPSecret:     owner.IMAPSecret,
		IMAPConfigured: true,
	}
	_, err := svc.Credentials(other)
	assert.ErrorIs(t, err, secret.ErrDecryptFailed)
}
