package secret

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxSealOpen(t *testing.T) {
	box, err := NewBox(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("app-password"), []byte("user-1"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "app-password")

	plain, err := box.Open(sealed, []byte("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "app-password", string(plain))
}

func TestBoxOpenRejectsOtherOwner(t *testing.T) {
	box, err := NewEphemeralBox()
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("pw"), []byte("user-1"))
	require.NoError(t, err)

	_, err = box.Open(sealed, []byte("user-2"))
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestBoxOpenMalformed(t *testing.T) {
	box, err := NewEphemeralBox()
	require.NoError(t, err)

	_, err = box.Open([]byte("short"), nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNewBoxInvalidKey(t *testing.T) {
	_, err := NewBox([]byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSealUsesFreshNonce(t *testing.T) {
	box, err := NewEphemeralBox()
	require.NoError(t, err)

	a, err := box.Seal([]byte("pw"), nil)
	require.NoError(t, err)
	b, err := box.Seal([]byte("pw"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
