// Package secret seals mail-account passwords before they reach the database.
// Sealed values are nonce || XChaCha20-Poly1305 ciphertext.
package secret

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrInvalidKey    = errors.New("secret key must be 32 bytes")
	ErrMalformed     = errors.New("sealed secret is malformed")
	ErrDecryptFailed = errors.New("sealed secret could not be opened")
)

// Box seals and opens secrets with a single symmetric key.
type Box struct {
	key []byte
}

// NewBox returns a Box for the given 32-byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Box{key: k}, nil
}

// NewEphemeralBox returns a Box with a random key. Anything sealed with it
// cannot be opened after the process exits.
func NewEphemeralBox() (*Box, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate secret key: %w", err)
	}
	return &Box{key: key}, nil
}

// Seal encrypts plaintext. additional binds the ciphertext to its owner so a
// sealed value copied onto another row fails to open.
func (b *Box) Seal(plaintext, additional []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, additional), nil
}

// Open reverses Seal.
func (b *Box) Open(sealed, additional []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, additional)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
