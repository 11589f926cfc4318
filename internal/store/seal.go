// ABOUTME: Authenticated encryption for secrets stored in SQLite
// ABOUTME: XChaCha20-Poly1305 with a key derived from a passphrase via HKDF-SHA256

package store

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrEmptyKey is returned when a sealer is built from an empty passphrase.
var ErrEmptyKey = errors.New("encryption key is empty")

// ErrUnseal is returned when a sealed value fails authentication.
var ErrUnseal = errors.New("unable to unseal secret")

const hkdfInfo = "mediflow secrets v1"

// Sealer encrypts secret values. The secret key is bound to the ciphertext as
// additional data so a value cannot be moved to another key.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an encryption key from passphrase.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyKey
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(passphrase), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext for key and returns the nonce and ciphertext.
func (s *Sealer) Seal(key string, plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}
	return nonce, s.aead.Seal(nil, nonce, plaintext, []byte(key)), nil
}

// Open decrypts a value sealed for key.
func (s *Sealer) Open(key string, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != s.aead.NonceSize() {
		return nil, ErrUnseal
	}
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, ErrUnseal
	}
	return plaintext, nil
}
