// ABOUTME: Tests for secret sealing
// ABOUTME: Covers round trips, key binding, tampering, and empty passphrases

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s := newTestSealer(t)

	nonce, ct, err := s.Seal("credential", []byte("sk-abc"))
	require.NoError(t, err)

	got, err := s.Open("credential", nonce, ct)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", string(got))
}

func TestSealer_FreshNonceEachSeal(t *testing.T) {
	s := newTestSealer(t)
	n1, c1, err := s.Seal("k", []byte("same"))
	require.NoError(t, err)
	n2, c2, err := s.Seal("k", []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, c1, c2)
}

func TestSealer_BoundToKey(t *testing.T) {
	s := newTestSealer(t)
	nonce, ct, err := s.Seal("credential", []byte("sk-abc"))
	require.NoError(t, err)

	_, err = s.Open("other", nonce, ct)
	assert.ErrorIs(t, err, ErrUnseal)
}

func TestSealer_Tampered(t *testing.T) {
	s := newTestSealer(t)
	nonce, ct, err := s.Seal("credential", []byte("sk-abc"))
	require.NoError(t, err)

	ct[0] ^= 0xff
	_, err = s.Open("credential", nonce, ct)
	assert.ErrorIs(t, err, ErrUnseal)

	_, err = s.Open("credential", nonce[:3], ct)
	assert.ErrorIs(t, err, ErrUnseal)
}

func TestNewSealer_EmptyPassphrase(t *testing.T) {
	_, err := NewSealer("")
	assert.ErrorIs(t, err, ErrEmptyKey)
}
