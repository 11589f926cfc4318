// ABOUTME: Store interface and sentinel errors for mediflow persistence
// ABOUTME: Covers preferences, sealed secrets, and per-day question usage

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested key does not exist
var ErrNotFound = errors.New("not found")

// Store persists session settings and plan usage across restarts.
// Conversation history is deliberately not part of it.
type Store interface {
	PrefStore
	SecretStore
	UsageStore
	Close() error
}

// PrefStore holds plain key/value preferences.
type PrefStore interface {
	SetPref(ctx context.Context, key, value string) error
	ListPrefs(ctx context.Context) (map[string]string, error)
}

// SecretStore holds values that are sealed at rest.
type SecretStore interface {
	GetSecret(ctx context.Context, key string) (string, error)
	SetSecret(ctx context.Context, key, value string) error
	DeleteSecret(ctx context.Context, key string) error
}

// UsageStore counts questions asked per UTC day.
type UsageStore interface {
	GetUsage(ctx context.Context, day string) (int, error)
	IncrementUsage(ctx context.Context, day string) (int, error)
}

// DayKey formats t as the usage key of its UTC day.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
