// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject write failures

package store

import (
	"context"
	"maps"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu      sync.RWMutex
	prefs   map[string]string
	secrets map[string]string
	usage   map[string]int

	// WriteErr, when set, is returned by every mutating call.
	WriteErr error
	// ReadErr, when set, is returned by every lookup.
	ReadErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		prefs:   make(map[string]string),
		secrets: make(map[string]string),
		usage:   make(map[string]int),
	}
}

// SetPref stores value under key.
func (m *MockStore) SetPref(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.prefs[key] = value
	return nil
}

// ListPrefs returns a copy of every preference.
func (m *MockStore) ListPrefs(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return maps.Clone(m.prefs), nil
}

// GetSecret returns the secret stored under key.
func (m *MockStore) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	v, ok := m.secrets[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetSecret stores value under key.
func (m *MockStore) SetSecret(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.secrets[key] = value
	return nil
}

// DeleteSecret removes key.
func (m *MockStore) DeleteSecret(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	delete(m.secrets, key)
	return nil
}

// GetUsage returns the count for day.
func (m *MockStore) GetUsage(ctx context.Context, day string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	return m.usage[day], nil
}

// IncrementUsage adds one to day and returns the new count.
func (m *MockStore) IncrementUsage(ctx context.Context, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.usage[day]++
	return m.usage[day], nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Compile-time interface checks
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
