// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers schema creation, preferences, sealed secrets, and daily usage counters

package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	sealer, err := NewSealer("test-encryption-key")
	require.NoError(t, err)
	return sealer
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), newTestSealer(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath, newTestSealer(t))
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestNewSQLiteStore_RequiresSealer(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), nil)
	assert.Error(t, err)
}

func TestPrefs_RoundTripAndOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	all, err := s.ListPrefs(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, s.SetPref(ctx, "is-premium", "false"))
	require.NoError(t, s.SetPref(ctx, "is-premium", "true"))
	require.NoError(t, s.SetPref(ctx, "show-images", "false"))

	all, err = s.ListPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"is-premium": "true", "show-images": "false"}, all)
}

func TestPrefs_SurviveReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	sealer := newTestSealer(t)

	s, err := NewSQLiteStore(dbPath, sealer)
	require.NoError(t, err)
	require.NoError(t, s.SetPref(t.Context(), "is-premium", "true"))
	require.NoError(t, s.SetSecret(t.Context(), "credential", "sk-live"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath, sealer)
	require.NoError(t, err)
	defer s.Close()

	prefs, err := s.ListPrefs(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "true", prefs["is-premium"])

	cred, err := s.GetSecret(t.Context(), "credential")
	require.NoError(t, err)
	assert.Equal(t, "sk-live", cred)
}

func TestSecrets_AreSealedAtRest(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.SetSecret(ctx, "credential", "sk-very-secret"))

	var ciphertext []byte
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT ciphertext FROM secrets WHERE key = ?`, "credential").Scan(&ciphertext))
	assert.NotContains(t, string(ciphertext), "sk-very-secret")

	got, err := s.GetSecret(ctx, "credential")
	require.NoError(t, err)
	assert.Equal(t, "sk-very-secret", got)
}

func TestSecrets_WrongKeyCannotUnseal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath, newTestSealer(t))
	require.NoError(t, err)
	require.NoError(t, s.SetSecret(t.Context(), "credential", "sk-live"))
	require.NoError(t, s.Close())

	other, err := NewSealer("a-different-key")
	require.NoError(t, err)
	s, err = NewSQLiteStore(dbPath, other)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetSecret(t.Context(), "credential")
	assert.ErrorIs(t, err, ErrUnseal)
}

func TestSecrets_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.SetSecret(ctx, "credential", "sk-live"))
	require.NoError(t, s.DeleteSecret(ctx, "credential"))
	require.NoError(t, s.DeleteSecret(ctx, "credential"))

	_, err := s.GetSecret(ctx, "credential")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsage_IncrementPerDay(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	n, err := s.GetUsage(ctx, "2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for want := 1; want <= 3; want++ {
		n, err = s.IncrementUsage(ctx, "2026-10-16")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err = s.IncrementUsage(ctx, "2026-10-17")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.GetUsage(ctx, "2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUsage_ConcurrentIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.IncrementUsage(ctx, "2026-10-16")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := s.GetUsage(ctx, "2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestDayKey_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2026, 10, 17, 5, 0, 0, 0, loc)
	assert.Equal(t, "2026-10-16", DayKey(ts))
}

func TestSchema_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.createSchema())

	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='daily_usage'`).Scan(&name)
	require.NotErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, "daily_usage", name)
}
