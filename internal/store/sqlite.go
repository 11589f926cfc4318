// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists preferences, sealed secrets, and daily usage with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	sealer *Sealer
	now    func() time.Time
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, sealer *Sealer) (*SQLiteStore, error) {
	if sealer == nil {
		return nil, errors.New("sealer is required")
	}
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		sealer: sealer,
		now:    time.Now,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS secrets (
			key TEXT PRIMARY KEY,
			nonce BLOB NOT NULL,
			ciphertext BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS daily_usage (
			day TEXT PRIMARY KEY,
			questions INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// SetPref creates or replaces the value under key.
func (s *SQLiteStore) SetPref(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, s.timestamp()); err != nil {
		return fmt.Errorf("upserting preference: %w", err)
	}
	s.logger.Debug("preference saved", "key", key)
	return nil
}

// ListPrefs returns every stored preference.
func (s *SQLiteStore) ListPrefs(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}
		prefs[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating preferences: %w", err)
	}
	return prefs, nil
}

// GetSecret returns the unsealed value stored under key.
// Returns ErrNotFound if the key doesn't exist.
func (s *SQLiteStore) GetSecret(ctx context.Context, key string) (string, error) {
	var nonce, ciphertext []byte
	err := s.db.QueryRowContext(ctx, `SELECT nonce, ciphertext FROM secrets WHERE key = ?`, key).Scan(&nonce, &ciphertext)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying secret: %w", err)
	}
	plaintext, err := s.sealer.Open(key, nonce, ciphertext)
	if err != nil {
		return "", fmt.Errorf("secret %q: %w", key, err)
	}
	return string(plaintext), nil
}

// SetSecret seals value and stores it under key.
func (s *SQLiteStore) SetSecret(ctx context.Context, key, value string) error {
	nonce, ciphertext, err := s.sealer.Seal(key, []byte(value))
	if err != nil {
		return fmt.Errorf("sealing secret: %w", err)
	}
	query := `
		INSERT INTO secrets (key, nonce, ciphertext, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			nonce = excluded.nonce,
			ciphertext = excluded.ciphertext,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, nonce, ciphertext, s.timestamp()); err != nil {
		return fmt.Errorf("upserting secret: %w", err)
	}
	s.logger.Debug("secret saved", "key", key)
	return nil
}

// DeleteSecret removes the value under key. Deleting a missing key is not an error.
func (s *SQLiteStore) DeleteSecret(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting secret: %w", err)
	}
	s.logger.Debug("secret deleted", "key", key)
	return nil
}

// GetUsage returns the number of questions counted for day, zero if none.
func (s *SQLiteStore) GetUsage(ctx context.Context, day string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT questions FROM daily_usage WHERE day = ?`, day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying usage: %w", err)
	}
	return n, nil
}

// IncrementUsage adds one question to day and returns the new count.
func (s *SQLiteStore) IncrementUsage(ctx context.Context, day string) (int, error) {
	query := `
		INSERT INTO daily_usage (day, questions, updated_at)
		VALUES (?, 1, ?)
		ON CONFLICT(day) DO UPDATE SET
			questions = questions + 1,
			updated_at = excluded.updated_at
		RETURNING questions
	`
	var n int
	if err := s.db.QueryRowContext(ctx, query, day, s.timestamp()).Scan(&n); err != nil {
		return 0, fmt.Errorf("incrementing usage: %w", err)
	}
	s.logger.Debug("usage incremented", "day", day, "questions", n)
	return n, nil
}
