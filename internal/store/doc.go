// Package store persists mediflow settings using SQLite.
//
// # Scope
//
// The store keeps what must survive a restart: the saved credential, the
// plan flag, display preferences, and the per-day question counters used by
// the basic plan quota. Conversation history is in-memory only and never
// reaches this package.
//
// # Interfaces
//
//   - PrefStore: plain key/value preferences
//   - SecretStore: values sealed with XChaCha20-Poly1305 before they are written
//   - UsageStore: question counters keyed by UTC day (see DayKey)
//
// SQLiteStore implements all of them over modernc.org/sqlite; MockStore is an
// in-memory implementation for tests with injectable failures.
//
// # Sealing
//
// NewSealer derives a key from a configured passphrase with HKDF-SHA256. Each
// value is sealed with a fresh nonce and bound to its key name, so swapping
// rows between keys fails to unseal.
//
// Lookups of missing keys return ErrNotFound.
package store
