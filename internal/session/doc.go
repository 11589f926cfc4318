// Package session holds the state of one conversation.
//
// # State
//
// A Store owns the ordered message history, the awaiting-response flag, the
// provider credential, the plan flag, and display preferences. History is
// append-only: messages get a UUID and a timestamp when appended and are
// never edited. Clear drops the history and nothing else.
//
// # Dispatch gate
//
// TryBeginDispatch atomically moves the session from idle to
// awaiting-response and refuses when a response is already awaited.
// EndDispatch moves it back. The loading flag therefore covers exactly one
// in-flight request.
//
// # Persistence
//
// Credential, plan, and preferences are written through a KV as they change.
// Writes are fire-and-forget: a failure is logged and the in-memory value
// stays in effect. Load restores them at startup.
//
// # Events
//
// Every change is published to subscribers:
//
//	events, subID := s.Subscribe(ctx)
//	for ev := range events { ... }
//
// Publishing never blocks; a subscriber that falls behind misses events.
package session
