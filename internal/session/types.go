// ABOUTME: Message, preference, and event types for the conversation session
// ABOUTME: Defines the persistence interface the session writes preferences through

package session

import (
	"context"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one turn of the conversation. Messages are never modified after
// they are appended; readers always receive copies.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Diagram   string    `json:"diagram,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
}

// HasDiagram reports whether the message carries a diagram reference.
func (m Message) HasDiagram() bool {
	return m.Diagram != ""
}

// LastIndex returns the index of the last message in msgs with the given
// role, or -1.
func LastIndex(msgs []Message, role Role) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return i
		}
	}
	return -1
}

// Preferences controls which attachments are shown on assistant replies.
type Preferences struct {
	ShowImages   bool `json:"show_images"`
	ShowDiagrams bool `json:"show_diagrams"`
}

// DefaultPreferences shows every attachment.
func DefaultPreferences() Preferences {
	return Preferences{ShowImages: true, ShowDiagrams: true}
}

// Snapshot is a consistent copy of the session state. The credential itself
// is never included.
type Snapshot struct {
	Messages      []Message   `json:"messages"`
	Loading       bool        `json:"loading"`
	HasCredential bool        `json:"has_credential"`
	Premium       bool        `json:"premium"`
	Preferences   Preferences `json:"preferences"`
}

// EventType names a session state change.
type EventType string

const (
	EventMessageAppended    EventType = "message_appended"
	EventCleared            EventType = "cleared"
	EventLoadingChanged     EventType = "loading_changed"
	EventCredentialChanged  EventType = "credential_changed"
	EventPremiumChanged     EventType = "premium_changed"
	EventPreferencesChanged EventType = "preferences_changed"
	EventNotice             EventType = "notice"
)

// NoticeKind classifies a user-facing notification.
type NoticeKind string

const (
	NoticeCredentialRequired NoticeKind = "credential_required"
	NoticeResponseFailed     NoticeKind = "response_failed"
	NoticeQuotaExceeded      NoticeKind = "quota_exceeded"
)

// Notice is a transient, user-facing notification. It is not part of the history.
type Notice struct {
	Kind   NoticeKind `json:"kind"`
	Title  string     `json:"title"`
	Detail string     `json:"detail"`
}

// Event is published to subscribers on every state change.
type Event struct {
	Type        EventType    `json:"type"`
	At          time.Time    `json:"at"`
	Message     *Message     `json:"message,omitempty"`
	Loading     bool         `json:"loading"`
	Premium     bool         `json:"premium"`
	Preferences *Preferences `json:"preferences,omitempty"`
	Notice      *Notice      `json:"notice,omitempty"`
}

// KV persists session settings outside the process. A missing secret returns
// an error matching store.ErrNotFound; preferences are read in one listing.
type KV interface {
	ListPrefs(ctx context.Context) (map[string]string, error)
	SetPref(ctx context.Context, key, value string) error
	GetSecret(ctx context.Context, key string) (string, error)
	SetSecret(ctx context.Context, key, value string) error
	DeleteSecret(ctx context.Context, key string) error
}

// Keys under which settings are persisted.
const (
	KeyCredential   = "credential"
	KeyPremium      = "is-premium"
	KeyShowImages   = "show-images"
	KeyShowDiagrams = "show-diagrams"
)
