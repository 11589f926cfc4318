// ABOUTME: Conversation session store holding history, loading flag, and settings
// ABOUTME: Appends are ordered and immutable; settings persist through an external KV

package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/mediflow/internal/store"
)

// persistTimeout bounds each write to the KV.
const persistTimeout = 5 * time.Second

// Options configures a Store. Every field is optional.
type Options struct {
	KV     KV
	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// Store is the single source of truth for one conversation session.
type Store struct {
	mu         sync.RWMutex
	messages   []Message
	loading    bool
	credential string
	premium    bool
	prefs      Preferences

	kv     KV
	now    func() time.Time
	newID  func() string
	events *Broadcaster
	logger *slog.Logger
}

// New creates an empty, idle session.
func New(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Store{
		prefs:  DefaultPreferences(),
		kv:     opts.KV,
		now:    opts.Now,
		newID:  opts.NewID,
		events: NewBroadcaster(opts.Logger),
		logger: opts.Logger.With("component", "session"),
	}
}

// Load restores credential, plan, and preferences from the KV. Missing keys
// keep their defaults; the first other failure is returned after every key
// has been attempted.
func (s *Store) Load(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	var firstErr error
	record := func(key string, err error) bool {
		if err == nil {
			return true
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to load setting", "key", key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		return false
	}

	cred, err := s.kv.GetSecret(ctx, KeyCredential)
	credOK := record(KeyCredential, err)
	prefs, err := s.kv.ListPrefs(ctx)
	record("preferences", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if credOK {
		s.credential = cred
	}
	if v, ok := prefs[KeyPremium]; ok {
		s.premium = parseBool(v, s.premium)
	}
	if v, ok := prefs[KeyShowImages]; ok {
		s.prefs.ShowImages = parseBool(v, s.prefs.ShowImages)
	}
	if v, ok := prefs[KeyShowDiagrams]; ok {
		s.prefs.ShowDiagrams = parseBool(v, s.prefs.ShowDiagrams)
	}
	s.logger.Debug("session settings loaded",
		"has_credential", s.credential != "",
		"premium", s.premium)
	return firstErr
}

func parseBool(raw string, fallback bool) bool {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

// Append creates a message with a fresh ID and timestamp and adds it to the
// end of the history. It never fails.
func (s *Store) Append(content string, role Role, diagram, imageURL string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !role.Valid() {
		s.logger.Warn("appending message with unknown role", "role", role)
	}
	msg := Message{
		ID:        s.newID(),
		Content:   content,
		Role:      role,
		Timestamp: s.now(),
		Diagram:   diagram,
		ImageURL:  imageURL,
	}
	s.messages = append(s.messages, msg)

	published := msg
	s.events.Publish(Event{Type: EventMessageAppended, At: msg.Timestamp, Message: &published, Loading: s.loading})
	s.logger.Debug("message appended", "id", msg.ID, "role", role, "count", len(s.messages))
	return msg
}

// Clear empties the history. Loading, credential, plan, and preferences are
// untouched. Clearing an empty history is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.messages)
	s.messages = nil
	s.events.Publish(Event{Type: EventCleared, At: s.now(), Loading: s.loading})
	if n > 0 {
		s.logger.Info("history cleared", "removed", n)
	}
}

// SetLoading sets the awaiting-response flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLoadingLocked(loading)
}

func (s *Store) setLoadingLocked(loading bool) {
	if s.loading == loading {
		return
	}
	s.loading = loading
	s.events.Publish(Event{Type: EventLoadingChanged, At: s.now(), Loading: loading})
}

// TryBeginDispatch moves the session from idle to awaiting-response. It
// returns false, changing nothing, if a response is already awaited.
func (s *Store) TryBeginDispatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return false
	}
	s.setLoadingLocked(true)
	return true
}

// EndDispatch returns the session to idle.
func (s *Store) EndDispatch() {
	s.SetLoading(false)
}

// SetCredential replaces the stored credential. Surrounding whitespace is
// trimmed; an empty value clears it.
func (s *Store) SetCredential(credential string) {
	credential = strings.TrimSpace(credential)

	s.mu.Lock()
	s.credential = credential
	s.events.Publish(Event{Type: EventCredentialChanged, At: s.now(), Loading: s.loading})
	s.mu.Unlock()

	s.persist(KeyCredential, func(ctx context.Context) error {
		if credential == "" {
			return s.kv.DeleteSecret(ctx, KeyCredential)
		}
		return s.kv.SetSecret(ctx, KeyCredential, credential)
	})
}

// SetPremium changes the plan.
func (s *Store) SetPremium(premium bool) {
	s.mu.Lock()
	s.premium = premium
	s.events.Publish(Event{Type: EventPremiumChanged, At: s.now(), Loading: s.loading, Premium: premium})
	s.mu.Unlock()

	s.persist(KeyPremium, func(ctx context.Context) error {
		return s.kv.SetPref(ctx, KeyPremium, strconv.FormatBool(premium))
	})
}

// SetPreferences changes which attachments are shown on new replies.
func (s *Store) SetPreferences(prefs Preferences) {
	s.mu.Lock()
	s.prefs = prefs
	published := prefs
	s.events.Publish(Event{Type: EventPreferencesChanged, At: s.now(), Loading: s.loading, Preferences: &published})
	s.mu.Unlock()

	s.persist("preferences", func(ctx context.Context) error {
		if err := s.kv.SetPref(ctx, KeyShowImages, strconv.FormatBool(prefs.ShowImages)); err != nil {
			return err
		}
		return s.kv.SetPref(ctx, KeyShowDiagrams, strconv.FormatBool(prefs.ShowDiagrams))
	})
}

// persist writes a setting to the KV. Failures are logged and dropped: the
// in-memory value stays authoritative for this process.
func (s *Store) persist(key string, write func(ctx context.Context) error) {
	if s.kv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := write(ctx); err != nil {
		s.logger.Warn("failed to persist setting", "key", key, "error", err)
	}
}

// Notify publishes a transient notice to subscribers.
func (s *Store) Notify(notice Notice) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := notice
	s.events.Publish(Event{Type: EventNotice, At: s.now(), Loading: s.loading, Notice: &n})
}

// Messages returns a copy of the history in append order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Loading reports whether a response is being awaited.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Credential returns the stored credential, or "" if absent.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Premium reports the plan.
func (s *Store) Premium() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.premium
}

// Preferences returns the current display preferences.
func (s *Store) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Snapshot returns a consistent copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	return Snapshot{
		Messages:      msgs,
		Loading:       s.loading,
		HasCredential: s.credential != "",
		Premium:       s.premium,
		Preferences:   s.prefs,
	}
}

// Subscribe streams state events until ctx is cancelled.
func (s *Store) Subscribe(ctx context.Context) (<-chan Event, string) {
	return s.events.Subscribe(ctx)
}

// Unsubscribe ends a subscription early.
func (s *Store) Unsubscribe(subID string) {
	s.events.Unsubscribe(subID)
}

// Close ends every subscription.
func (s *Store) Close() {
	s.events.Close()
}
