// ABOUTME: Stub Responder serving canned replies chosen by the keyword policy
// ABOUTME: Emulates network latency with an injectable, cancellable sleep

package responder

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/2389/mediflow/internal/session"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real-time Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StubOptions configures a Stub. Zero values give no latency and a
// process-wide random source.
type StubOptions struct {
	Latency time.Duration
	// Jitter adds a uniform random delay in [0, Jitter) on top of Latency.
	Jitter time.Duration
	// Intn returns a uniform integer in [0, n).
	Intn   func(n int) int
	Sleep  Sleeper
	Logger *slog.Logger
}

// Stub answers from a fixed set of canned replies.
type Stub struct {
	latency time.Duration
	jitter  time.Duration
	intn    func(n int) int
	sleep   Sleeper
	logger  *slog.Logger
}

// NewStub creates a stub responder.
func NewStub(opts StubOptions) *Stub {
	if opts.Intn == nil {
		opts.Intn = rand.IntN
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Stub{
		latency: opts.Latency,
		jitter:  opts.Jitter,
		intn:    opts.Intn,
		sleep:   opts.Sleep,
		logger:  opts.Logger.With("component", "responder", "kind", "stub"),
	}
}

// Select picks the topic for text: the keyword match if any, otherwise a
// uniform choice over all topics.
func (s *Stub) Select(text string) Topic {
	if topic := Classify(text); topic != TopicNone {
		return topic
	}
	topics := Topics()
	return topics[s.intn(len(topics))]
}

// Respond waits out the configured latency and returns the canned reply for
// the latest user message. The credential is not checked.
func (s *Stub) Respond(ctx context.Context, history []session.Message, credential string) (Reply, error) {
	text, _ := LastUserText(history)
	topic := s.Select(text)

	delay := s.latency
	if s.jitter > 0 {
		delay += time.Duration(s.intn(int(s.jitter)))
	}
	if err := s.sleep(ctx, delay); err != nil {
		if ctx.Err() != nil {
			return Reply{}, contextError(ctx)
		}
		return Reply{}, &Error{Kind: KindUpstream, Err: err}
	}

	reply, ok := CannedReply(topic)
	if !ok {
		return Reply{}, &Error{Kind: KindEmptyReply, Err: errors.New("no canned reply for topic " + string(topic))}
	}
	s.logger.Debug("canned reply selected", "topic", topic, "delay", delay)
	return reply, nil
}
