// ABOUTME: Responder interface and typed failures for reply generation
// ABOUTME: Any completion backend implements Respond over the full session history

package responder

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/mediflow/internal/session"
)

// Reply is what a Responder produces for one dispatch. Diagram and ImageURL
// are empty when the reply has no such attachment. A flowchart generated on
// the fly travels as DiagramPayload and is given a reference when recorded.
type Reply struct {
	Text           string
	Diagram        string
	DiagramPayload string
	ImageURL       string
}

// Responder turns a conversation history into the next assistant reply.
// history always ends with the user message being answered. Implementations
// must honor ctx cancellation.
type Responder interface {
	Respond(ctx context.Context, history []session.Message, credential string) (Reply, error)
}

// Func adapts a function to the Responder interface.
type Func func(ctx context.Context, history []session.Message, credential string) (Reply, error)

// Respond calls f.
func (f Func) Respond(ctx context.Context, history []session.Message, credential string) (Reply, error) {
	return f(ctx, history, credential)
}

// Kind classifies a Responder failure.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindTimeout      Kind = "timeout"
	KindCancelled    Kind = "cancelled"
	KindUpstream     Kind = "upstream"
	KindEmptyReply   Kind = "empty_reply"
)

// Error is the failure type returned by the bundled responders.
type Error struct {
	Kind   Kind
	Status int // HTTP status from the provider, 0 if none
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("responder %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("responder %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// contextError maps a finished context to a responder failure.
func contextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindCancelled, Err: err}
}

// LastUserText returns the content of the last user message in history.
func LastUserText(history []session.Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == session.RoleUser {
			return history[i].Content, true
		}
	}
	return "", false
}
