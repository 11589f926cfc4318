// ABOUTME: Sentinel errors and the failure wrapper returned by the dispatch flow
// ABOUTME: Rejections leave the session untouched; FailedError means the user message was kept

package dispatch

import (
	"errors"
	"fmt"
)

// Rejections. When one of these is returned, nothing was appended and the
// loading flag was not touched.
var (
	ErrCredentialRequired = errors.New("credential required")
	ErrDispatchInFlight   = errors.New("a response is already being generated")
	ErrQuotaExceeded      = errors.New("daily question limit reached")
	ErrNoUserMessage      = errors.New("no user message to respond to")
)

// ErrResponseFailed matches every FailedError.
var ErrResponseFailed = errors.New("failed to get a response")

// FailedError reports a dispatch whose Responder call failed. The user
// message stays in the history and no assistant message was added.
type FailedError struct {
	DispatchID string
	Err        error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrResponseFailed, e.Err)
}

// Unwrap exposes both ErrResponseFailed and the underlying cause.
func (e *FailedError) Unwrap() []error {
	return []error{ErrResponseFailed, e.Err}
}
