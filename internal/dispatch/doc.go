// Package dispatch turns a submitted question into conversation turns.
//
// # Flow
//
// Start and Submit run the same steps:
//
//  1. Blank input (after trimming) is a no-op: StatusNothingToSend.
//  2. No credential: ErrCredentialRequired and a credential_required notice.
//  3. A repeated idempotency key: StatusDuplicate.
//  4. Basic plan over its daily limit: ErrQuotaExceeded.
//  5. A response already awaited: ErrDispatchInFlight.
//  6. The user message is appended and the session starts loading.
//  7. The Responder gets the full history including that message.
//  8. On success one assistant message is appended.
//  9. On failure nothing more is appended; the error is a *FailedError.
//
// Steps 1-5 change nothing in the session. From step 6 on, the session
// returns to idle exactly once, whatever the outcome. The user message is
// never rolled back and nothing is retried automatically.
//
// Start returns as soon as the user message is recorded; Submit also waits
// for the reply, and only returns once the session is idle again. Cancel
// stops a running dispatch by ID. A failed dispatch forgets its idempotency
// key so the same submission can be retried.
//
// Flowcharts a Responder generates inline are registered in the diagram
// catalog under a fresh reference before the reply is recorded.
//
// # Regenerate
//
// Regenerate asks again for the last user message and appends the new reply
// at the end of the history.
package dispatch
