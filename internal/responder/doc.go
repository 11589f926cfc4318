// Package responder produces assistant replies.
//
// The dispatch flow only sees the Responder interface:
//
//	Respond(ctx, history, credential) (Reply, error)
//
// Two implementations ship with mediflow.
//
// # Stub
//
// Stub answers from canned replies. Classify lower-cases the latest user
// message and scans keyword sets in a fixed priority order:
//
//	cardio         heart, cardio
//	heart_failure  failure
//	diabetes       diabetes
//	neuro          glasgow, coma
//	respiratory    lung, breath
//
// The first set with a keyword present wins, so "what causes heart failure"
// is a cardio question. Input with no match gets a uniformly random topic.
// The stub sleeps for a configurable latency before replying.
//
// # OpenAI
//
// OpenAI calls an OpenAI-compatible chat completion endpoint with the
// session credential as the API key. A fenced "flowchart" JSON block in the
// completion becomes the reply's diagram.
//
// Failures are *Error values carrying a Kind (unauthorized, rate_limited,
// timeout, cancelled, upstream, empty_reply). Nothing is retried here.
package responder
