// Package dedupe tracks idempotency keys of submitted questions so a retried
// request inside the TTL window is recognised instead of asked twice.
package dedupe
