// Package api serves the mediflow session over HTTP.
//
// All endpoints speak JSON and, when a token verifier is configured, require
// a bearer JWT. /health is always public.
//
//	GET    /health
//	GET    /api/session
//	GET    /api/messages
//	POST   /api/messages                 {"text", "idempotency_key"}
//	DELETE /api/messages
//	POST   /api/messages/regenerate
//	POST   /api/dispatches/{id}/cancel
//	PUT    /api/credential               {"credential"}
//	DELETE /api/credential
//	PUT    /api/premium                  {"premium"}
//	PUT    /api/preferences              {"show_images", "show_diagrams"}
//	GET    /api/diagrams/{ref}           ?wait=true&expanded=true
//	GET    /api/diagrams/{ref}/export
//	GET    /api/transcript               ?format=md|html
//	GET    /api/events                   (server-sent events)
//
// POST /api/messages waits for the reply unless ?async=true is given, in
// which case it answers 202 once the question is recorded and the reply
// arrives on /api/events.
package api
