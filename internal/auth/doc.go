// Package auth provides bearer token authentication for the mediflow HTTP API.
//
// Tokens are HS256 JWTs signed with auth.jwt_secret, issued by
// "mediflow token" and carrying the caller's name in the "sub" claim.
// Middleware rejects requests without a valid token with 401 and a JSON
// error body; accepted requests carry an AuthContext retrievable with
// FromContext.
//
// When no secret is configured the API is served without authentication.
package auth
