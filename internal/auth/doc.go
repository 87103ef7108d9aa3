// Package auth issues and checks credentials for demo-security.
//
// A successful login yields two tokens:
//   - a short-lived HS256 access token (TokenCodec) carrying the username
//     and a snapshot of the principal's roles, verified on every request
//     without touching storage
//   - an opaque renewal token (RenewalStore), stored only as its SHA-256
//     hash, of which each principal holds at most one
//
// Service ties these together. Renewal mints a fresh access token with
// the principal's current roles but keeps the renewal token and its expiry
// unchanged. Logging in again supersedes the previous renewal token;
// logging out deletes it. Access tokens are never revoked and simply run
// out.
//
// PathMatcher and Identity back the HTTP request gate: public paths are
// matched against a static pattern list, and a verified identity is
// attached to the request context exactly once.
//
// Passwords are hashed with Argon2id (OWASP recommendation) and rehashed
// transparently on login when the cost parameters change.
package auth
