// Package api implements the HTTP REST API and WebSocket event stream for
// demo-security.
//
// This package provides:
//   - Credential endpoints: login, renew, logout, register, validate
//   - Profile and account administration endpoints
//   - A WebSocket hub streaming auth events to administrators
//   - Middleware stack (request ID, logging, recovery, CORS, auth gate)
//   - TLS support for production deployments
//
// # Security
//
// The auth gate runs on every request. Paths matching the configured public
// patterns pass through untouched. Elsewhere a valid "Authorization: Bearer"
// access token attaches an auth.Identity to the request context; a missing
// or invalid token leaves the request anonymous. The gate never rejects a
// request itself, so role checks on individual routes decide between 401
// and 403.
//
// Failure responses never say why a credential was refused. The cause
// (expired, bad signature, unknown renewal token, disabled account) is
// logged together with a token fingerprint instead.
//
// WebSocket connections use single-use tickets to keep tokens out of URLs.
package api
