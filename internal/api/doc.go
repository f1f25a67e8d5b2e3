// Package api implements the Gatekeeper HTTP API.
//
// This package provides:
//   - HTTP Basic authentication on every request, resolved to an Identity
//     carrying the roles of the caller's rank
//   - Role-gated endpoints for rank, account and audit administration
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Prometheus exposition and TLS support
//
// # Security
//
// Credentials are checked per request; no session or token is issued.
// Requests without credentials run as the anonymous identity, so public
// routes work and gated routes answer 401 with a WWW-Authenticate
// challenge. By default banned and not-activated accounts get the same
// 401 as a wrong password; auth.reveal_account_status turns those into
// explicit 403s.
//
// # Activity
//
// Every authentication attempt and every administrative change is handed
// to the activity recorder. Recording is best effort and never alters the
// response.
package api
