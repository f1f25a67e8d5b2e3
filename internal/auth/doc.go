// Package auth verifies credentials and derives authorisation roles for Gatekeeper.
//
// Authentication is a fixed pipeline evaluated on every request:
//
//	Basic credentials -> Verifier.Authenticate -> Identity{principal}
//	                  -> CredentialStore.FindRankForUser -> Augment
//	                  -> Identity{principal, roles} -> Authorize(required...)
//
// Passwords are stored as PBKDF2-HMAC-SHA-256 keys (100,000 iterations,
// 32-byte key) with a per-user 32-byte random salt, both base64 encoded.
//
// Roles are "<resource>:<action>" tokens derived from a rank's permission
// flags through a single declarative table. Nothing is cached between
// requests: a rank edit takes effect on the next request.
package auth
