// Package auth provides password hashing and access tokens for the
// Hearth API.
//
// Passwords are hashed with Argon2id and stored in PHC string format;
// verification is constant-time. Access tokens are stateless HS256
// JWTs carrying the username, validated by signature and expiry only.
//
// The hub has a single configured admin user, so there are no user
// repositories here; the API layer verifies the login against the
// configured hash and mints a token.
package auth
