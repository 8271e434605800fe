package auth

import "errors"

// Sentinel errors for authentication.
var (
	// ErrInvalidCredentials indicates a wrong username or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid indicates a malformed, tampered or expired token.
	ErrTokenInvalid = errors.New("auth: token invalid")

	// ErrMalformedHash indicates a stored password hash that is not a
	// valid Argon2id PHC string.
	ErrMalformedHash = errors.New("auth: malformed password hash")
)
