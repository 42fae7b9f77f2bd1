package auth

import "errors"

// Token parse errors. Distinguishable for logging; all collapse to
// "unauthenticated" for control flow.
var (
	ErrTokenMalformed    = errors.New("token is malformed")
	ErrTokenBadSignature = errors.New("token signature is invalid")
	ErrTokenExpired      = errors.New("token has expired")
)

// Authentication errors.
var (
	// ErrInvalidCredentials deliberately does not distinguish an unknown
	// user from a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrDuplicateIdentity  = errors.New("username or email already in use")
	ErrTokenMismatch      = errors.New("token does not belong to the authenticated user")
)

// ErrUserNotFound is returned by user stores when no row matches
var ErrUserNotFound = errors.New("user not found")

// IsTokenError reports whether err is one of the token parse error kinds
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenBadSignature) ||
		errors.Is(err, ErrTokenExpired)
}
