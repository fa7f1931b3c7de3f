// Package auth signs users in and resolves session tokens to identities.
package auth

import "errors"

// Auth failures. They are shown to the user and never retried.
var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailTaken          = errors.New("email already registered")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrProviderUnavailable = errors.New("sign-in provider unavailable")
	ErrInvalidToken        = errors.New("invalid or expired session token")
)

// IsAuthFailure reports whether err is a definitive rejection rather than a
// transient failure of a collaborator.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrInvalidToken)
}
