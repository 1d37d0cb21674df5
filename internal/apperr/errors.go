// Package apperr defines the sentinel errors shared by all services.
// Handlers map them to HTTP status codes in one place.
package apperr

import "errors"

var (
	// ErrInvalidCredentials covers both unknown login and password mismatch;
	// callers must not be able to tell which one failed.
	ErrInvalidCredentials = errors.New("invalid login or password")

	// ErrInvalidToken is a malformed, badly signed or expired token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrStaleToken is a well-formed refresh token that no longer matches the
	// one stored for the user (rotation detected a reused token).
	ErrStaleToken = errors.New("stale refresh token")

	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("already exists")
)
