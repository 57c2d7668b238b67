package auth

import "errors"

var (
	// ErrInvalidCredentials is the uniform login failure. Unknown login, wrong
	// password and blocked account all collapse into it so callers cannot probe
	// which accounts exist.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenMalformed indicates a token that failed the signature check or
	// could not be parsed at all. Unlike a stale session this points at
	// tampering or corruption.
	ErrTokenMalformed = errors.New("auth: malformed token")

	// ErrResetTokenInvalid covers a missing reset token, a malformed compound
	// code and a wrong code. Deliberately indistinguishable.
	ErrResetTokenInvalid = errors.New("auth: invalid reset token")

	// ErrResetTokenExpired is raised when the reset token exists but its expiry
	// has passed. The token is removed as a side effect.
	ErrResetTokenExpired = errors.New("auth: reset token expired")

	// ErrPasswordMismatch is returned by ChangePassword when the supplied old
	// password does not match. Safe to surface: the caller is authenticated.
	ErrPasswordMismatch = errors.New("auth: old password mismatch")

	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")
)
