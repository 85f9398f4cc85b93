package credentials

import "errors"

// Sentinel errors for credential operations.
var (
	// ErrUnknownUser indicates that the username is not registered.
	ErrUnknownUser = errors.New("unknown user")

	// ErrEmptyUsername indicates that an empty username was supplied.
	ErrEmptyUsername = errors.New("empty username")

	// ErrEmptyPassword indicates that an empty password was supplied.
	ErrEmptyPassword = errors.New("empty password")
)
