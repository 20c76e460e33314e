package shared

import "errors"

var (
	// ErrNotFound signals a lookup that matched no row.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers every login failure so responses never
	// reveal whether the email exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
