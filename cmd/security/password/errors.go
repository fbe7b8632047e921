package password

import "errors"

// Public, stable errors for callers.
var (
	ErrInvalidHash = errors.New("invalid password hash")
	ErrConfig      = errors.New("invalid password config")
)
