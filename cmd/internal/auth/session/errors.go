package session

import (
	"errors"
	"fmt"
	"strings"
)

// Store-level errors.
var (
	// ErrRecordNotFound is returned when no record matches a digest.
	ErrRecordNotFound = errors.New("refresh token record not found")

	// ErrDuplicateDigest is returned when a digest is already stored.
	ErrDuplicateDigest = errors.New("refresh token digest already exists")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)

// Service-level error kinds. Every error returned by Service unwraps to at
// most one of these; anything else is an infrastructure failure.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrConflict       = errors.New("conflict")
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
)

// Kind is the closed set of failure categories callers switch on.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindConflict
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// KindOf classifies err. nil and unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// AuthenticationError covers bad credentials, disabled accounts and
// invalid, expired or revoked tokens. Reason is for logs only; clients get a
// single generic message regardless of it.
type AuthenticationError struct {
	Op     string
	Reason string
}

func (e AuthenticationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrAuthentication)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrAuthentication, e.Reason)
}

func (e AuthenticationError) Unwrap() error { return ErrAuthentication }

// ConflictError reports a uniqueness conflict on a logical field ("email").
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// ValidationError carries every violated password rule.
type ValidationError struct {
	Op         string
	Violations []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrValidation, strings.Join(e.Violations, ","))
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a resource that does not exist for the caller.
type NotFoundError struct {
	Op       string
	Resource string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNotFound, e.Resource)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }
