// Package apperr defines the error kinds shared by the credential service,
// the entity repositories and the HTTP layer. Each kind is a sentinel value
// so callers can branch with errors.Is; *Error attaches a human message and
// the underlying cause without hiding either from errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad input shape or a uniqueness violation.
	ErrValidation = errors.New("validation failed")

	// ErrConflict refines ErrValidation for duplicate usernames or emails.
	// Handlers translate it into HTTP 409 instead of 400.
	ErrConflict = errors.New("conflict")

	// ErrInvalidCredentials is returned for every failed login, whether the
	// account does not exist or the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRefreshToken is returned when a refresh token is unknown,
	// revoked or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrNotFound is returned when an entity or id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorage wraps any persistence failure (connectivity, constraint,
	// driver error) that is not one of the kinds above.
	ErrStorage = errors.New("storage failure")
)

// Error carries a kind sentinel, a message that is safe to show to API
// clients and an optional internal cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap exposes both the kind and the cause so errors.Is matches either.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message returns the client-facing message of err, or fallback when err is
// not an *Error.
func Message(err error, fallback string) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Msg != "" {
		return ae.Msg
	}
	return fallback
}

func Validation(msg string) error { return &Error{Kind: ErrValidation, Msg: msg} }

// Conflict is a validation failure caused by an existing unique value.
func Conflict(msg string, cause error) error {
	if cause == nil {
		cause = ErrConflict
	} else {
		cause = fmt.Errorf("%w: %w", ErrConflict, cause)
	}
	return &Error{Kind: ErrValidation, Msg: msg, Err: cause}
}

func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Msg: msg} }

func Storage(msg string, cause error) error {
	return &Error{Kind: ErrStorage, Msg: msg, Err: cause}
}
