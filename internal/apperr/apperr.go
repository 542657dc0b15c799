// Package apperr defines the sentinel errors the service layer uses to
// classify failures. HTTP handlers map each class to a status code at
// the boundary; everything else wraps them with %w and context.
package apperr

import "errors"

var (
	// ErrUnauthorized means the caller's identity could not be established.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the caller is known but not allowed to act on
	// the target resource.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict means the operation collides with existing state, such
	// as a duplicate pending request for the same pair of users.
	ErrConflict = errors.New("conflict")

	// ErrNotFound means the target resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalid means the request payload failed validation.
	ErrInvalid = errors.New("invalid request")
)

func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
func IsForbidden(err error) bool    { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsInvalid(err error) bool      { return errors.Is(err, ErrInvalid) }
