// Package apperrors defines the shared error taxonomy for the portal.
// Handlers translate these into HTTP statuses; services return them directly.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports bad or missing input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AuthorizationError reports a failed role or ownership check.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

func Unauthorized(format string, args ...any) error {
	return &AuthorizationError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidStateError reports an operation not valid for the entity's current
// lifecycle status, e.g. sending an already-sent communication.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string { return e.Msg }

func InvalidState(format string, args ...any) error {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an absent entity.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func NotFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

// DependencyError wraps a failure of a best-effort side channel (email,
// realtime push). Callers log and swallow it; it never fails the primary path.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return e.Dependency + ": " + e.Err.Error()
}

func (e *DependencyError) Unwrap() error { return e.Err }

func Dependency(dependency string, err error) error {
	return &DependencyError{Dependency: dependency, Err: err}
}

// HTTPStatus maps a taxonomy error to its REST status code.
// Unknown errors map to 500.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		authz      *AuthorizationError
		state      *InvalidStateError
		notFound   *NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &authz):
		return http.StatusForbidden
	case errors.As(err, &state):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
