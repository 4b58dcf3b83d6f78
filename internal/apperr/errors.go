// Package apperr classifies failures surfaced to users.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by how they are surfaced.
type Kind string

const (
	// Validation errors are detected before any write and are never retried.
	Validation Kind = "validation"
	// Authorization covers missing sessions and acting on someone else's resource.
	Authorization Kind = "authorization"
	NotFound      Kind = "not_found"
	// Conflict marks a precondition that blocks the action, e.g. a comment with replies.
	Conflict Kind = "conflict"
	// Transient is any backend/storage failure. The user must re-trigger the action.
	Transient Kind = "transient"
)

// Error carries a user-facing message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and message so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && e.Message == other.Message
}

// New creates an error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a cause to a user-facing message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, treating unclassified errors as transient.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Transient
}

// Message returns the user-facing message of err.
// Unclassified errors get a generic message so internals are not leaked.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong, please try again"
}

// HTTPStatus maps a kind to the status code used by the JSON API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Validation:
		return http.StatusBadRequest
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus is the inverse of HTTPStatus, used by the HTTP client.
func FromStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return Validation
	case http.StatusUnauthorized, http.StatusForbidden:
		return Authorization
	case http.StatusNotFound:
		return NotFound
	case http.StatusConflict:
		return Conflict
	default:
		return Transient
	}
}
