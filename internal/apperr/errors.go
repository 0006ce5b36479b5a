// Package apperr defines the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Kind classifies an Error
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUnverified
	KindBadRequest
	KindTooLarge
)

// ErrDuplicate is returned by repositories when a unique constraint is violated
var ErrDuplicate = errors.New("duplicate key")

// Error represents an application error
type Error struct {
	Kind    Kind
	Message string
	// Fields maps input field names to messages for validation failures
	Fields map[string][]string
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error kind
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden, KindUnverified:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Validation creates a validation failure from field messages
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: validationMessage(fields), Fields: fields}
}

// FieldError creates a validation failure for a single field
func FieldError(field, message string) *Error {
	return Validation(map[string][]string{field: {message}})
}

// Unauthenticated creates an authentication failure
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// Forbidden creates an authorization failure
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound creates a missing resource error
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict creates a conflicting state error
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Unverified creates an error for accounts that have not confirmed their email
func Unverified(message string) *Error {
	return &Error{Kind: KindUnverified, Message: message}
}

// BadRequest creates a request level failure
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// TooLarge creates an error for request bodies over the accepted size
func TooLarge(message string) *Error {
	return &Error{Kind: KindTooLarge, Message: message}
}

// Internal wraps an unexpected error
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Server Error", Err: err}
}

// As extracts an *Error from err, wrapping unknown errors as internal
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func validationMessage(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	total := 0
	for k, msgs := range fields {
		keys = append(keys, k)
		total += len(msgs)
	}
	if total == 0 {
		return "The given data was invalid."
	}
	sort.Strings(keys)
	first := fields[keys[0]][0]
	if total == 1 {
		return first
	}
	suffix := "errors"
	if total == 2 {
		suffix = "error"
	}
	return fmt.Sprintf("%s (and %d more %s)", first, total-1, suffix)
}
