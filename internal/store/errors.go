package store

import (
	"fmt"
	"net/http"
)

// Error is a storage error. Code is the HTTP status the API answers with.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code and message, so copies made
// by WithCause still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithMessage returns a copy with msg. The copy no longer matches the
// sentinel through errors.Is; compare Code instead.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err}
}

// WithCause returns a copy wrapping err. It still matches the sentinel.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// Sentinel errors shared by every engine.
var (
	ErrNotFound      = &Error{Code: http.StatusNotFound, Message: "resource not found"}
	ErrAlreadyExists = &Error{Code: http.StatusConflict, Message: "resource already exists"}
	// ErrDuplicateName is returned by the primary store when a tag with the
	// same normalized name already exists.
	ErrDuplicateName = &Error{Code: http.StatusConflict, Message: "duplicate name"}
	ErrInvalidInput  = &Error{Code: http.StatusBadRequest, Message: "invalid input"}

	ErrNoTransaction         = &Error{Code: http.StatusInternalServerError, Message: "no transaction in progress"}
	ErrTransactionInProgress = &Error{Code: http.StatusInternalServerError, Message: "transaction already in progress"}
)
