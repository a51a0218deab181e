// Package apperr defines the error kinds shared by the services and the
// HTTP boundary. Specific errors wrap exactly one kind so callers can branch
// with errors.Is on either the specific error or its kind.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrAuth       = errors.New("authentication failed")
	ErrExpired    = errors.New("expired")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage error")
)

// ErrMissingFields is shared by every form-driven operation.
var ErrMissingFields = New(ErrValidation, "missing fields")

// New returns an error with the given message that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Storage wraps a persistence failure. A nil err stays nil.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// HTTPStatus maps an error to the status code the HTTP surface replies with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the plain text shown to clients. Internal failures are
// collapsed to a generic message so driver errors never leak.
func Message(err error) string {
	if HTTPStatus(err) >= http.StatusInternalServerError {
		return "server error"
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	return err.Error()
}
