// Package apperror defines the error taxonomy shared by the service and handler layers.
//
// Every error a client can act on carries two things:
//   - a sentinel (ErrValidation, ErrNotFound, ...) that decides the HTTP status
//   - a machine-readable Code (e.g. "MISSING_WATCH_NAME") the frontend switches on
//
// Services never import net/http. They return these errors and the handler
// package translates the sentinel into a status code.
package apperror

import (
	"errors"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	// ErrUnavailable marks a service that cannot run because it is misconfigured
	// (e.g. the email provider key is missing). Handlers map it to 500.
	ErrUnavailable = errors.New("service unavailable")
)

type AppError struct {
	Err     error  // sentinel, one of the Err* values above
	Code    string // machine-readable code, e.g. "INVALID_CATALOG_TYPE"
	Message string // human-readable error message
	Field   string // optional: request field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation reports a bad client input. HTTP handlers map this to 400.
func Validation(code, field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

// Unauthorized reports a missing or invalid session. HTTP handlers map this to 401.
func Unauthorized(code, message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    code,
		Message: message,
	}
}

func NotFound(code, message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    code,
		Message: message,
	}
}

func Conflict(code, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    code,
		Message: message,
	}
}

// Unavailable reports a misconfigured dependency. HTTP handlers map this to 500
// but, unlike an unexpected failure, the message is safe to show the client.
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}

// CodeOf returns the machine-readable code carried by err, or "" if err is not
// (and does not wrap) an *AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
