// Package errors defines the application error taxonomy and its HTTP mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels classify failures. Repositories and services return them bare or
// wrapped; AppError constructors attach one to every error they build.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnprocessable   = errors.New("unprocessable entity")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrTooManyRequests = errors.New("too many requests")
)

// kind is the wire shape of a sentinel. detail is what a client sees when the
// bare sentinel reaches the edge; an empty detail exposes the error text.
type kind struct {
	sentinel error
	status   int
	code     string
	detail   string
}

var kinds = []kind{
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND", "NOT FOUND"},
	{ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "resource already exists"},
	{ErrConflict, http.StatusConflict, "CONFLICT", "conflict"},
	{ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", ""},
	{ErrUnprocessable, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", ""},
	{ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Could not validate credentials"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN", "FORBIDDEN"},
	{ErrTooManyRequests, http.StatusTooManyRequests, "RATE_LIMITED", "Too Many Requests"},
}

const (
	internalCode   = "INTERNAL_ERROR"
	internalDetail = "an internal error occurred"
)

// AppError is an error with a client-facing detail and HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"detail"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
		}
	}
	panic(fmt.Sprintf("errors: no kind registered for %v", sentinel))
}

// NotFound creates a 404 error with the given detail.
func NotFound(message string) *AppError {
	return newAppError(ErrNotFound, message)
}

// AlreadyExists creates a 409 error for a duplicate unique field.
func AlreadyExists(resource, field, value string) *AppError {
	return newAppError(ErrAlreadyExists, fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

// Conflict creates a 409 error with the given detail.
func Conflict(message string) *AppError {
	return newAppError(ErrConflict, message)
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return newAppError(ErrInvalidInput, message)
}

// Unprocessable creates a 422 error.
func Unprocessable(message string) *AppError {
	return newAppError(ErrUnprocessable, message)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return newAppError(ErrUnauthorized, message)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return newAppError(ErrForbidden, message)
}

// TooManyRequests creates a 429 error.
func TooManyRequests(message string) *AppError {
	return newAppError(ErrTooManyRequests, message)
}

// Internal creates a 500 error. The cause stays in Err and never reaches the
// detail.
func Internal(err error) *AppError {
	return &AppError{
		Code:    internalCode,
		Message: internalDetail,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// FromError resolves err into the AppError a client should see. An AppError in
// the chain is returned as is; a wrapped sentinel gets its kind's default
// detail; anything else becomes Internal.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			detail := k.detail
			if detail == "" {
				detail = err.Error()
			}
			return &AppError{Code: k.code, Message: detail, Status: k.status, Err: err}
		}
	}
	return Internal(err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	return FromError(err).Status
}
