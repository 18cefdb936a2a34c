package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by every layer of the cart service.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrLimitExceeded  = errors.New("limit exceeded")
	ErrNotImplemented = errors.New("not implemented")
)

// AppError is an error carrying a stable machine code and an HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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

func newError(code string, status int, sentinel error, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: sentinel}
}

// NotFound reports a missing resource identified by key.
func NotFound(resource, key string) *AppError {
	return newError("NOT_FOUND", http.StatusNotFound, ErrNotFound, fmt.Sprintf("%s %q not found", resource, key))
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return newError("INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput, message)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return newError("UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized, message)
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return newError("CONFLICT", http.StatusConflict, ErrConflict, message)
}

// LimitExceeded creates a 422 error for requests that would push the cart
// past one of its hosting limits.
func LimitExceeded(message string) *AppError {
	return newError("LIMIT_EXCEEDED", http.StatusUnprocessableEntity, ErrLimitExceeded, message)
}

// NotImplemented creates a 501 error.
func NotImplemented(message string) *AppError {
	return newError("NOT_IMPLEMENTED", http.StatusNotImplemented, ErrNotImplemented, message)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	for _, m := range sentinelStatus {
		if errors.Is(err, m.sentinel) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

var sentinelStatus = []struct {
	sentinel error
	status   int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrConflict, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrLimitExceeded, http.StatusUnprocessableEntity},
	{ErrNotImplemented, http.StatusNotImplemented},
}
