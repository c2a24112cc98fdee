// Package errors defines the failure kinds shared by the search engines,
// the CLI and the HTTP services, together with their HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfig            = errors.New("invalid configuration")
	ErrEmptyQuery        = errors.New("query has no content words")
	ErrModelNotFound     = errors.New("model not found")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

// statusOf is consulted in order; the first sentinel in an error's chain wins.
var statusOf = []struct {
	kind   error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrConfig, http.StatusBadRequest},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrEmptyQuery, http.StatusBadRequest},
	{ErrModelNotFound, http.StatusServiceUnavailable},
	{ErrDimensionMismatch, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusGatewayTimeout},
}

// AppError pairs a sentinel kind with a human-readable detail and the status
// an HTTP handler should answer with.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func New(kind error, statusCode int, message string) *AppError {
	return &AppError{Err: kind, Message: message, StatusCode: statusCode}
}

func Newf(kind error, statusCode int, format string, args ...any) *AppError {
	return New(kind, statusCode, fmt.Sprintf(format, args...))
}

func kindf(kind error, format string, args ...any) *AppError {
	return Newf(kind, defaultStatus(kind), format, args...)
}

// Configf reports an unknown index type or implementation, or a bad parameter.
func Configf(format string, args ...any) *AppError {
	return kindf(ErrConfig, format, args...)
}

// ModelNotFoundf reports a missing model file.
func ModelNotFoundf(format string, args ...any) *AppError {
	return kindf(ErrModelNotFound, format, args...)
}

// DimensionMismatchf reports vectors or cached matrices whose shape does not
// fit the corpus or model they are used with.
func DimensionMismatchf(format string, args ...any) *AppError {
	return kindf(ErrDimensionMismatch, format, args...)
}

// HTTPStatusCode prefers an explicit AppError status, then the sentinel in
// err's chain, and falls back to 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return defaultStatus(err)
}

func defaultStatus(err error) int {
	for _, s := range statusOf {
		if errors.Is(err, s.kind) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
