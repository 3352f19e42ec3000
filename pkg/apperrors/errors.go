package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotSignedIn  = errors.New("no signed-in user")
	ErrNoSession    = errors.New("no dashboard session")
)

// ServiceError is a non-success HTTP response from a backend service.
type ServiceError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: service returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Message is the user-facing form of the error.
func (e *ServiceError) Message() string {
	text := e.Status
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("Server error: %d %s", e.StatusCode, text)
}

// Unwrap maps well-known statuses onto the package sentinels.
func (e *ServiceError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalidInput
	}
	return nil
}

// IsRetryable reports whether the status is worth retrying.
func (e *ServiceError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Normalize turns any action error into the single message shown to the user.
// Server responses become "Server error: <code> <text>"; everything else,
// including transport failures, becomes "Client error: <msg>".
func Normalize(err error) string {
	if err == nil {
		return ""
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Message()
	}
	if errors.Is(err, context.Canceled) {
		return "Client error: request cancelled"
	}
	return "Client error: " + err.Error()
}
