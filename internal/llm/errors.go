package llm

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrInvalidRequest means the request is malformed, e.g. has no messages.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidRole means a message carries a role other than system, user
	// or assistant.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidParameter means a sampling parameter is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// StatusFromError maps an error from the service to an HTTP status code.
// Input errors are the caller's fault; everything else is ours.
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidParameter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// outcome labels err for metrics and the usage ledger.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case StatusFromError(err) == http.StatusBadRequest:
		return "invalid"
	default:
		return "error"
	}
}
