// Package workspace provides an HTTP client for the remote item registry
// with automatic retry, request pacing, error classification, and
// long-running-operation polling.
package workspace

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for status classes so callers can branch with errors.Is
// without fishing the status code back out of the error.
var (
	ErrBadRequest   = errors.New("workspace: bad request")
	ErrUnauthorized = errors.New("workspace: unauthorized")
	ErrForbidden    = errors.New("workspace: forbidden")
	ErrNotFound     = errors.New("workspace: not found")
	ErrConflict     = errors.New("workspace: conflict")
	ErrThrottled    = errors.New("workspace: throttled")
	ErrServerError  = errors.New("workspace: server error")
)

var statusSentinels = map[int]error{
	http.StatusBadRequest:      ErrBadRequest,
	http.StatusUnauthorized:    ErrUnauthorized,
	http.StatusForbidden:       ErrForbidden,
	http.StatusNotFound:        ErrNotFound,
	http.StatusConflict:        ErrConflict,
	http.StatusTooManyRequests: ErrThrottled,
}

// APIError carries a failed call's status code, the service's request id
// when one was returned, and the error message from the response body.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("workspace: HTTP %d: %s", e.StatusCode, e.Message)
	if e.RequestID != "" {
		msg += " (request id " + e.RequestID + ")"
	}

	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// classifyStatus picks the sentinel for a status code, nil for success.
func classifyStatus(code int) error {
	if sentinel, ok := statusSentinels[code]; ok {
		return sentinel
	}

	if code >= http.StatusInternalServerError {
		return ErrServerError
	}

	return nil
}

// isRetryable reports whether a fresh attempt could plausibly succeed.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}

	return false
}
