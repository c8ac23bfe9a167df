package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// operationIDHeader carries the operation id on accepted responses.
// Location is the fallback: its last path segment is the id.
const operationIDHeader = "x-ms-operation-id"

// Poll budget and cadence. Exhausting the budget is a timeout, distinct
// from a Failed operation.
const (
	maxPollAttempts  = 60
	defaultPollDelay = 2 * time.Second
	maxPollDelay     = 30 * time.Second
)

// Terminal operation states as the service reports them.
const (
	statusSucceeded = "Succeeded"
	statusFailed    = "Failed"
)

// defaultOperationFailure is reported when the service marks an operation
// Failed without a message.
const defaultOperationFailure = "the service reported the operation as failed without details"

// operationStatus is the poll response body.
type operationStatus struct {
	Status string `json:"status"`
	Error  struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	} `json:"error"`
}

// OperationError is a terminal Failed status, carrying the server's
// reported message.
type OperationError struct {
	OperationID string
	Message     string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("workspace: operation %s failed: %s", e.OperationID, e.Message)
}

// TimeoutError reports an exhausted poll budget.
type TimeoutError struct {
	OperationID string
	Attempts    int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("workspace: operation %s still running after %d polls", e.OperationID, e.Attempts)
}

// OperationID extracts the operation identifier from an accepted response:
// the dedicated header when present, else the last path segment of the
// Location header.
func OperationID(resp *http.Response) string {
	if id := resp.Header.Get(operationIDHeader); id != "" {
		return id
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return ""
	}

	if u, err := url.Parse(loc); err == nil && u.Path != "" {
		loc = u.Path
	}

	segments := strings.Split(strings.TrimRight(loc, "/"), "/")

	return segments[len(segments)-1]
}

// AwaitOperation polls the operation referenced by an accepted response
// until it succeeds, fails, or the poll budget runs out. The wait before
// each poll honors the most recent Retry-After hint, capped.
func (c *Client) AwaitOperation(ctx context.Context, accepted *http.Response) error {
	opID := OperationID(accepted)
	if opID == "" {
		return errors.New("workspace: accepted response carries no operation id")
	}

	c.logger.Info("waiting for long-running operation",
		slog.String("operation_id", opID))

	delay := pollDelay(accepted.Header)

	for attempt := 1; attempt <= maxPollAttempts; attempt++ {
		if err := c.sleepFunc(ctx, delay); err != nil {
			return fmt.Errorf("workspace: operation wait canceled: %w", err)
		}

		resp, err := c.Do(ctx, http.MethodGet, c.rootURL+"/operations/"+opID, nil)
		if err != nil {
			return err
		}

		delay = pollDelay(resp.Header)

		var status operationStatus
		decodeErr := json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()

		if decodeErr != nil {
			return fmt.Errorf("workspace: decoding operation status: %w", decodeErr)
		}

		c.logger.Debug("operation poll",
			slog.String("operation_id", opID),
			slog.Int("attempt", attempt),
			slog.String("status", status.Status),
		)

		switch status.Status {
		case statusSucceeded:
			c.logger.Info("operation succeeded",
				slog.String("operation_id", opID),
				slog.Int("polls", attempt),
			)

			return nil
		case statusFailed:
			msg := status.Error.Message
			if msg == "" {
				msg = defaultOperationFailure
			}

			return &OperationError{OperationID: opID, Message: msg}
		}
	}

	return &TimeoutError{OperationID: opID, Attempts: maxPollAttempts}
}

// pollDelay derives the next poll wait from a Retry-After hint, capped at
// maxPollDelay, defaulting to the fixed cadence.
func pollDelay(h http.Header) time.Duration {
	ra := h.Get("Retry-After")
	if ra == "" {
		return defaultPollDelay
	}

	seconds, err := strconv.Atoi(ra)
	if err != nil || seconds <= 0 {
		return defaultPollDelay
	}

	d := time.Duration(seconds) * time.Second
	if d > maxPollDelay {
		return maxPollDelay
	}

	return d
}
