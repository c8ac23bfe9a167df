package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Retry, pacing, and backoff constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	jitterFraction = 0.25
	userAgent      = "modelpush/0.1"

	// Proactive request pacing, under the service's published limits.
	requestsPerSecond = 10
	requestBurst      = 10
)

// requestIDHeader is the correlation id the service attaches to responses.
const requestIDHeader = "x-ms-request-id"

// TokenSource provides bearer tokens. Defined at the consumer per Go
// convention "accept interfaces, return structs".
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource for an already-acquired bearer token.
type StaticToken string

func (s StaticToken) Token() (string, error) {
	if s == "" {
		return "", errors.New("workspace: no access token available")
	}

	return string(s), nil
}

// Client is an HTTP client bound to one workspace. It handles request
// construction, authentication, pacing, retry with exponential backoff,
// and error classification.
type Client struct {
	// WorkspaceID is the id segment parsed out of the workspace URL,
	// lowercased.
	WorkspaceID string

	workspaceURL string // origin + path including /workspaces/<id>
	rootURL      string // API root the operations endpoint hangs off
	httpClient   *http.Client
	token        TokenSource
	limiter      *rate.Limiter
	logger       *slog.Logger

	// sleepFunc is called to wait between retries and operation polls.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for the workspace the URL points at.
// The URL must contain a "workspaces/<id>" path segment; everything before
// it is the API root.
func NewClient(workspaceURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) (*Client, error) {
	rootURL, workspaceID, err := parseWorkspaceURL(workspaceURL)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		WorkspaceID:  workspaceID,
		workspaceURL: strings.TrimRight(workspaceURL, "/"),
		rootURL:      rootURL,
		httpClient:   httpClient,
		token:        token,
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		logger:       logger,
		sleepFunc:    timeSleep,
	}, nil
}

// parseWorkspaceURL splits the workspace URL into the API root and the
// workspace id (the path segment after "workspaces").
func parseWorkspaceURL(raw string) (rootURL, workspaceID string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("workspace: parsing workspace URL: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("workspace: workspace URL %q has no usable origin", raw)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if strings.EqualFold(seg, "workspaces") && i+1 < len(segments) && segments[i+1] != "" {
			root := u.Scheme + "://" + u.Host
			if prefix := strings.Join(segments[:i], "/"); prefix != "" {
				root += "/" + prefix
			}

			return root, strings.ToLower(segments[i+1]), nil
		}
	}

	return "", "", fmt.Errorf("workspace: workspace URL %q does not contain a workspace id", raw)
}

// Do executes one logical call, retrying transient failures with jittered
// exponential backoff. reqURL is absolute; continuation URIs and operation
// URLs live outside the workspace path. A non-nil body is sent as JSON.
// The caller closes the response body on success.
func (c *Client) Do(ctx context.Context, method, reqURL string, body []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("workspace: request canceled: %w", err)
		}

		resp, err := c.send(ctx, method, reqURL, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("workspace: request canceled: %w", ctx.Err())
			}

			if attempt >= maxRetries {
				return nil, fmt.Errorf("workspace: %s %s failed after %d retries: %w", method, reqURL, maxRetries, err)
			}

			if pauseErr := c.pause(ctx, method, reqURL, attempt, c.calcBackoff(attempt), err.Error()); pauseErr != nil {
				return nil, pauseErr
			}

			continue
		}

		if resp.StatusCode/100 == 2 {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("url", reqURL),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		apiErr := drainError(resp)

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			cause := fmt.Sprintf("HTTP %d", resp.StatusCode)
			if pauseErr := c.pause(ctx, method, reqURL, attempt, c.retryDelay(resp, attempt), cause); pauseErr != nil {
				return nil, pauseErr
			}

			continue
		}

		if attempt > 0 {
			c.logger.Error("request failed after retries",
				slog.String("method", method),
				slog.String("url", reqURL),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, apiErr
	}
}

// send performs one attempt. The body reader is rebuilt per call so a
// retry never sends a drained reader.
func (c *Client) send(ctx context.Context, method, reqURL string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// drainError reads the failure body and folds the response into an APIError.
func drainError(resp *http.Response) *APIError {
	msg, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err != nil {
		msg = []byte("(failed to read response body)")
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get(requestIDHeader),
		Message:    string(msg),
		Err:        classifyStatus(resp.StatusCode),
	}
}

// pause logs the upcoming retry and waits out the delay.
func (c *Client) pause(ctx context.Context, method, reqURL string, attempt int, delay time.Duration, cause string) error {
	c.logger.Warn("retrying request",
		slog.String("method", method),
		slog.String("url", reqURL),
		slog.Int("attempt", attempt+1),
		slog.Duration("backoff", delay),
		slog.String("cause", cause),
	)

	if err := c.sleepFunc(ctx, delay); err != nil {
		return fmt.Errorf("workspace: request canceled: %w", err)
	}

	return nil
}

// retryDelay picks the wait before the next attempt, preferring the
// server's Retry-After hint on throttled responses.
func (c *Client) retryDelay(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff doubles from baseBackoff up to maxBackoff, with ±25% jitter
// so concurrent clients do not retry in lockstep.
func (c *Client) calcBackoff(attempt int) time.Duration {
	d := min(float64(baseBackoff)*math.Pow(2, float64(attempt)), float64(maxBackoff))
	d *= 1 + jitterFraction*(rand.Float64()*2-1) //nolint:gosec // jitter does not need crypto rand

	return time.Duration(d)
}

// timeSleep is the default sleepFunc.
func timeSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
