// Package api implements the HTTP client for the tutoring backend.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/lmarques/tutorchat/internal/errors"
)

const defaultTimeout = 30 * time.Second

// Client issues authenticated REST calls against the tutoring backend.
// Every request carries a bearer token from the TokenSource; a 401 answer
// triggers exactly one token refresh and retry before the auth failure is
// surfaced to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	mu         sync.RWMutex
	closed     bool
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (used in tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a new backend client. The token source is injected so
// the client carries no process-wide auth state.
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend URL cannot be empty")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}

	client := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close marks the client unusable. Pending requests are allowed to finish;
// their results are discarded by the session layer's stale-response guard.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do executes one authenticated request and returns the response body.
// Non-2xx statuses are mapped to the typed error taxonomy; a 401 is retried
// once after refreshing the token.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if c.IsClosed() {
		return nil, fmt.Errorf("client is closed")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	// Reread the body on retry: buffer it up front.
	var payload []byte
	if body != nil {
		payload, err = io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	respBody, status, err := c.roundTrip(ctx, method, path, payload, contentType, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		// One refresh, one retry. Anything after that is the user's problem
		// to solve by logging in again.
		token, refreshErr := c.tokens.Refresh(ctx)
		if refreshErr != nil {
			return nil, apierrors.NewAuthError(http.StatusUnauthorized, "token refresh failed")
		}

		respBody, status, err = c.roundTrip(ctx, method, path, payload, contentType, token)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, apierrors.NewAuthError(http.StatusUnauthorized, "session expired")
		}
	}

	if status < 200 || status > 299 {
		return nil, apierrors.NewAPIError(status, path, errorDetail(respBody))
	}

	return respBody, nil
}

// roundTrip performs a single HTTP exchange without auth retry logic.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, contentType, token string) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		body = strings.NewReader(string(payload))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, 0, apierrors.NewTimeoutError(path)
		}
		return nil, 0, apierrors.NewNetworkError(path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, apierrors.NewNetworkError(path, err)
	}

	return respBody, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorDetail extracts the backend's {"detail": ...} message, falling back
// to a truncated raw body.
func errorDetail(body []byte) string {
	detail := detailField(body)
	if detail != "" {
		return detail
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
