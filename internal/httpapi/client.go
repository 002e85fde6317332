package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
)

// Client talks to a running Server.
type Client struct {
	http *http.Client
	base string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client. It should not set a
// Timeout if Stream is used, since that would cut the stream off.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		http: &http.Client{},
		base: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the server's current state.
func (c *Client) State(ctx context.Context) (fetch.State, error) {
	var st fetch.State
	err := c.do(ctx, http.MethodGet, "/api/v1/state", http.StatusOK, &st)
	return st, err
}

// Fetch asks the server to start a new fetch cycle and returns the loading
// state it reported.
func (c *Client) Fetch(ctx context.Context) (fetch.State, error) {
	var st fetch.State
	err := c.do(ctx, http.MethodPost, "/api/v1/fetch", http.StatusAccepted, &st)
	return st, err
}

// Stream opens the state stream. The first event is the state at the time of
// the call. The channel closes when ctx is done or the server ends the stream.
func (c *Client) Stream(ctx context.Context) (<-chan StateEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/state/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("httpapi: create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpapi: stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("httpapi: stream: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return ReadStates(ctx, resp.Body), nil
}

func (c *Client) do(ctx context.Context, method, path string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("httpapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpapi: read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("httpapi: %s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpapi: decode response: %w", err)
	}
	return nil
}
