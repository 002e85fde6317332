package users

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultEndpoint is the public demo API the app reads from.
const DefaultEndpoint = "https://jsonplaceholder.typicode.com/users"

// DefaultTimeout bounds a single request when no other timeout is configured.
const DefaultTimeout = 30 * time.Second

// Source yields the full list of users in server order.
type Source interface {
	// ListUsers performs one round-trip. Errors are *FetchError values of
	// KindTransport or KindDecodeFailure.
	ListUsers(ctx context.Context) ([]User, error)
}

// Compile-time interface check.
var _ Source = (*HTTPClient)(nil)

// HTTPClient implements Source with a plain GET against a fixed endpoint.
type HTTPClient struct {
	http     *http.Client
	endpoint string
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(url string) ClientOption {
	return func(c *HTTPClient) {
		c.endpoint = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// NewHTTPClient creates a client for DefaultEndpoint unless overridden.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
		endpoint: DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL the client fetches from.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// ListUsers issues GET <endpoint> with no body and no extra headers and
// decodes the response with Decode.
func (c *HTTPClient) ListUsers(ctx context.Context) ([]User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("create request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("list users: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewTransportError(fmt.Errorf("list users: HTTP %d: %s", resp.StatusCode, string(body)))
	}

	return Decode(body)
}
