// Package arcgis queries ArcGIS FeatureServer layers and decodes their
// feature-set responses.
package arcgis

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Response is a raw layer query result. The status is not judged here;
// callers decide how to treat non-200 replies.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the layer answered 200.
func (r *Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the default HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Client performs FeatureServer layer queries.
type Client struct {
	httpClient *http.Client
	retry      RetryPolicy
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query issues a GET against layerURL with params as the query string.
// With a retry policy set, network errors and transient statuses are
// retried before the last outcome is returned.
func (c *Client) Query(ctx context.Context, layerURL string, params url.Values) (*Response, error) {
	reqURL := layerURL
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return c.withRetry(ctx, layerURL, func() (*Response, error) {
		return c.get(ctx, reqURL)
	})
}

func (c *Client) get(ctx context.Context, reqURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: read body")
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
