package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// maxBodySize caps how much of a response body is read.
	maxBodySize = 8 << 20

	// maxErrorBody is how much of a non-2xx body is kept in UpstreamError.
	maxErrorBody = 256

	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "graylogic-galaxie"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the scheme and host of the API, e.g. https://galaxie.app.
	BaseURL string

	// Timeout bounds each request. Default: 10s.
	Timeout time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// HTTPClient overrides the HTTP client. Its Timeout is left alone.
	HTTPClient *http.Client
}

// Client performs single-shot GETs against the Galaxie REST API.
// It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

// New creates a Client.
//
// Parameters:
//   - opts: BaseURL is required; Timeout and UserAgent have defaults
//
// Returns:
//   - *Client: Client sharing one HTTP transport across feeds
//   - error: If the base URL is not an absolute http(s) URL
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:   base,
		http:      httpClient,
		userAgent: userAgent,
	}, nil
}

// Fetch performs one GET for kind and decodes the body.
//
// Parameters:
//   - ctx: Cancels the request
//   - kind: Feed to fetch
//
// Returns:
//   - Payload: Decoded records
//   - error: *TransportError, *UpstreamError or *ParseError
//
// Example:
//
//	p, err := client.Fetch(ctx, feed.Live)
//	if feed.Outcome(err) == "transport" {
//	    // keep the previous payload
//	}
func (c *Client) Fetch(ctx context.Context, kind Kind) (Payload, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}

	body, err := c.get(ctx, kind.String(), kind.Path())
	if err != nil {
		return nil, err
	}

	payload, err := DecodePayload(body)
	if err != nil {
		return nil, &ParseError{Endpoint: kind.String(), Err: err}
	}
	return payload, nil
}

// FetchWeather fetches the current weather object for a live run.
func (c *Client) FetchWeather(ctx context.Context, runID string) (Record, error) {
	const endpoint = "weather"

	body, err := c.get(ctx, endpoint, "/api/runs/"+url.PathEscape(runID)+"/weather/")
	if err != nil {
		return nil, err
	}

	record, err := DecodeRecord(body)
	if err != nil {
		return nil, &ParseError{Endpoint: endpoint, Err: err}
	}
	return record, nil
}

// StreamURL returns the WebSocket URL of the push stream for a run.
func (c *Client) StreamURL(runID string) string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/ws/runs/" + url.PathEscape(runID) + "/"
	return u.String()
}

// Close releases idle connections held by the HTTP client.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+path, nil)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // Diagnostic only
		return nil, &UpstreamError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	if len(body) > maxBodySize {
		return nil, &ParseError{Endpoint: endpoint, Err: fmt.Errorf("body exceeds %d bytes", maxBodySize)}
	}
	return body, nil
}
