// Package poll implements the request/response surface of a polling agent:
// fetching messages newer than a watermark and submitting outbound messages
// to an HTTP message store.
package poll

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/agentwire/codec"
	"github.com/hupe1980/agentwire/core"
)

// APIKeyHeader carries the static API key on every request.
const APIKeyHeader = "X-API-Key"

const maxBodyBytes = 4 << 20

// Options configures a Client.
type Options struct {
	APIKey         string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	UserAgent      string
}

// Client talks to the message store at BaseURL.
type Client struct {
	endpoint string
	opts     Options
}

// StatusError reports a non-success HTTP status from the message store.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, optFns ...func(o *Options)) (*Client, error) {
	opts := Options{
		RequestTimeout: 30 * time.Second,
		UserAgent:      "agentwire",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("poll: invalid API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("poll: API URL must be http or https, got %q", baseURL)
	}

	endpoint, err := url.JoinPath(strings.TrimRight(baseURL, "/"), "messages")
	if err != nil {
		return nil, fmt.Errorf("poll: invalid API URL: %w", err)
	}

	return &Client{endpoint: endpoint, opts: opts}, nil
}

// Endpoint returns the messages endpoint.
func (c *Client) Endpoint() string { return c.endpoint }

// Fetch returns raw records with a timestamp strictly greater than since.
// Records are decoded individually by the caller so one bad record does not
// discard the batch.
func (c *Client) Fetch(ctx context.Context, since float64) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	q := url.Values{"since": {strconv.FormatFloat(since, 'f', -1, 64)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch messages: %w", &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)})
	}

	return codec.DecodeBatch(body)
}

// Submit posts one outbound message. Failures are returned as *core.SendError.
func (c *Client) Submit(ctx context.Context, out codec.Outbound) error {
	body, err := codec.EncodeOutbound(out)
	if err != nil {
		return &core.SendError{PeerID: out.ToPeerID, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &core.SendError{PeerID: out.ToPeerID, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return &core.SendError{PeerID: out.ToPeerID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &core.SendError{
			PeerID:     out.ToPeerID,
			StatusCode: resp.StatusCode,
			Err:        &StatusError{StatusCode: resp.StatusCode, Body: snippet(data)},
		}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.opts.APIKey)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
}

// IsStatus reports whether err carries an HTTP status error with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}
