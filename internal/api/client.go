package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxBodyBytes = 4 << 20

// HeaderSource yields the Authorization header value, or ok=false for an
// anonymous request.
type HeaderSource func() (value string, ok bool)

// HeaderTransport attaches the Authorization header from Source to every
// request that does not already carry one.
type HeaderTransport struct {
	Base   http.RoundTripper
	Source HeaderSource
}

// RoundTrip implements http.RoundTripper.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Source == nil || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}
	value, ok := t.Source()
	if !ok {
		return base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", value)
	return base.RoundTrip(clone)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode <= 299
}

// Client issues requests relative to the instance API base URL.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
}

// New creates a client for apiBase. apiBase must be absolute; a trailing slash
// is added when missing.
func New(apiBase string, httpClient *http.Client, userAgent string) (*Client, error) {
	if !strings.HasSuffix(apiBase, "/") {
		apiBase += "/"
	}
	u, err := url.Parse(apiBase)
	if err != nil {
		return nil, fmt.Errorf("parse api base: %w", err)
	}
	if !u.IsAbs() {
		return nil, errors.New("api base must be absolute")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient, userAgent: userAgent}, nil
}

// Resolve returns the absolute URL of path relative to the API base.
func (c *Client) Resolve(path string) string {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return c.base.String() + strings.TrimPrefix(path, "/")
	}
	return c.base.ResolveReference(ref).String()
}

// HTTPClient returns the underlying client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

// Post issues a POST without body.
func (c *Client) Post(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, nil, "")
}

// PostForm issues a POST with a form-encoded body.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.Resolve(path), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
	}, nil
}
