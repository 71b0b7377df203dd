package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Ryan-Har/rumorlens/api"
	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/internal/tokenstore"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout is generous because batch detection can take minutes.
const DefaultTimeout = 10 * time.Minute

// RequestIDHeader carries a fresh UUID on every request.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody caps how much of a failed response is read for its detail.
const maxErrorBody = 64 << 10

// Request describes one API call. Path is relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any        // JSON-encoded when non-nil
	Form   url.Values // form-encoded; takes precedence over Body
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the http.Client requests are sent through. The client
// is copied, so the caller's value is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the request timeout. It wins over the timeout of a client
// given to WithHTTPClient regardless of option order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(logger logr.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

// WithFailureHook sets the function run when the session cannot be recovered.
func WithFailureHook(fn func()) Option {
	return func(c *Client) {
		c.onFailure = fn
	}
}

// Client is the single HTTP entry point to the API. It attaches the bearer
// token, decodes errors and runs the refresh-and-retry protocol on 401.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	tokens    *tokenstore.Store
	log       logr.Logger
	onFailure func()

	state        atomic.Int32
	refreshGroup singleflight.Group
}

// New creates a Client for baseURL (server URL plus API prefix).
func New(baseURL string, tokens *tokenstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	var hc http.Client
	if c.http != nil {
		hc = *c.http
	}
	switch {
	case c.timeout > 0:
		hc.Timeout = c.timeout
	case hc.Timeout <= 0:
		hc.Timeout = DefaultTimeout
	}
	c.http = &hc
	c.timeout = hc.Timeout
	c.log = c.log.WithName("transport")
	return c
}

// SetFailureHook replaces the failure hook after construction.
func (c *Client) SetFailureHook(fn func()) {
	c.onFailure = fn
}

// Timeout returns the effective request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// BaseURL returns the URL every request path is joined onto.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put performs a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Delete performs a DELETE, with an optional JSON body.
func (c *Client) Delete(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Body: body}, out)
}

// Do sends req with the current access token. A 401 triggers at most one
// refresh and one resubmission of req; see handleUnauthorized. On success the
// response body is decoded into out when out is non-nil.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	sent := c.tokens.AccessToken()
	err := c.send(ctx, req, sent, out)
	apiErr, ok := asUnauthorized(err)
	if !ok {
		return err
	}
	return c.handleUnauthorized(ctx, req, sent, apiErr, out)
}

// send performs one HTTP exchange with no retry logic.
func (c *Client) send(ctx context.Context, req *Request, accessToken string, out any) error {
	defer logutil.NewTimingLogger(c.log, time.Now(), "request completed", "method", req.Method, "path", req.Path)()

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return err
	}
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(req.Method, req.Path, resp, out)
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.Method, req.Path, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	return httpReq, nil
}

// decodeResponse turns a non-2xx response into *api.Error and decodes a 2xx
// body into out.
func decodeResponse(method, path string, resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return api.NewError(method, path, resp.StatusCode, body)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
