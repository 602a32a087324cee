// Package gateway implements the HTTP transport behind the resource graph:
// request encoding, retries, response normalization, and optional caching of
// GET responses.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/restgraph/internal/cache"
	"github.com/fivetwenty-io/restgraph/internal/constants"
	"github.com/fivetwenty-io/restgraph/pkg/restgraph"
)

// Static errors for err113 compliance.
var (
	ErrBaseURLRequired = errors.New("base URL is required")
)

// Client executes graph requests over HTTP. It implements restgraph.Gateway.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	userAgent    string
	logger       restgraph.Logger
	debug        bool
	interceptors *InterceptorChain
	cache        cache.Cache
	cacheTTL     time.Duration
}

// Option configures the gateway client.
type Option func(*Client)

// WithLogger sets the logger used for debug output.
func WithLogger(logger restgraph.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging through the interceptor chain.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithHeaders stamps static headers onto every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.interceptors.AddRequestInterceptor(HeaderInterceptor(headers))
	}
}

// WithRetryConfig tunes the transport-level retry policy.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithCache caches GET responses for ttl and invalidates them on mutations
// against the same address.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store

		if ttl <= 0 {
			ttl = constants.DefaultCacheTTL
		}

		c.cacheTTL = ttl
	}
}

// WithInterceptor appends a custom request interceptor.
func WithInterceptor(interceptor RequestInterceptor) Option {
	return func(c *Client) {
		c.interceptors.AddRequestInterceptor(interceptor)
	}
}

// New creates a gateway client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = constants.DefaultRetryMax
	httpClient.RetryWaitMin = constants.DefaultRetryWaitMin
	httpClient.RetryWaitMax = constants.DefaultRetryWaitMax
	httpClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	httpClient.Logger = nil

	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   httpClient,
		userAgent:    "restgraph/1.0",
		interceptors: NewInterceptorChain(),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.debug && client.logger != nil {
		client.interceptors.AddRequestInterceptor(LoggingInterceptor(client.logger))
		client.interceptors.AddResponseInterceptor(LoggingResponseInterceptor(client.logger))
	}

	return client, nil
}

// Execute implements restgraph.Gateway. The response body is normalized into
// a single map shape: an empty body becomes an empty map, and a top-level
// JSON array is wrapped under an "items" key.
func (c *Client) Execute(ctx context.Context, verb, address string, body any, contentType string) (map[string]any, error) {
	targetURL := c.resolve(address)

	if verb == restgraph.VerbGet {
		if cached, ok := c.cachedResponse(ctx, targetURL); ok {
			return cached, nil
		}
	}

	rawBody, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Verb:    verb,
		Address: targetURL,
		Headers: make(http.Header),
		Body:    rawBody,
	}

	req.Headers.Set("Accept", "application/json")
	req.Headers.Set("User-Agent", c.userAgent)

	if rawBody != nil {
		if contentType == "" {
			contentType = "application/json"
		}

		req.Headers.Set("Content-Type", contentType)
	}

	err = c.interceptors.ExecuteRequestInterceptors(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.roundTrip(ctx, req)

	interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, req, resp)
	if err != nil {
		return nil, err
	}

	if interceptErr != nil {
		return nil, interceptErr
	}

	err = statusError(resp, targetURL)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeBody(resp.Body, targetURL)
	if err != nil {
		return nil, err
	}

	c.updateCache(ctx, verb, targetURL, resp.Body)

	return decoded, nil
}

// resolve maps graph addresses onto URLs: absolute addresses pass through,
// everything else hangs off the base URL.
func (c *Client) resolve(address string) string {
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return address
	}

	return c.baseURL + "/" + strings.TrimLeft(address, "/")
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	raw, err := json.Marshal(restgraph.NormalizePayload(body))
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	return raw, nil
}

func (c *Client) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Verb, req.Address, req.Body)
	if err != nil {
		return &Response{Error: err}, fmt.Errorf("building request: %w", err)
	}

	for name, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Set(name, value)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &Response{Error: err}, fmt.Errorf("executing %s %s: %w", req.Verb, req.Address, err)
	}

	defer func() {
		_ = httpResp.Body.Close()
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &Response{StatusCode: httpResp.StatusCode, Error: err},
			fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}, nil
}

func statusError(resp *Response, targetURL string) error {
	if resp.StatusCode == http.StatusNotFound {
		return &restgraph.NotFoundError{Address: targetURL}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &restgraph.APIError{
			StatusCode: resp.StatusCode,
			Address:    targetURL,
			Message:    errorMessage(resp.Body),
		}
	}

	return nil
}

// errorMessage pulls the server's message field out of an error body when it
// has one, falling back to the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}

	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}

	return strings.TrimSpace(string(body))
}

func decodeBody(body []byte, targetURL string) (map[string]any, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]any{}, nil
	}

	var decoded any

	err := json.Unmarshal(body, &decoded)
	if err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", targetURL, err)
	}

	switch value := decoded.(type) {
	case map[string]any:
		return value, nil
	case []any:
		return map[string]any{"items": value}, nil
	default:
		return map[string]any{"value": value}, nil
	}
}

func (c *Client) cachedResponse(ctx context.Context, targetURL string) (map[string]any, bool) {
	if c.cache == nil {
		return nil, false
	}

	entry, err := c.cache.Get(ctx, targetURL)
	if err != nil {
		return nil, false
	}

	decoded, err := decodeBody(entry.Data, targetURL)
	if err != nil {
		return nil, false
	}

	if c.logger != nil {
		c.logger.Debug("cache hit", map[string]interface{}{"address": targetURL})
	}

	return decoded, true
}

func (c *Client) updateCache(ctx context.Context, verb, targetURL string, body []byte) {
	if c.cache == nil {
		return
	}

	if verb == restgraph.VerbGet {
		_ = c.cache.Set(ctx, targetURL, &cache.Entry{
			Data:      body,
			ExpiresAt: time.Now().Add(c.cacheTTL),
		})

		return
	}

	// A mutation makes any cached copy of the same address stale.
	_ = c.cache.Delete(ctx, targetURL)
}
