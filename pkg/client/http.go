// Package client talks to the remote ledger services: Horizon for account and
// order book queries, the Soroban JSON-RPC endpoint for contract simulation
// and submission, and the price-history API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPError is returned for any response with status >= 400
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an HTTP 404
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// RetryConfig configures retries of idempotent requests
type RetryConfig struct {
	MaxRetries           int
	InitialInterval      time.Duration
	MaxInterval          time.Duration
	RetryableStatusCodes []int
}

// DefaultRetryConfig retries throttling and gateway errors a few times
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:           3,
		InitialInterval:      200 * time.Millisecond,
		MaxInterval:          2 * time.Second,
		RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
	}
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

// WithRetry sets the retry policy. MaxRetries 0 disables retries.
func WithRetry(cfg RetryConfig) Option {
	return func(c *HTTPClient) { c.retry = cfg }
}

// WithRateLimit throttles outgoing requests to rps with the given burst
func WithRateLimit(rps float64, burst int) Option {
	return func(c *HTTPClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithLogger sets the request logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *HTTPClient) { c.log = log }
}

// HTTPClient is a JSON client with retries and client-side throttling
type HTTPClient struct {
	baseURL string
	http    *http.Client
	retry   RetryConfig
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewHTTPClient creates a client rooted at baseURL
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		retry:   DefaultRetryConfig(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON performs a GET and decodes the JSON response into out
func (c *HTTPClient) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	full := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, full, nil, out)
}

// PostJSON posts body as JSON and decodes the JSON response into out
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	full := c.baseURL
	if path != "" {
		full += "/" + strings.TrimPrefix(path, "/")
	}
	return c.do(ctx, http.MethodPost, full, data, out)
}

func (c *HTTPClient) do(ctx context.Context, method, fullURL string, body []byte, out interface{}) error {
	start := time.Now()
	var respBody []byte

	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			httpErr := &HTTPError{StatusCode: resp.StatusCode, Method: method, URL: fullURL, Body: strings.TrimSpace(string(data))}
			if c.retryable(resp.StatusCode) {
				return httpErr
			}
			return backoff.Permanent(httpErr)
		}
		respBody = data
		return nil
	}

	var err error
	if c.retry.MaxRetries > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.retry.InitialInterval
		b.MaxInterval = c.retry.MaxInterval
		err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retry.MaxRetries)), ctx))
	} else {
		err = operation()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
	}

	if err != nil {
		c.log.Debug().Str("method", method).Str("url", fullURL).Dur("duration", time.Since(start)).Err(err).Msg("HTTP request failed")
		return err
	}
	c.log.Debug().Str("method", method).Str("url", fullURL).Dur("duration", time.Since(start)).Msg("HTTP request successful")

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", fullURL, err)
	}
	return nil
}

func (c *HTTPClient) retryable(status int) bool {
	for _, code := range c.retry.RetryableStatusCodes {
		if status == code {
			return true
		}
	}
	return false
}
