package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ClientConfig configures a provider client
type ClientConfig struct {
	Source    string
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	Retry     RetryPolicy
	Limiter   *RateLimiter
}

// Client is the rate-limited, retrying HTTP client every source adapter
// fetches through
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	source     string
	apiKey     string
	userAgent  string
	retry      RetryPolicy
	limiter    *RateLimiter
}

// NewClient creates a provider client. A zero-value retry policy falls
// back to the default; a nil limiter disables rate limiting.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retry := cfg.Retry
	if retry.BackoffFactor == 0 {
		retry = DefaultRetryPolicy()
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "InvestorPortfolioOS/1.0"
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		BaseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		source:    cfg.Source,
		apiKey:    cfg.APIKey,
		userAgent: userAgent,
		retry:     retry,
		limiter:   cfg.Limiter,
	}
}

// Source returns the provider name the client talks to.
func (c *Client) Source() string {
	return c.source
}

// GetJSON fetches path with the given query, retrying transient upstream
// failures, and decodes the JSON response into result. Every attempt
// takes a fresh rate-limiter slot.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, result interface{}) error {
	return WithRetry(ctx, c.retry, IsTransient, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Acquire(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}
		return c.makeRequest(ctx, http.MethodGet, path, query, result)
	})
}

// makeRequest performs one HTTP round trip against the provider
func (c *Client) makeRequest(ctx context.Context, method, path string, query url.Values, result interface{}) error {
	reqURL := c.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return NewFatalError(c.source, fmt.Sprintf("create request: %v", err), err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// timeouts and connection resets are worth another attempt
		return NewTransientError(c.source, fmt.Sprintf("request failed: %v", err), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewTransientError(c.source, fmt.Sprintf("read response body: %v", err), err)
	}

	if resp.StatusCode >= 400 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			return classifyStatus(c.source, resp.StatusCode, errorResp.Error)
		}
		return classifyStatus(c.source, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return NewFatalError(c.source, fmt.Sprintf("unmarshal response: %v", err), err)
		}
	}

	return nil
}

// Close is provided for interface compatibility; the underlying HTTP
// client needs no explicit cleanup.
func (c *Client) Close() error {
	return nil
}
