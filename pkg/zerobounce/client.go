// Package zerobounce provides a client for the ZeroBounce bulk email
// validation API.
package zerobounce

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/glampguide/funnel-cli/internal/resilience"
)

// Client defines the ZeroBounce operations used by the validation stage.
type Client interface {
	// ValidateBatch submits up to 100 emails for validation and returns
	// one result per email that ZeroBounce recognized.
	ValidateBatch(ctx context.Context, emails []string) ([]Result, error)
}

// Result is the validation verdict for a single email.
type Result struct {
	Email     string `json:"email_address"`
	Status    string `json:"status"`
	SubStatus string `json:"sub_status"`
}

type batchRequest struct {
	APIKey     string       `json:"api_key"`
	EmailBatch []batchEntry `json:"email_batch"`
}

type batchEntry struct {
	EmailAddress string `json:"email_address"`
}

type batchResponse struct {
	EmailBatch []Result `json:"email_batch"`
	Errors     []struct {
		Error string `json:"error"`
	} `json:"errors"`
}

// Option configures the ZeroBounce client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetryConfig overrides the default transient-failure retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a ZeroBounce client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.zerobounce.net/v2",
		http: &http.Client{
			// Bulk validation can take a while server-side.
			Timeout: 90 * time.Second,
		},
		limiter: rate.NewLimiter(1, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateBatch retries transient failures. Network errors and 408/429/5xx
// surface as resilience.UnavailableError and are retried; anything else is
// returned as-is.
func (c *httpClient) ValidateBatch(ctx context.Context, emails []string) ([]Result, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	cfg := c.retry
	cfg.ShouldRetry = resilience.IsTransient
	cfg.OnRetry = resilience.RetryLogger("zerobounce", "validate batch")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]Result, error) {
		return c.validateOnce(ctx, emails)
	})
}

func (c *httpClient) validateOnce(ctx context.Context, emails []string) ([]Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "zerobounce: rate limit")
		}
	}

	req := batchRequest{APIKey: c.apiKey}
	for _, e := range emails {
		req.EmailBatch = append(req.EmailBatch, batchEntry{EmailAddress: e})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "zerobounce: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validatebatch", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "zerobounce: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, resilience.Unavailable("zerobounce", 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.Unavailable("zerobounce", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Unavailable("zerobounce", resp.StatusCode,
				eris.Errorf("validate batch: %s", respBody))
		}
		return nil, eris.Errorf("zerobounce: validate batch: status %d: %s", resp.StatusCode, respBody)
	}

	var decoded batchResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, eris.Wrap(err, "zerobounce: decode response")
	}
	if len(decoded.Errors) > 0 {
		return nil, eris.Errorf("zerobounce: validate batch: %s", decoded.Errors[0].Error)
	}
	return decoded.EmailBatch, nil
}
