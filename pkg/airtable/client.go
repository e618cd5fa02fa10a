// Package airtable provides a client for the AlohaCamp property registry,
// an Airtable base tracking properties that are already onboarded or in
// onboarding.
package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/glampguide/funnel-cli/internal/resilience"
)

// Client defines the registry operations used by the resolution engine.
type Client interface {
	// SearchProperties returns registry records whose property name
	// contains the given text (case-insensitive).
	SearchProperties(ctx context.Context, propertyName string) ([]Record, error)
}

// Record is a single Airtable record with its fields.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// PropertyName returns the record's property name field, or "".
func (r Record) PropertyName() string {
	if v, ok := r.Fields["Property Name"].(string); ok {
		return v
	}
	return ""
}

type listResponse struct {
	Records []Record `json:"records"`
}

// Option configures the Airtable client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
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

// WithRateLimit overrides the default rate (5 req/s, Airtable's base quota).
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
	token   string
	baseID  string
	table   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an Airtable client for the given base and table.
func NewClient(token, baseID, table string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseID:  baseID,
		table:   table,
		baseURL: "https://api.airtable.com/v0",
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(5, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchProperties retries transient failures. Network errors, 408/429/5xx,
// and auth rejections (401/403) surface as resilience.UnavailableError so the
// resolver can fail closed; only the first two kinds are retried.
func (c *httpClient) SearchProperties(ctx context.Context, propertyName string) ([]Record, error) {
	if propertyName == "" {
		return nil, nil
	}

	cfg := c.retry
	cfg.ShouldRetry = retryable
	cfg.OnRetry = resilience.RetryLogger("airtable", "search properties")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]Record, error) {
		return c.searchOnce(ctx, propertyName)
	})
}

func (c *httpClient) searchOnce(ctx context.Context, propertyName string) ([]Record, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "airtable: rate limit")
		}
	}

	// Single quotes terminate Airtable formula string literals.
	safe := strings.ReplaceAll(propertyName, "'", "\\'")
	formula := fmt.Sprintf("SEARCH(LOWER('%s'), LOWER({Property Name}))", safe)

	params := url.Values{}
	params.Set("filterByFormula", formula)
	params.Set("maxRecords", "20")

	reqURL := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.baseID, url.PathEscape(c.table), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "airtable: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.Unavailable("airtable", 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.Unavailable("airtable", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resilience.RetryableStatus(resp.StatusCode),
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, resilience.Unavailable("airtable", resp.StatusCode,
			eris.Errorf("search properties: %s", body))
	default:
		return nil, eris.Errorf("airtable: search properties: status %d: %s", resp.StatusCode, body)
	}

	var decoded listResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, eris.Wrap(err, "airtable: decode response")
	}
	return decoded.Records, nil
}

// retryable gates the retry loop. Auth rejections surface as Unavailable but
// never succeed on retry.
func retryable(err error) bool {
	var ue *resilience.UnavailableError
	if errors.As(err, &ue) {
		return ue.StatusCode == 0 || resilience.RetryableStatus(ue.StatusCode)
	}
	return resilience.IsTransient(err)
}
