// Package hubspot provides a rate-limited client for the HubSpot CRM v3
// search API, covering the contact and deal lookups used by the funnel.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/glampguide/funnel-cli/internal/resilience"
)

// Client defines the HubSpot CRM operations used by the resolution engine.
type Client interface {
	// SearchContactsByEmail returns contacts whose email exactly matches.
	SearchContactsByEmail(ctx context.Context, email string) ([]Object, error)
	// SearchContactsByPhone returns contacts whose phone exactly matches
	// the given E.164 number.
	SearchContactsByPhone(ctx context.Context, phoneE164 string) ([]Object, error)
	// SearchContactsByName returns contacts whose first or last name
	// contains the given tokens.
	SearchContactsByName(ctx context.Context, firstName, lastName string) ([]Object, error)
	// SearchDealsByName returns deals whose name contains the given tokens.
	SearchDealsByName(ctx context.Context, name string) ([]Object, error)
}

// Object is a HubSpot CRM object (contact or deal) with its requested
// properties.
type Object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Property returns a property value, or "" if absent.
func (o Object) Property(name string) string {
	return o.Properties[name]
}

// filter is a single HubSpot search filter.
type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

// searchRequest is the body of a CRM v3 search call.
type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type searchResponse struct {
	Total   int      `json:"total"`
	Results []Object `json:"results"`
}

var contactProperties = []string{"email", "firstname", "lastname", "phone", "company"}

var dealProperties = []string{"dealname", "dealstage", "amount", "closedate"}

// Option configures the HubSpot client.
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

// WithRateLimit overrides the default request rate (4 req/s, HubSpot's
// private-app search quota is ~4/s).
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
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a HubSpot client authenticated with a private-app token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://api.hubapi.com",
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(4, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// search posts a CRM search request, retrying transient failures. Network
// errors, 408/429/5xx, and auth rejections (401/403) surface as
// resilience.UnavailableError so callers can distinguish "could not check"
// from "checked, no match"; only the first two kinds are retried.
func (c *httpClient) search(ctx context.Context, objectType string, req searchRequest) ([]Object, error) {
	cfg := c.retry
	cfg.ShouldRetry = retryable
	cfg.OnRetry = resilience.RetryLogger("hubspot", "search "+objectType)
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]Object, error) {
		return c.searchOnce(ctx, objectType, req)
	})
}

func (c *httpClient) searchOnce(ctx context.Context, objectType string, req searchRequest) ([]Object, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "hubspot: rate limit")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "hubspot: marshal search request")
	}

	url := fmt.Sprintf("%s/crm/v3/objects/%s/search", c.baseURL, objectType)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "hubspot: build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, resilience.Unavailable("hubspot", 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.Unavailable("hubspot", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resilience.RetryableStatus(resp.StatusCode),
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, resilience.Unavailable("hubspot", resp.StatusCode,
			eris.Errorf("search %s: %s", objectType, truncate(respBody, 200)))
	default:
		return nil, eris.Errorf("hubspot: search %s: status %d: %s",
			objectType, resp.StatusCode, truncate(respBody, 200))
	}

	var decoded searchResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, eris.Wrap(err, "hubspot: decode search response")
	}
	return decoded.Results, nil
}

// retryable gates the retry loop. Auth rejections surface as Unavailable
// for the resolver's fail-closed semantics but never succeed on retry.
func retryable(err error) bool {
	var ue *resilience.UnavailableError
	if errors.As(err, &ue) {
		return ue.StatusCode == 0 || resilience.RetryableStatus(ue.StatusCode)
	}
	return resilience.IsTransient(err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
