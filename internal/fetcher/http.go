package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/glampguide/funnel-cli/internal/resilience"
)

// HTTPOptions configures the export downloader.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// RateLimits sets per-host request rates. Each listed host gets an
	// adaptive limiter seeded at the given rate; hosts not listed are not
	// throttled.
	RateLimits map[string]rate.Limit
	// Retry overrides the transient-failure retry policy.
	Retry *resilience.RetryConfig
}

// DefaultRateLimits throttles the outreach-tool hosts we pull exports from.
func DefaultRateLimits() map[string]rate.Limit {
	return map[string]rate.Limit{
		"api.instantly.ai": 5,
		"app.instantly.ai": 5,
	}
}

// adaptiveLimiter tunes a per-host rate between a quarter and double of its
// seed: throttled down when the host answers 429, eased back up on success.
type adaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	current rate.Limit
	min     rate.Limit
	max     rate.Limit
}

func newAdaptiveLimiter(seed rate.Limit) *adaptiveLimiter {
	return &adaptiveLimiter{
		limiter: rate.NewLimiter(seed, max(int(seed), 1)),
		current: seed,
		min:     seed / 4,
		max:     seed * 2,
	}
}

func (a *adaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *adaptiveLimiter) ease() { a.adjust(1.2) }

func (a *adaptiveLimiter) throttle() { a.adjust(0.5) }

func (a *adaptiveLimiter) adjust(factor rate.Limit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * factor
	if next < a.min {
		next = a.min
	}
	if next > a.max {
		next = a.max
	}
	a.current = next
	a.limiter.SetLimit(next)
}

func (a *adaptiveLimiter) rate() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// HTTPFetcher downloads lead exports over HTTP(S) with per-host adaptive
// rate limiting and transient-failure retries.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]*adaptiveLimiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "funnel-cli/1.0"
	}
	limiters := make(map[string]*adaptiveLimiter, len(opts.RateLimits))
	for host, seed := range opts.RateLimits {
		limiters[host] = newAdaptiveLimiter(seed)
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
	}
}

// Download fetches the export at the given URL and returns the response
// body. Network errors, 429 and 5xx responses are retried with backoff; a
// 429 also throttles the host's rate for subsequent requests.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", rawURL)
	}

	cfg := f.retryConfig()
	cfg.ShouldRetry = resilience.IsTransient
	cfg.OnRetry = resilience.RetryLogger("fetch", "download "+u.Host)
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (io.ReadCloser, error) {
		return f.downloadOnce(ctx, u)
	})
}

func (f *HTTPFetcher) retryConfig() resilience.RetryConfig {
	if f.opts.Retry != nil {
		return *f.opts.Retry
	}
	return resilience.DefaultRetryConfig()
}

func (f *HTTPFetcher) downloadOnce(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	lim := f.limiters[u.Host]
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, resilience.Unavailable("fetch", 0, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close() //nolint:errcheck
		if lim != nil {
			lim.throttle()
			zap.L().Warn("export host rate limited, throttling",
				zap.String("host", u.Host),
				zap.Float64("rate", float64(lim.rate())),
			)
		}
		return nil, resilience.Unavailable("fetch", resp.StatusCode,
			eris.Errorf("download %s: rate limited", u.Host))
	case resilience.RetryableStatus(resp.StatusCode):
		resp.Body.Close() //nolint:errcheck
		return nil, resilience.Unavailable("fetch", resp.StatusCode,
			eris.Errorf("download %s: status %d", u.Host, resp.StatusCode))
	default:
		resp.Body.Close() //nolint:errcheck
		return nil, eris.Errorf("fetch: download %s: status %d", u.String(), resp.StatusCode)
	}

	if lim != nil {
		lim.ease()
	}
	return resp.Body, nil
}
