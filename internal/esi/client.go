// Package esi is the upstream HTTP client for the public game API.
// It is strictly read-only: GET against a closed list of JSON endpoints,
// with per-host rate limiting, retry with backoff, and a circuit breaker.
package esi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/logger"
)

const (
	// Politeness ceilings per upstream host: at most 30 requests/minute
	// with at least 2 seconds between requests. A token every 2 s with
	// burst 1 enforces both.
	requestInterval = 2 * time.Second

	// Retry policy. Backoff starts at 1 s and doubles. Server errors get
	// up to 2 retries, rate-limit responses up to 3, and the whole
	// triggering operation never spends more than 3 retries total.
	baseBackoff      = time.Second
	maxServerRetries = 2
	maxRateRetries   = 3
	totalRetryBudget = 3

	// Circuit breaker: 5 consecutive non-rate-limit failures open the
	// breaker for 5 minutes, then a single probe is allowed through.
	breakerFailures = 5
	breakerOpenFor  = 5 * time.Minute
)

// Client issues GET requests to upstream JSON endpoints.
// Safe for concurrent use.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string

	// interval and backoff default to the documented ceilings; package
	// tests shrink them to keep the suite fast.
	interval time.Duration
	backoff  time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a client for the given upstream base URL.
// The user agent must identify the project and a contact string.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		userAgent: userAgent,
		interval:  requestInterval,
		backoff:   baseBackoff,
		limiters:  make(map[string]*rate.Limiter),
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

// BaseURL returns the configured upstream root.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.interval), 1)
		c.limiters[host] = l
	}
	return l
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[host]
	if !ok {
		b = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        host,
			MaxRequests: 1,
			Timeout:     breakerOpenFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("ESI", fmt.Sprintf("breaker %s: %s -> %s", name, from, to))
			},
		})
		c.breakers[host] = b
	}
	return b
}

// fetchResult carries one transport attempt out of the breaker.
// Rate-limit and parse failures ride in the struct as breaker successes
// so they never count toward opening it.
type fetchResult struct {
	body       []byte
	header     http.Header
	rateErr    *errs.Error
	permanent  *errs.Error
}

// Get fetches baseURL+path with the given query parameters.
// Failures are classified per the taxonomy; retriable ones are retried
// with exponential backoff inside the call.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, _, err := c.getWithHeaders(ctx, path, query)
	return body, err
}

// GetURL fetches an absolute URL on a secondary upstream host (e.g. the
// market aggregator). Same rate-limit, retry, and breaker treatment;
// each host gets its own token bucket and breaker.
func (c *Client) GetURL(ctx context.Context, fullURL string, query url.Values) ([]byte, error) {
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	body, _, err := c.fetch(ctx, fullURL)
	return body, err
}

func (c *Client) getWithHeaders(ctx context.Context, path string, query url.Values) ([]byte, http.Header, error) {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return c.fetch(ctx, full)
}

func (c *Client) fetch(ctx context.Context, full string) ([]byte, http.Header, error) {
	u, err := url.Parse(full)
	if err != nil {
		return nil, nil, errs.Internal("bad endpoint %s: %v", full, err)
	}
	host := u.Host

	budget := totalRetryBudget
	serverRetries := 0
	rateRetries := 0
	backoff := c.backoff

	for {
		body, header, attemptErr := c.attempt(ctx, host, full)
		if attemptErr == nil {
			return body, header, nil
		}
		if ctx.Err() != nil {
			return nil, nil, errs.Cancelled("upstream " + host).Wrap(ctx.Err())
		}

		var te *errs.Error
		if !errors.As(attemptErr, &te) {
			return nil, nil, attemptErr
		}

		wait := backoff
		retry := false
		switch te.Kind {
		case errs.KindRateLimited:
			if rateRetries < maxRateRetries && budget > 0 {
				retry = true
				rateRetries++
				if ra, ok := te.Data["retry_after_seconds"].(int); ok && ra > 0 {
					wait = time.Duration(ra) * time.Second
				}
			}
		case errs.KindSourceUnavailable:
			if te.Retryable && serverRetries < maxServerRetries && budget > 0 {
				retry = true
				serverRetries++
				if isNetwork, _ := te.Data["network"].(bool); isNetwork && backoff >= 2*time.Millisecond {
					// Jitter network retries so a burst of callers does not
					// reconverge on the same instant.
					wait += time.Duration(rand.Int63n(int64(backoff / 2)))
				}
			}
		}
		if !retry {
			return nil, nil, attemptErr
		}
		budget--
		backoff *= 2

		select {
		case <-ctx.Done():
			return nil, nil, errs.Cancelled("upstream " + host).Wrap(ctx.Err())
		case <-time.After(wait):
		}
	}
}

// attempt performs one rate-limited, breaker-guarded request.
func (c *Client) attempt(ctx context.Context, host, fullURL string) ([]byte, http.Header, error) {
	if err := c.limiter(host).Wait(ctx); err != nil {
		return nil, nil, errs.Cancelled("upstream " + host).Wrap(err)
	}

	out, err := c.breaker(host).Execute(func() (any, error) {
		return c.doRequest(ctx, fullURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			e := errs.SourceUnavailable(host, err).With("breaker", "open")
			e.Retryable = false
			return nil, nil, e
		}
		return nil, nil, err
	}

	res := out.(*fetchResult)
	if res.rateErr != nil {
		return nil, nil, res.rateErr
	}
	if res.permanent != nil {
		return nil, nil, res.permanent
	}
	return res.body, res.header, nil
}

// doRequest runs inside the breaker. The returned error is what the
// breaker counts as a failure; rate limits and permanent client errors
// are returned as successes and re-raised by the caller.
func (c *Client) doRequest(ctx context.Context, fullURL string) (*fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, errs.Internal("build request: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Cancelled("upstream " + req.URL.Host).Wrap(ctx.Err())
		}
		e := errs.SourceUnavailable(req.URL.Host, err).With("network", true)
		return nil, e
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errs.SourceUnavailable(req.URL.Host, err).With("network", true)
		}
		return &fetchResult{body: body, header: resp.Header}, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 10
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if n, err := strconv.Atoi(ra); err == nil && n >= 0 {
				retryAfter = n
			}
		}
		// Breaker success: throttling is upstream protecting itself, not
		// upstream being down.
		return &fetchResult{rateErr: errs.RateLimited(req.URL.Host, retryAfter)}, nil

	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errs.SourceUnavailable(req.URL.Host,
			fmt.Errorf("upstream %d: %s", resp.StatusCode, string(body)))

	default:
		// 4xx other than 429: permanent, do not retry, does not trip the breaker.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e := errs.New(errs.KindSourceUnavailable, "upstream %d: %s", resp.StatusCode, string(body))
		e.Retryable = false
		e.With("status", resp.StatusCode)
		return &fetchResult{permanent: e}, nil
	}
}

// HealthCheck pings the upstream status endpoint.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.Get(ctx, "/status/", url.Values{"datasource": {"tranquility"}})
	return err == nil
}
