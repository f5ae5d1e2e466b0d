// Package search talks to the news search provider. It wraps a Provider
// with rate-limit aware retries and a degrading fallback chain so a busy
// provider degrades results instead of failing a collection run.
package search

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"newswatch/pkg/domain"
)

// Provider executes a single news search request
type Provider interface {
	News(ctx context.Context, query string, maxResults int, window domain.TimeWindow) ([]domain.Article, error)
}

// Client retries rate-limited searches with capped exponential backoff and
// falls back to progressively cheaper requests before giving up. Search
// never returns an error; a query that cannot be served yields an empty
// result and the run continues with the remaining entities.
type Client struct {
	provider       Provider
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	sleep func(ctx context.Context, d time.Duration) bool // replaced in tests
}

// NewClient creates a search client over the given provider
func NewClient(provider Provider, maxRetries int, initialBackoff, maxBackoff time.Duration) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		provider:       provider,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		sleep:          sleepCtx,
	}
}

// Search runs a news search with retries and fallbacks. On persistent
// rate limiting it retries up to maxRetries times, then drops the time
// window, and finally halves the result count before returning empty.
func (c *Client) Search(ctx context.Context, query string, maxResults int, window domain.TimeWindow) []domain.Article {
	var lastErr error
	for attempt := 1; ; attempt++ {
		articles, err := c.provider.News(ctx, query, maxResults, window)
		if err == nil {
			return articles
		}
		lastErr = err

		if !IsRateLimit(err) || attempt >= c.maxRetries {
			break
		}

		wait := addJitter(c.backoff(attempt), 0.1)
		lgr.Printf("[WARN] rate limited on %q (attempt %d/%d), waiting %v: %v", query, attempt, c.maxRetries, wait.Round(time.Millisecond), err)
		if !c.sleep(ctx, wait) {
			return []domain.Article{}
		}
	}

	if ctx.Err() != nil {
		return []domain.Article{}
	}
	lgr.Printf("[WARN] search %q failed (%s): %v, retrying without time window", query, window.Description(), lastErr)

	// first fallback: same request without the recency filter
	articles, err := c.provider.News(ctx, query, maxResults, domain.WindowNone)
	if err == nil {
		return articles
	}

	if IsRateLimit(err) {
		wait := c.backoff(c.maxRetries)
		lgr.Printf("[WARN] rate limited on %q fallback, waiting %v before final attempt", query, wait.Round(time.Millisecond))
		if !c.sleep(ctx, wait) {
			return []domain.Article{}
		}
	}

	// last resort: ask for fewer results, no window
	reduced := maxResults / 2
	if reduced < 1 {
		reduced = 1
	}
	articles, err = c.provider.News(ctx, query, reduced, domain.WindowNone)
	if err == nil {
		return articles
	}

	lgr.Printf("[WARN] search %q exhausted all fallbacks: %v", query, err)
	return []domain.Article{}
}

// backoff returns the capped exponential delay for the given 1-based attempt
func (c *Client) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := c.initialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	if d > c.maxBackoff {
		return c.maxBackoff
	}
	return d
}

// addJitter spreads the delay by up to ±frac to keep retries from
// synchronizing across runs
func addJitter(d time.Duration, frac float64) time.Duration {
	if d <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * frac //nolint:gosec // non-cryptographic randomness is fine for jitter
	return time.Duration(float64(d) * (1 + delta))
}

// sleepCtx waits for the duration or until the context is cancelled,
// reporting whether the full wait completed
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// rateLimitMarkers are substrings providers use to report throttling.
// Matched case-insensitively against the whole error chain.
var rateLimitMarkers = []string{
	"rate limit",
	"rate-limit",
	"too many requests",
	"429",
	"throttl",
	"blocked",
	"denied",
	"limit exceeded",
	"try again later",
}

// IsRateLimit reports whether the error indicates provider throttling,
// either by HTTP status or by message vocabulary
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) && se.Code == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
