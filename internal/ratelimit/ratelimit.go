package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akarpov/jobscout/internal/model"
)

// SiteRateLimiter enforces a minimum delay between requests to the same provider.
type SiteRateLimiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time // key: site id
	delayFor func(site string) time.Duration
}

// NewSiteRateLimiter creates a rate limiter. delayFor returns the minimum
// gap for a given site (per-site overrides live in configuration).
func NewSiteRateLimiter(delayFor func(site string) time.Duration) *SiteRateLimiter {
	return &SiteRateLimiter{
		lastCall: make(map[string]time.Time),
		delayFor: delayFor,
	}
}

// Wait blocks until enough time has passed since the last request to the
// given site. Returns an error if the context is cancelled while waiting.
func (r *SiteRateLimiter) Wait(ctx context.Context, site string) error {
	minDelay := r.delayFor(site)

	r.mu.Lock()
	last, ok := r.lastCall[site]
	now := time.Now()

	if !ok || now.Sub(last) >= minDelay {
		r.lastCall[site] = now
		r.mu.Unlock()
		return nil
	}

	remaining := minDelay - now.Sub(last)
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", site, ctx.Err())
	case <-time.After(remaining):
	}

	r.mu.Lock()
	r.lastCall[site] = time.Now()
	r.mu.Unlock()

	return nil
}

// RateLimitedSearcher is a decorator that gates provider searches through
// the shared site rate limiter before delegating.
type RateLimitedSearcher struct {
	inner   model.JobSearcher
	limiter *SiteRateLimiter
	site    string
}

// NewRateLimitedSearcher wraps a JobSearcher with per-site rate limiting.
// All searchers targeting the same site should share the same limiter.
func NewRateLimitedSearcher(inner model.JobSearcher, limiter *SiteRateLimiter, site string) *RateLimitedSearcher {
	return &RateLimitedSearcher{
		inner:   inner,
		limiter: limiter,
		site:    site,
	}
}

// Search waits for the rate limiter to allow a request, then delegates.
func (s *RateLimitedSearcher) Search(ctx context.Context, q model.SiteQuery) (model.SearchResult, error) {
	if err := s.limiter.Wait(ctx, s.site); err != nil {
		return model.SearchResult{}, err
	}
	return s.inner.Search(ctx, q)
}
