package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/akarpov/jobscout/internal/model"
)

// RetrySearcher is a decorator that retries transient provider failures
// with exponential backoff and jitter before delegating to the wrapped
// JobSearcher. Permanent failures are returned immediately.
type RetrySearcher struct {
	inner      model.JobSearcher
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewRetrySearcher wraps a JobSearcher with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewRetrySearcher(inner model.JobSearcher, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetrySearcher {
	return &RetrySearcher{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// Search attempts the provider search, retrying on transient errors.
func (s *RetrySearcher) Search(ctx context.Context, q model.SiteQuery) (model.SearchResult, error) {
	result, err := s.inner.Search(ctx, q)
	if err == nil {
		return result, nil
	}

	if !model.IsTransient(err) {
		return model.SearchResult{}, err
	}

	lastErr := err
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		delay := s.backoffDelay(attempt, lastErr)

		s.logger.Warn("retrying after transient error",
			"attempt", attempt,
			"max_retries", s.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return model.SearchResult{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		result, err = s.inner.Search(ctx, q)
		if err == nil {
			return result, nil
		}

		if !model.IsTransient(err) {
			return model.SearchResult{}, err
		}
		lastErr = err
	}

	return model.SearchResult{}, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (s *RetrySearcher) backoffDelay(attempt int, err error) time.Duration {
	var pe *model.ProviderError
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := s.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	// Apply ±30% jitter
	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return delay
}
