package model

import (
	"errors"
	"fmt"
	"time"
)

// ProviderError wraps a failed provider call. Transient marks whether the
// failure is worth retrying (timeouts, 5xx, 429); 4xx and malformed-query
// failures are permanent and must not be retried.
type ProviderError struct {
	Source     string
	StatusCode int           // zero when the failure happened before a response
	RetryAfter time.Duration // from a Retry-After header, zero if absent
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable provider failure.
// Only a ProviderError marked transient qualifies: bare context errors
// mean the caller's own deadline or cancellation and never retry, while a
// ProviderError wrapping a deadline (one attempt timing out) still does.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}

// ErrLocationNotFound is returned when a location cannot be resolved to a
// provider location id and no cached entry (fresh or stale) exists.
var ErrLocationNotFound = errors.New("location not found")

// ErrLocationUnresolved is returned by adapters that require a location id
// when they are handed unresolved free text. It is permanent.
var ErrLocationUnresolved = errors.New("location_unresolved")
