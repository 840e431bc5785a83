package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/akarpov/jobscout/internal/model"
)

type fakeSearcher struct {
	calls   int
	errs    []error // error per call; nil means success
	records []model.JobRecord
}

func (f *fakeSearcher) Search(_ context.Context, _ model.SiteQuery) (model.SearchResult, error) {
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	if err != nil {
		return model.SearchResult{}, err
	}
	return model.SearchResult{Records: f.records}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func transientErr() error {
	return &model.ProviderError{Source: "hh", StatusCode: 503, Transient: true, Err: errors.New("server error")}
}

func permanentErr() error {
	return &model.ProviderError{Source: "hh", StatusCode: 400, Transient: false, Err: errors.New("request rejected")}
}

func TestSearch_SuccessFirstTry(t *testing.T) {
	inner := &fakeSearcher{records: []model.JobRecord{{ExternalID: "1"}}}
	s := NewRetrySearcher(inner, 2, time.Millisecond, discardLogger())

	res, err := s.Search(context.Background(), model.SiteQuery{Keyword: "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(res.Records))
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestSearch_RetriesTransientThenSucceeds(t *testing.T) {
	inner := &fakeSearcher{
		errs:    []error{transientErr(), transientErr(), nil},
		records: []model.JobRecord{{ExternalID: "1"}},
	}
	s := NewRetrySearcher(inner, 2, time.Millisecond, discardLogger())

	res, err := s.Search(context.Background(), model.SiteQuery{Keyword: "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(res.Records))
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestSearch_PermanentErrorNotRetried(t *testing.T) {
	inner := &fakeSearcher{errs: []error{permanentErr()}}
	s := NewRetrySearcher(inner, 3, time.Millisecond, discardLogger())

	_, err := s.Search(context.Background(), model.SiteQuery{Keyword: "go"})
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call for a permanent error, got %d", inner.calls)
	}
}

func TestSearch_ExhaustsRetries(t *testing.T) {
	inner := &fakeSearcher{errs: []error{transientErr(), transientErr(), transientErr()}}
	s := NewRetrySearcher(inner, 2, time.Millisecond, discardLogger())

	_, err := s.Search(context.Background(), model.SiteQuery{Keyword: "go"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", inner.calls)
	}
	var perr *model.ProviderError
	if !errors.As(err, &perr) {
		t.Errorf("last error should surface as ProviderError, got %v", err)
	}
}

func TestSearch_ContextCancelledDuringBackoff(t *testing.T) {
	inner := &fakeSearcher{errs: []error{transientErr(), transientErr()}}
	s := NewRetrySearcher(inner, 2, 5*time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := s.Search(ctx, model.SiteQuery{Keyword: "go"})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation should interrupt the backoff sleep")
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", inner.calls)
	}
}

func TestBackoffDelay_RetryAfterPrecedence(t *testing.T) {
	s := NewRetrySearcher(nil, 2, time.Second, discardLogger())

	err := &model.ProviderError{Source: "hh", StatusCode: 429, RetryAfter: 42 * time.Second, Transient: true, Err: errors.New("rate limited")}
	if got := s.backoffDelay(1, err); got != 42*time.Second {
		t.Errorf("backoffDelay = %v, want Retry-After value 42s", got)
	}
}

func TestBackoffDelay_ExponentialWithJitter(t *testing.T) {
	s := NewRetrySearcher(nil, 3, time.Second, discardLogger())

	for attempt, base := range map[int]time.Duration{
		1: time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
	} {
		got := s.backoffDelay(attempt, transientErr())
		lo := time.Duration(float64(base) * 0.7)
		hi := time.Duration(float64(base) * 1.3)
		if got < lo || got > hi {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, got, lo, hi)
		}
	}
}
