// Package search fans a query out to the selected site adapters, tolerates
// partial failure, and merges the results into one bounded record set.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/akarpov/jobscout/internal/locations"
	"github.com/akarpov/jobscout/internal/model"
	"github.com/akarpov/jobscout/internal/ratelimit"
	"github.com/akarpov/jobscout/internal/retry"
)

// LocationService resolves free-text locations; implemented by the
// location cache.
type LocationService interface {
	Resolve(ctx context.Context, text string) (locations.Resolution, error)
}

// Options bound one orchestrated search. All values come from the
// immutable configuration snapshot; the orchestrator never re-reads
// configuration mid-call.
type Options struct {
	PerSourceLimit int // max records each source contributes
	TotalLimit     int // max records in the merged result
	SnippetMaxLen  int // max characters for requirements/responsibilities
	MaxRetries     int
	RetryBaseDelay time.Duration
	TimeoutFor     func(site string) time.Duration // per-attempt timeout
	MinDelayFor    func(site string) time.Duration // provider politeness gap
}

// Orchestrator coordinates one search call across site adapters.
// Adapter calls are isolated: a failure or timeout in one source never
// blocks or cancels the others.
type Orchestrator struct {
	adapters  map[string]model.SiteAdapter
	searchers map[string]model.JobSearcher // decorated chains, same keys as adapters
	loc       LocationService
	opts      Options
	logger    *slog.Logger
}

// NewOrchestrator wires the decorator chain (retry → rate limit →
// per-attempt timeout → adapter) for every registered adapter.
func NewOrchestrator(adapters map[string]model.SiteAdapter, loc LocationService, opts Options, logger *slog.Logger) (*Orchestrator, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters registered")
	}
	if opts.PerSourceLimit <= 0 || opts.TotalLimit <= 0 || opts.SnippetMaxLen <= 0 {
		return nil, fmt.Errorf("limits must be positive: per_source=%d total=%d snippet=%d",
			opts.PerSourceLimit, opts.TotalLimit, opts.SnippetMaxLen)
	}
	if opts.TimeoutFor == nil {
		return nil, fmt.Errorf("TimeoutFor is required")
	}
	if opts.MinDelayFor == nil {
		opts.MinDelayFor = func(string) time.Duration { return 0 }
	}

	limiter := ratelimit.NewSiteRateLimiter(opts.MinDelayFor)

	searchers := make(map[string]model.JobSearcher, len(adapters))
	for id, a := range adapters {
		var s model.JobSearcher = &attemptTimeoutSearcher{
			inner:   a,
			source:  id,
			timeout: opts.TimeoutFor(id),
		}
		s = ratelimit.NewRateLimitedSearcher(s, limiter, id)
		s = retry.NewRetrySearcher(s, opts.MaxRetries, opts.RetryBaseDelay, logger.With("site", id))
		searchers[id] = s
	}

	return &Orchestrator{
		adapters:  adapters,
		searchers: searchers,
		loc:       loc,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Adapter returns the registered adapter for a site id.
func (o *Orchestrator) Adapter(site string) (model.SiteAdapter, bool) {
	a, ok := o.adapters[site]
	return a, ok
}

// Search runs the query against every selected site concurrently and merges
// the results: per-source truncation first (no source crowds out another),
// then the global cap, sources concatenated in the caller's order.
//
// The returned AggregatedResult always has one Sources entry per requested
// site. The error is non-nil only for a malformed query or when every
// single source failed; a degraded partial result is a success.
func (o *Orchestrator) Search(ctx context.Context, q model.SearchQuery) (model.AggregatedResult, error) {
	start := time.Now()

	sites, err := o.checkQuery(q)
	if err != nil {
		return model.AggregatedResult{}, err
	}

	result := model.AggregatedResult{
		Sources: make(map[string]model.SourceStatus, len(sites)),
	}

	// Resolve the location once, up front. Resolution failure is not
	// fatal: the raw text is passed through and adapters that need an id
	// report themselves unresolved.
	var locID, locText string
	if loc := strings.TrimSpace(q.Location); loc != "" {
		if isProviderID(loc) {
			locID = loc
		} else if o.loc == nil {
			locText = loc
		} else {
			res, rerr := o.loc.Resolve(ctx, loc)
			if rerr != nil {
				o.logger.Warn("location unresolved, passing raw text", "location", loc, "error", rerr)
				locText = loc
			} else {
				locID = res.ID
				result.LocationStale = res.Stale
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.overallBudget(sites))
	defer cancel()

	type outcome struct {
		idx     int
		result  model.SearchResult
		err     error
		elapsed time.Duration
	}

	ch := make(chan outcome, len(sites))
	for i, site := range sites {
		go func(idx int, site string) {
			sq := model.SiteQuery{
				Keyword:      q.Keyword,
				LocationID:   locID,
				LocationText: locText,
				Filters:      q.Filters,
				Limit:        o.opts.PerSourceLimit,
			}
			began := time.Now()
			res, serr := o.searchers[site].Search(ctx, sq)
			ch <- outcome{idx: idx, result: res, err: serr, elapsed: time.Since(began)}
		}(i, site)
	}

	// Collect until every site reported or the overall budget elapsed.
	// Stragglers past the deadline are abandoned, not waited for.
	collected := make([]*outcome, len(sites))
	for remaining := len(sites); remaining > 0; {
		select {
		case out := <-ch:
			collected[out.idx] = &out
			remaining--
		case <-ctx.Done():
			remaining = 0
		}
	}

	failed := 0
	for i, site := range sites {
		out := collected[i]
		switch {
		case out == nil:
			result.Sources[site] = model.SourceStatus{State: model.StateTimedOut, Elapsed: time.Since(start)}
			failed++
		case out.err != nil:
			st := model.SourceStatus{State: model.StateErrored, Reason: errReason(out.err), Elapsed: out.elapsed}
			if errors.Is(out.err, context.DeadlineExceeded) {
				st = model.SourceStatus{State: model.StateTimedOut, Elapsed: out.elapsed}
			}
			result.Sources[site] = st
			failed++
			o.logger.Warn("source failed", "site", site, "state", st.State.String(), "error", out.err)
		default:
			records := out.result.Records
			if len(records) > o.opts.PerSourceLimit {
				records = records[:o.opts.PerSourceLimit]
			}
			result.Sources[site] = model.SourceStatus{
				State:   model.StateOK,
				Records: len(records),
				Skipped: out.result.Skipped,
				Elapsed: out.elapsed,
			}
			result.Records = append(result.Records, records...)
			if out.result.Skipped > 0 {
				o.logger.Info("source skipped malformed records", "site", site, "skipped", out.result.Skipped)
			}
		}
	}

	if len(result.Records) > o.opts.TotalLimit {
		result.Records = result.Records[:o.opts.TotalLimit]
	}
	for i := range result.Records {
		result.Records[i].Requirements = truncateChars(result.Records[i].Requirements, o.opts.SnippetMaxLen)
		result.Records[i].Responsibilities = truncateChars(result.Records[i].Responsibilities, o.opts.SnippetMaxLen)
	}

	result.Elapsed = time.Since(start)

	o.logger.Info("search complete",
		"keyword", q.Keyword,
		"sites", len(sites),
		"failed", failed,
		"records", len(result.Records),
		"elapsed", result.Elapsed.String(),
	)

	if failed == len(sites) {
		return result, fmt.Errorf("all %d sources failed", len(sites))
	}
	return result, nil
}

// checkQuery validates caller input and returns the deduplicated site list
// in caller order.
func (o *Orchestrator) checkQuery(q model.SearchQuery) ([]string, error) {
	if strings.TrimSpace(q.Keyword) == "" {
		return nil, fmt.Errorf("keyword must not be empty")
	}
	if len(q.Sites) == 0 {
		return nil, fmt.Errorf("at least one site must be selected")
	}

	seen := make(map[string]bool, len(q.Sites))
	sites := make([]string, 0, len(q.Sites))
	for _, site := range q.Sites {
		if seen[site] {
			continue
		}
		if _, ok := o.searchers[site]; !ok {
			return nil, fmt.Errorf("unknown site %q", site)
		}
		seen[site] = true
		sites = append(sites, site)
	}
	return sites, nil
}

// overallBudget bounds the whole call by the slowest site's worst case:
// every attempt at its timeout plus the full backoff ladder (with jitter
// headroom), run concurrently — never the sum across sites.
func (o *Orchestrator) overallBudget(sites []string) time.Duration {
	attempts := time.Duration(1 + o.opts.MaxRetries)
	backoff := o.opts.RetryBaseDelay * time.Duration((1<<o.opts.MaxRetries)-1)
	backoff += backoff * 3 / 10 // jitter headroom

	var budget time.Duration
	for _, site := range sites {
		if b := o.opts.TimeoutFor(site)*attempts + backoff; b > budget {
			budget = b
		}
	}
	return budget + 500*time.Millisecond
}

// errReason maps a source failure to the status reason string.
func errReason(err error) string {
	if errors.Is(err, model.ErrLocationUnresolved) {
		return "location_unresolved"
	}
	var pe *model.ProviderError
	if errors.As(err, &pe) && pe.StatusCode != 0 {
		return fmt.Sprintf("http_%d", pe.StatusCode)
	}
	return err.Error()
}

// isProviderID reports whether the location input is already a canonical
// identifier (HH area ids are numeric) rather than free text.
func isProviderID(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// truncateChars cuts s to at most max characters, breaking exactly at the
// limit. Counting is by rune: provider text is largely Cyrillic.
func truncateChars(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// attemptTimeoutSearcher bounds a single search attempt. An attempt that
// hits its own deadline while the caller's context is still live is
// reported as a transient provider timeout so the retry layer may try
// again; the caller's own cancellation passes through untouched.
type attemptTimeoutSearcher struct {
	inner   model.JobSearcher
	source  string
	timeout time.Duration
}

func (s *attemptTimeoutSearcher) Search(ctx context.Context, q model.SiteQuery) (model.SearchResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.inner.Search(attemptCtx, q)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return model.SearchResult{}, &model.ProviderError{
			Source:    s.source,
			Transient: true,
			Err:       fmt.Errorf("attempt timed out after %v: %w", s.timeout, context.DeadlineExceeded),
		}
	}
	return res, err
}
