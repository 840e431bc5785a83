package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/akarpov/jobscout/internal/locations"
	"github.com/akarpov/jobscout/internal/model"
)

// fakeAdapter is a scriptable SiteAdapter.
type fakeAdapter struct {
	id       string
	searchFn func(ctx context.Context, q model.SiteQuery) (model.SearchResult, error)
}

func (a *fakeAdapter) ID() string { return a.id }

func (a *fakeAdapter) Search(ctx context.Context, q model.SiteQuery) (model.SearchResult, error) {
	return a.searchFn(ctx, q)
}

func (a *fakeAdapter) ResolveLocation(_ context.Context, text string) (string, error) {
	return "", fmt.Errorf("resolve %q: %w", text, model.ErrLocationNotFound)
}

func (a *fakeAdapter) BuildJobURL(_ context.Context, externalID string) string {
	return "https://" + a.id + ".example/" + externalID
}

type fakeLocationService struct {
	id    string
	stale bool
	err   error
	calls int
}

func (s *fakeLocationService) Resolve(_ context.Context, _ string) (locations.Resolution, error) {
	s.calls++
	if s.err != nil {
		return locations.Resolution{}, s.err
	}
	return locations.Resolution{ID: s.id, Stale: s.stale}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nRecords(source string, n int) []model.JobRecord {
	out := make([]model.JobRecord, n)
	for i := range out {
		out[i] = model.JobRecord{
			SourceID:   source,
			ExternalID: fmt.Sprintf("%s-%d", source, i),
			Title:      fmt.Sprintf("Vacancy %d", i),
		}
	}
	return out
}

func staticAdapter(id string, records []model.JobRecord, skipped int) *fakeAdapter {
	return &fakeAdapter{
		id: id,
		searchFn: func(_ context.Context, _ model.SiteQuery) (model.SearchResult, error) {
			return model.SearchResult{Records: records, Skipped: skipped}, nil
		},
	}
}

func failingAdapter(id string, err error) *fakeAdapter {
	return &fakeAdapter{
		id: id,
		searchFn: func(_ context.Context, _ model.SiteQuery) (model.SearchResult, error) {
			return model.SearchResult{}, err
		},
	}
}

// hangingAdapter blocks until its context is cancelled.
func hangingAdapter(id string) *fakeAdapter {
	return &fakeAdapter{
		id: id,
		searchFn: func(ctx context.Context, _ model.SiteQuery) (model.SearchResult, error) {
			<-ctx.Done()
			return model.SearchResult{}, ctx.Err()
		},
	}
}

func testOptions() Options {
	return Options{
		PerSourceLimit: 10,
		TotalLimit:     30,
		SnippetMaxLen:  200,
		MaxRetries:     0,
		RetryBaseDelay: time.Millisecond,
		TimeoutFor:     func(string) time.Duration { return 200 * time.Millisecond },
	}
}

func newTestOrchestrator(t *testing.T, adapters map[string]model.SiteAdapter, loc LocationService, opts Options) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(adapters, loc, opts, discardLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

func TestSearch_MergesInCallerOrder(t *testing.T) {
	adapters := map[string]model.SiteAdapter{
		"hh":      staticAdapter("hh", nRecords("hh", 3), 0),
		"geekjob": staticAdapter("geekjob", nRecords("geekjob", 2), 1),
	}
	o := newTestOrchestrator(t, adapters, nil, testOptions())

	res, err := o.Search(context.Background(), model.SearchQuery{
		Keyword: "go",
		Sites:   []string{"geekjob", "hh"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(res.Records))
	}

	// Caller order: geekjob first, then hh. No re-sorting.
	for i := 0; i < 2; i++ {
		if res.Records[i].SourceID != "geekjob" {
			t.Errorf("record %d from %s, want geekjob", i, res.Records[i].SourceID)
		}
	}
	for i := 2; i < 5; i++ {
		if res.Records[i].SourceID != "hh" {
			t.Errorf("record %d from %s, want hh", i, res.Records[i].SourceID)
		}
	}

	if st := res.Sources["geekjob"]; st.State != model.StateOK || st.Records != 2 || st.Skipped != 1 {
		t.Errorf("geekjob status = %+v", st)
	}
	if st := res.Sources["hh"]; st.State != model.StateOK || st.Records != 3 {
		t.Errorf("hh status = %+v", st)
	}
}

func TestSearch_PerSourceTruncationBeforeGlobal(t *testing.T) {
	adapters := map[string]model.SiteAdapter{
		"a": staticAdapter("a", nRecords("a", 20), 0),
		"b": staticAdapter("b", nRecords("b", 20), 0),
	}
	o := newTestOrchestrator(t, adapters, nil, testOptions())

	res, err := o.Search(context.Background(), model.SearchQuery{
		Keyword: "go",
		Sites:   []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Each source capped at 10 first, so b is not crowded out: 10 + 10,
	// not 20 + 10 cut to 30.
	if len(res.Records) != 20 {
		t.Fatalf("expected 20 records, got %d", len(res.Records))
	}
	var fromA, fromB int
	for _, r := range res.Records {
		switch r.SourceID {
		case "a":
			fromA++
		case "b":
			fromB++
		}
	}
	if fromA != 10 || fromB != 10 {
		t.Errorf("a=%d b=%d, want 10 each", fromA, fromB)
	}
}

func TestSearch_GlobalLimitAppliedAfterPerSource(t *testing.T) {
	adapters := map[string]model.SiteAdapter{
		"a": staticAdapter("a", nRecords("a", 20), 0),
		"b": staticAdapter("b", nRecords("b", 20), 0),
	}
	opts := testOptions()
	opts.TotalLimit = 15
	o := newTestOrchestrator(t, adapters, nil, opts)

	res, err := o.Search(context.Background(), model.SearchQuery{
		Keyword: "go",
		Sites:   []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Records) != 15 {
		t.Fatalf("expected 15 records, got %d", len(res.Records))
	}
	// The tail of the caller-ordered concatenation is what gets cut.
	if res.Records[0].SourceID != "a" || res.Records[14].SourceID != "b" {
		t.Errorf("unexpected source layout: first=%s last=%s",
			res.Records[0].SourceID, res.Records[14].SourceID)
	}
}

func TestSearch_OneSlowSourceDoesNotBlockOthers(t *testing.T) {
	adapters := map[string]model.SiteAdapter{
		"slow": hangingAdapter("slow"),
		"fast": staticAdapter("fast", nRecords("fast", 5), 0),
	}
	o := newTestOrchestrator(t, adapters, nil, testOptions())

	res, err := o.Search(context.Background(), model.SearchQuery{
		Keyword: "go",
		Sites:   []string{"slow", "fast"},
	})
	if err != nil {
		t.Fatalf("a degraded partial result must not be an error: %v", err)
	}
	if len(res.Records) != 5 {
		t.Fatalf("expected 5 records from the fast source, got %d", len(res.Records))
	}
	if st := res.Sources["slow"]; st.State != model.StateTimedOut {
		t.Errorf("slow status = %+v, want timed_out", st)
	}
	if st := res.Sources["fast"]; st.State != model.StateOK || st.Records != 5 {
		t.Errorf("fast status = %+v", st)
	}
}

func TestSearch_StatusPerRequestedSite(t *testing.T) {
	adapters := map[string]model.SiteAdapter{
		"a": staticAdapter("a", nil, 0),
		"b": staticAdapter("b", nil, 0),
		"c": staticAdapter("c", nil, 0),
	}
	o := newTestOrchestrator(t, adapters, nil, testOptions())

	// Only two sites requested, one of them twice.
	res, err := o.Search(context.Background(), model.SearchQuery{
		Keyword: "go",
		Sites:   []string{"b", "a", "b"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Sources) != 2 {
		t.Fatalf("expected statuses for exactly the 2 requested sites, got %d", len(res.Sources))
	}
	for _, site := range []string{"a", "b"} {
		if _, ok := res.Sources[site]; !ok {
			t.Errorf("missing status for %s", site)
		}
	}
}

func TestSearch_MalformedQuery(t *testing.T) {
	adapters := map[string]model.SiteAdapter{"hh": staticAdapter("hh", nil, 0)}
	o := newTestOrchestrator(t, adapters, nil, testOptions())
	ctx := context.Background()

	if _, err := o.Search(ctx, model.SearchQuery{Keyword: "  ", Sites: []string{"hh"}}); err == nil {
		t.Error("expected error for blank keyword")
	}
	if _, err := o.Search(ctx, model.SearchQuery{Keyword: "go"}); err == nil {
		t.Error("expected error for empty site list")
	}
	if _, err := o.Search(ctx, model.SearchQuery{Keyword: "go", Sites: []string{"linkedin"}}); err == nil {
		t.Error("expected error for unknown site")
	}
}

func TestSearch_AllSourcesFailed(t *testing.T) {
	serverErr := &model.ProviderError{Source: "a", StatusCode: 500, Transient: true, Err: errors.New("server error")}
	adapters := map[string]model.SiteAdapter{
		"a": failingAdapter("a", serverErr),
		"b": failingAdapter("b", &model.ProviderError{Source: "b", StatusCode: 403, Err: errors.New("request rejected")}),
	}
	o := newTestOrchestrator(t, adapters, nil, testOptions())

	res, err := o.Search(context.Background(), model.SearchQuery{
		Keyword: "go",
		Sites:   []string{"a", "b"},
	})
	if err == nil {
		t.Fatal("expected error when every source failed")
	}
	if st := res.Sources["a"]; st.State != model.StateErrored || st.Reason != "http_500" {
		t.Errorf("a status = %+v, want errored/http_500", st)
	}
	if st := res.Sources["b"]; st.State != model.StateErrored || st.Reason != "http_403" {
		t.Errorf("b status = %+v, want errored/http_403", st)
	}
}

func TestSearch_LocationUnresolvedReason(t *testing.T) {
	unresolved := fmt.Errorf("hh search: %w",
		&model.ProviderError{Source: "hh", Err: model.ErrLocationUnresolved})
	adapters := map[string]model.SiteAdapter{
		"hh":      failingAdapter("hh", unresolved),
		"geekjob": staticAdapter("geekjob", nRecords("geekjob", 1), 0),
	}
	o := newTestOrchestrator(t, adapters, nil, testOptions())

	res, err := o.Search(context.Background(), model.SearchQuery{
		Keyword: "go",
		Sites:   []string{"hh", "geekjob"},
	})
	if err != nil {
		t.Fatalf("one healthy source remains, must not error: %v", err)
	}
	if st := res.Sources["hh"]; st.State != model.StateErrored || st.Reason != "location_unresolved" {
		t.Errorf("hh status = %+v, want errored/location_unresolved", st)
	}
}

func TestSearch_SnippetTruncatedByRunes(t *testing.T) {
	long := strings.Repeat("ф", 250)
	records := []model.JobRecord{{
		SourceID:         "hh",
		ExternalID:       "1",
		Title:            "Очень длинное название вакансии остаётся как есть",
		Company:          "Компания",
		Requirements:     long,
		Responsibilities: long,
	}}
	adapters := map[string]model.SiteAdapter{"hh": staticAdapter("hh", records, 0)}
	opts := testOptions()
	opts.SnippetMaxLen = 100
	o := newTestOrchestrator(t, adapters, nil, opts)

	res, err := o.Search(context.Background(), model.SearchQuery{Keyword: "go", Sites: []string{"hh"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	r := res.Records[0]
	if got := utf8.RuneCountInString(r.Requirements); got != 100 {
		t.Errorf("Requirements truncated to %d runes, want exactly 100", got)
	}
	if got := utf8.RuneCountInString(r.Responsibilities); got != 100 {
		t.Errorf("Responsibilities truncated to %d runes, want exactly 100", got)
	}
	if !strings.Contains(r.Title, "вакансии") {
		t.Error("Title must not be truncated")
	}
}

func TestSearch_NumericLocationBypassesResolution(t *testing.T) {
	loc := &fakeLocationService{id: "999"}
	var got model.SiteQuery
	adapters := map[string]model.SiteAdapter{
		"hh": &fakeAdapter{
			id: "hh",
			searchFn: func(_ context.Context, q model.SiteQuery) (model.SearchResult, error) {
				got = q
				return model.SearchResult{}, nil
			},
		},
	}
	o := newTestOrchestrator(t, adapters, loc, testOptions())

	_, err := o.Search(context.Background(), model.SearchQuery{
		Keyword:  "go",
		Location: "1",
		Sites:    []string{"hh"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if loc.calls != 0 {
		t.Error("numeric location must not hit the resolver")
	}
	if got.LocationID != "1" || got.LocationText != "" {
		t.Errorf("site query = %+v, want LocationID=1", got)
	}
}

func TestSearch_ResolvedLocationPassedAsID(t *testing.T) {
	loc := &fakeLocationService{id: "1", stale: true}
	var got model.SiteQuery
	adapters := map[string]model.SiteAdapter{
		"hh": &fakeAdapter{
			id: "hh",
			searchFn: func(_ context.Context, q model.SiteQuery) (model.SearchResult, error) {
				got = q
				return model.SearchResult{}, nil
			},
		},
	}
	o := newTestOrchestrator(t, adapters, loc, testOptions())

	res, err := o.Search(context.Background(), model.SearchQuery{
		Keyword:  "go",
		Location: "Москва",
		Sites:    []string{"hh"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.LocationID != "1" || got.LocationText != "" {
		t.Errorf("site query = %+v, want resolved LocationID=1", got)
	}
	if !res.LocationStale {
		t.Error("stale resolution must be flagged on the result")
	}
}

func TestSearch_ResolutionFailurePassesRawText(t *testing.T) {
	loc := &fakeLocationService{err: errors.New("directory down")}
	var got model.SiteQuery
	adapters := map[string]model.SiteAdapter{
		"hh": &fakeAdapter{
			id: "hh",
			searchFn: func(_ context.Context, q model.SiteQuery) (model.SearchResult, error) {
				got = q
				return model.SearchResult{}, nil
			},
		},
	}
	o := newTestOrchestrator(t, adapters, loc, testOptions())

	if _, err := o.Search(context.Background(), model.SearchQuery{
		Keyword:  "go",
		Location: "Москва",
		Sites:    []string{"hh"},
	}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.LocationText != "Москва" || got.LocationID != "" {
		t.Errorf("site query = %+v, want raw LocationText", got)
	}
}

func TestNewOrchestrator_Validation(t *testing.T) {
	adapters := map[string]model.SiteAdapter{"hh": staticAdapter("hh", nil, 0)}
	logger := discardLogger()

	if _, err := NewOrchestrator(nil, nil, testOptions(), logger); err == nil {
		t.Error("expected error for no adapters")
	}

	opts := testOptions()
	opts.PerSourceLimit = 0
	if _, err := NewOrchestrator(adapters, nil, opts, logger); err == nil {
		t.Error("expected error for non-positive per-source limit")
	}

	opts = testOptions()
	opts.TimeoutFor = nil
	if _, err := NewOrchestrator(adapters, nil, opts, logger); err == nil {
		t.Error("expected error for missing TimeoutFor")
	}
}

func TestTruncateChars(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"", 5, ""},
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"overflow", 4, "over"},
		{"привет мир", 6, "привет"},
	}
	for _, tt := range tests {
		if got := truncateChars(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateChars(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestIsProviderID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1", true},
		{"2019", true},
		{"", false},
		{"Москва", false},
		{"12a", false},
	}
	for _, tt := range tests {
		if got := isProviderID(tt.in); got != tt.want {
			t.Errorf("isProviderID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
