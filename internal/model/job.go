package model

import (
	"context"
	"time"
)

// Normalized representation of a vacancy from any job board.
type JobRecord struct {
	SourceID         string     // adapter that produced the record
	ExternalID       string     // provider's job identifier, opaque
	Title            string     // job title
	Company          string     // company name
	Location         string     // location as the provider reports it
	Salary           string     // provider-formatted salary text, may be empty
	Requirements     string     // requirements snippet
	Responsibilities string     // responsibilities snippet
	PublishedAt      *time.Time // nullable (not all providers expose this)
	URL              string     // canonical vacancy link
}

// SearchQuery is the caller-facing query handed to the orchestrator.
type SearchQuery struct {
	Keyword  string   // required, non-empty
	Location string   // optional free text or a provider location id
	Sites    []string // adapter ids to query, required, non-empty
	Filters  Filters
}

// Filters are passed through to adapters that understand them.
// Values are provider vocabulary (e.g. HH "between1And3"), not interpreted here.
type Filters struct {
	Experience string
	Employment string
	Schedule   string
}

// SiteQuery is the per-adapter query built by the orchestrator.
// At most one of LocationID / LocationText is set when a location was given:
// LocationID when the location cache resolved it, LocationText otherwise.
type SiteQuery struct {
	Keyword      string
	LocationID   string
	LocationText string
	Filters      Filters
	Limit        int // max records to return; 0 means the adapter's default page size
}

// SearchResult is an adapter's partial-success output: the records it could
// parse plus a count of malformed records it skipped.
type SearchResult struct {
	Records []JobRecord
	Skipped int
}

// SourceState classifies a single adapter's outcome within one search call.
type SourceState int

const (
	StateOK SourceState = iota
	StateTimedOut
	StateErrored
)

func (s SourceState) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateTimedOut:
		return "timed_out"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// SourceStatus reports one adapter's outcome. Records counts the adapter's
// contribution after per-source truncation; Skipped counts malformed
// provider records dropped during parsing.
type SourceStatus struct {
	State   SourceState
	Reason  string // set when State is StateErrored
	Records int
	Skipped int
	Elapsed time.Duration
}

// AggregatedResult is the merged outcome of one orchestrated search.
// Sources always contains exactly one entry per requested site, whatever
// the individual outcomes were.
type AggregatedResult struct {
	Records       []JobRecord
	Sources       map[string]SourceStatus
	LocationStale bool // location came from a stale cache entry
	Elapsed       time.Duration
}

// JobSearcher runs a provider search. Implemented by site adapters and by
// the retry/ratelimit decorators that wrap them.
type JobSearcher interface {
	Search(ctx context.Context, q SiteQuery) (SearchResult, error)
}

// LocationResolver maps free-text place names to a provider location id.
type LocationResolver interface {
	ResolveLocation(ctx context.Context, text string) (string, error)
}

// SiteAdapter is the full per-provider capability set.
type SiteAdapter interface {
	JobSearcher
	LocationResolver

	// ID returns the adapter's registry identifier (e.g. "hh").
	ID() string

	// BuildJobURL resolves a canonical vacancy URL for an external id.
	// It never fails: when dynamic resolution is unavailable it falls
	// back to the provider's URL template.
	BuildJobURL(ctx context.Context, externalID string) string
}

// SeenStore tracks which job records have already been surfaced, for
// watch-mode deduplication. Keys are "sourceID/externalID".
type SeenStore interface {
	HasSeen(key string) (bool, error)
	MarkSeen(key string) error
	Cleanup(olderThan time.Duration) error
}

// Notifier delivers newly discovered records in watch mode.
type Notifier interface {
	Notify(records []JobRecord) error
}

// SeenKey builds the SeenStore key for a record. External ids are only
// unique within a source, so the source id is part of the key.
func SeenKey(r JobRecord) string {
	return r.SourceID + "/" + r.ExternalID
}
