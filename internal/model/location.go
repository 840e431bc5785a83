package model

import "time"

// LocationEntry is one persisted location-cache record. Query is the
// normalized lookup key; freshness is judged against ResolvedAt, stale
// entries are kept (they back the degraded-fallback path), never served
// as fresh.
type LocationEntry struct {
	Query      string
	ResolvedID string
	ResolvedAt time.Time
}

// SearchLogEntry is one row of the persisted search history.
type SearchLogEntry struct {
	Keyword   string
	Location  string
	Sites     []string
	Records   int
	Duration  time.Duration
	CreatedAt time.Time
}
