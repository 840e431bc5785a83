package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/akarpov/jobscout/internal/model"
)

// SQLiteStore persists the location cache, watch-mode seen keys, and the
// search history in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS location_cache (
			query_text  TEXT PRIMARY KEY,
			resolved_id TEXT NOT NULL,
			resolved_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS seen_jobs (
			job_key    TEXT PRIMARY KEY,
			first_seen DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS search_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			keyword     TEXT NOT NULL,
			location    TEXT,
			sites       TEXT NOT NULL,
			records     INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// LoadLocations returns every persisted location entry, fresh and stale
// alike. The cache is loaded wholesale once at startup.
func (s *SQLiteStore) LoadLocations() ([]model.LocationEntry, error) {
	rows, err := s.db.Query("SELECT query_text, resolved_id, resolved_at FROM location_cache")
	if err != nil {
		return nil, fmt.Errorf("loading location cache: %w", err)
	}
	defer rows.Close()

	var entries []model.LocationEntry
	for rows.Next() {
		var e model.LocationEntry
		if err := rows.Scan(&e.Query, &e.ResolvedID, &e.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scanning location entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PutLocation writes one location entry, replacing any previous entry for
// the same key. The replace is a single statement, so a crash can lose the
// new entry but never corrupt the old one.
func (s *SQLiteStore) PutLocation(e model.LocationEntry) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO location_cache (query_text, resolved_id, resolved_at) VALUES (?, ?, ?)",
		e.Query, e.ResolvedID, e.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("writing location entry %q: %w", e.Query, err)
	}
	return nil
}

// HasSeen returns true if the given job key has already been recorded.
func (s *SQLiteStore) HasSeen(key string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM seen_jobs WHERE job_key = ?", key).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking seen status for %s: %w", key, err)
	}
	return true, nil
}

// MarkSeen records a job key as seen. If it already exists the call is a no-op.
func (s *SQLiteStore) MarkSeen(key string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO seen_jobs (job_key) VALUES (?)", key)
	if err != nil {
		return fmt.Errorf("marking job %s as seen: %w", key, err)
	}
	return nil
}

// Cleanup deletes seen-job entries older than the given duration.
func (s *SQLiteStore) Cleanup(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	_, err := s.db.Exec("DELETE FROM seen_jobs WHERE first_seen < ?", cutoff)
	if err != nil {
		return fmt.Errorf("cleaning up seen jobs older than %v: %w", olderThan, err)
	}
	return nil
}

// AddSearch appends one row to the search history.
func (s *SQLiteStore) AddSearch(e model.SearchLogEntry) error {
	_, err := s.db.Exec(
		"INSERT INTO search_history (keyword, location, sites, records, duration_ms) VALUES (?, ?, ?, ?, ?)",
		e.Keyword, e.Location, strings.Join(e.Sites, ","), e.Records, e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording search %q: %w", e.Keyword, err)
	}
	return nil
}

// RecentSearches returns the most recent history rows, newest first.
func (s *SQLiteStore) RecentSearches(limit int) ([]model.SearchLogEntry, error) {
	rows, err := s.db.Query(
		"SELECT keyword, location, sites, records, duration_ms, created_at FROM search_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("loading search history: %w", err)
	}
	defer rows.Close()

	var entries []model.SearchLogEntry
	for rows.Next() {
		var e model.SearchLogEntry
		var sites string
		var durationMS int64
		if err := rows.Scan(&e.Keyword, &e.Location, &sites, &e.Records, &durationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		if sites != "" {
			e.Sites = strings.Split(sites, ",")
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
