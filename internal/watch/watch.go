// Package watch re-runs a saved search and surfaces records that have not
// been seen before.
package watch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/akarpov/jobscout/internal/model"
)

// Searcher is the aggregated-search entry point; implemented by the
// orchestrator.
type Searcher interface {
	Search(ctx context.Context, q model.SearchQuery) (model.AggregatedResult, error)
}

// Watcher owns one saved-search cycle: search → dedup against the seen
// store → notify → mark seen.
type Watcher struct {
	searcher Searcher
	query    model.SearchQuery
	store    model.SeenStore
	notifier model.Notifier
	logger   *slog.Logger
}

// NewWatcher creates a watcher wired with all its dependencies.
func NewWatcher(searcher Searcher, query model.SearchQuery, store model.SeenStore, notifier model.Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		searcher: searcher,
		query:    query,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Run executes one cycle. A degraded search (some sources failed) still
// counts: whatever records came back are deduped and delivered.
func (w *Watcher) Run(ctx context.Context) error {
	result, err := w.searcher.Search(ctx, w.query)
	if err != nil {
		return fmt.Errorf("watching %q: %w", w.query.Keyword, err)
	}

	var fresh []model.JobRecord
	for _, rec := range result.Records {
		seen, err := w.store.HasSeen(model.SeenKey(rec))
		if err != nil {
			return fmt.Errorf("watching %q: checking seen status: %w", w.query.Keyword, err)
		}
		if !seen {
			fresh = append(fresh, rec)
		}
	}

	if len(fresh) > 0 {
		if err := w.notifier.Notify(fresh); err != nil {
			return fmt.Errorf("watching %q: notifying: %w", w.query.Keyword, err)
		}
	}

	for _, rec := range fresh {
		if err := w.store.MarkSeen(model.SeenKey(rec)); err != nil {
			return fmt.Errorf("watching %q: marking seen: %w", w.query.Keyword, err)
		}
	}

	w.logger.Info("watch cycle complete",
		"keyword", w.query.Keyword,
		"fetched", len(result.Records),
		"new", len(fresh),
	)

	return nil
}
