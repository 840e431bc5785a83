package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/akarpov/jobscout/internal/model"
	"github.com/akarpov/jobscout/internal/watch"
)

// Scheduler owns the watch loop: ticks on an interval, runs the watcher,
// and periodically prunes old seen-job entries.
type Scheduler struct {
	watcher  *watch.Watcher
	store    model.SeenStore
	interval time.Duration
	seenTTL  time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that runs the watcher at the given interval.
func NewScheduler(watcher *watch.Watcher, store model.SeenStore, interval, seenTTL time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		watcher:  watcher,
		store:    store,
		interval: interval,
		seenTTL:  seenTTL,
		logger:   logger,
	}
}

// Run starts the watch loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting watch loop", "interval", s.interval.String())

	s.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down watch loop")
			return nil
		case <-time.After(s.interval):
			s.cycle(ctx)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if err := s.watcher.Run(ctx); err != nil {
		s.logger.Error("watch cycle failed", "error", err)
	}

	if s.seenTTL > 0 {
		if err := s.store.Cleanup(s.seenTTL); err != nil {
			s.logger.Error("seen-store cleanup failed", "error", err)
		}
	}
}
