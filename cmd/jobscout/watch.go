package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/akarpov/jobscout/internal/model"
	"github.com/akarpov/jobscout/internal/notifier"
	"github.com/akarpov/jobscout/internal/scheduler"
	"github.com/akarpov/jobscout/internal/store"
	"github.com/akarpov/jobscout/internal/watch"
)

var (
	watchKeyword  string
	watchLocation string
	watchSites    []string
	watchInterval time.Duration
	watchDryRun   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run a saved search on an interval and report new vacancies",
	Long:  "Watch re-runs the configured search periodically, remembers what it has shown, and notifies about new vacancies only. Blocks until SIGINT/SIGTERM.",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchKeyword, "keyword", "k", "", "search keyword (overrides watch.keyword from config)")
	watchCmd.Flags().StringVarP(&watchLocation, "location", "l", "", "location (overrides watch.location)")
	watchCmd.Flags().StringSliceVarP(&watchSites, "sites", "s", nil, "sites to query (overrides watch.sites; default: all configured)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "poll interval (overrides watch.interval)")
	watchCmd.Flags().BoolVar(&watchDryRun, "dry-run", false, "do not remember seen vacancies; every cycle reports everything")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	keyword := watchKeyword
	if keyword == "" {
		keyword = cfg.Watch.Keyword
	}
	if keyword == "" {
		return fmt.Errorf("a keyword is required: set --keyword or watch.keyword in config")
	}

	location := watchLocation
	if location == "" {
		location = cfg.Watch.Location
	}

	sites := watchSites
	if len(sites) == 0 {
		sites = cfg.Watch.Sites
	}
	if len(sites) == 0 {
		sites = cfg.SiteIDs()
	}

	interval := watchInterval
	if interval <= 0 {
		interval = cfg.Watch.Interval
	}

	query := model.SearchQuery{
		Keyword:  keyword,
		Location: location,
		Sites:    sites,
	}

	var seen model.SeenStore = eng.store
	if watchDryRun {
		logger.Info("dry-run mode enabled, vacancies will not be marked as seen")
		seen = store.NewNopSeenStore()
	}

	var n model.Notifier
	switch cfg.Watch.Notification.Type {
	case "webhook":
		httpClient := &http.Client{Timeout: 15 * time.Second}
		n = notifier.NewWebhookNotifier(cfg.Watch.Notification.WebhookURL, httpClient, logger)
		logger.Info("using webhook notifier")
	default:
		n = notifier.NewLogNotifier(logger)
	}

	logger.Info("watch configured",
		"keyword", keyword,
		"location", location,
		"sites", sites,
		"interval", interval.String(),
	)

	w := watch.NewWatcher(eng.orch, query, seen, n, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(w, seen, interval, cfg.Watch.SeenTTL, logger)
	if err := sched.Run(ctx); err != nil {
		return err
	}

	logger.Info("goodbye")
	return nil
}
