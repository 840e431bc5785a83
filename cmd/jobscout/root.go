package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/akarpov/jobscout/internal/adapter"
	"github.com/akarpov/jobscout/internal/config"
	"github.com/akarpov/jobscout/internal/joburl"
	"github.com/akarpov/jobscout/internal/locations"
	"github.com/akarpov/jobscout/internal/model"
	"github.com/akarpov/jobscout/internal/search"
	"github.com/akarpov/jobscout/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobscout",
	Short: "Aggregated job search across HeadHunter and GeekJob",
	Long:  "jobscout queries several job boards at once and merges the results into one list.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSCOUT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it. Without a config file
// the built-in defaults cover the known job boards.
// Priority: explicit path arg > JOBSCOUT_CONFIG env var > "./config.yaml" > defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBSCOUT_CONFIG"); env != "" {
			path = env
		} else if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		} else {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// engine bundles everything a command needs to run searches.
type engine struct {
	cfg   *config.Config
	orch  *search.Orchestrator
	cache *locations.Cache
	store *store.SQLiteStore
}

func (e *engine) Close() {
	e.store.Close()
}

// buildEngine wires adapters, location cache, store, and orchestrator from
// the config snapshot. Unsupported site ids in the config fail here, at
// startup, never at search time.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*engine, error) {
	templates := make(map[string]map[string]string, len(cfg.Sites))
	for id, site := range cfg.Sites {
		templates[id] = site.URLs
	}
	urls, err := joburl.NewResolver(templates)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	adapters := make(map[string]model.SiteAdapter, len(cfg.Sites))
	for id, site := range cfg.Sites {
		params := adapter.Params{
			APIURL:    site.APIURL,
			AreasURL:  site.AreasURL,
			PerPage:   site.PerPage,
			UserAgent: cfg.UserAgent,
		}
		switch id {
		case "hh":
			adapters[id] = adapter.NewHeadHunter(params, urls, httpClient, logger)
		case "geekjob":
			adapters[id] = adapter.NewGeekJob(params, urls, httpClient, logger)
		default:
			return nil, fmt.Errorf("unsupported site %q in config", id)
		}
	}

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	// The location directory lives on HeadHunter; fall back to whichever
	// adapter exists so resolution degrades to not-found, not to a panic.
	resolver := model.LocationResolver(nil)
	if hh, ok := adapters["hh"]; ok {
		resolver = hh
	} else {
		for _, a := range adapters {
			resolver = a
			break
		}
	}

	cache, err := locations.NewCache(resolver, db, cfg.Cache.Expiry, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	orch, err := search.NewOrchestrator(adapters, cache, search.Options{
		PerSourceLimit: cfg.Search.PerSourceLimit,
		TotalLimit:     cfg.Search.TotalLimit,
		SnippetMaxLen:  cfg.Search.SnippetMaxLen,
		MaxRetries:     cfg.Search.MaxRetries,
		RetryBaseDelay: cfg.Search.RetryBaseDelay,
		TimeoutFor:     cfg.TimeoutFor,
		MinDelayFor:    cfg.RateLimit.MinDelayFor,
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &engine{cfg: cfg, orch: orch, cache: cache, store: db}, nil
}
