package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for jobscout. It is loaded once and
// treated as an immutable snapshot: the engine never re-reads it mid-call.
type Config struct {
	UserAgent string
	Sites     map[string]SiteConfig
	Search    SearchConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Watch     WatchConfig
}

// SiteConfig describes one job board.
type SiteConfig struct {
	Name     string            // human-readable provider name
	APIURL   string            // search endpoint
	AreasURL string            // location directory endpoint, empty if unsupported
	PerPage  int               // provider default page size
	Timeout  time.Duration     // per-site request timeout, zero means the global one
	URLs     map[string]string // URL templates keyed by kind (vacancy/company/search/apply)
}

// SearchConfig bounds one orchestrated search call.
type SearchConfig struct {
	RequestTimeout time.Duration // per-adapter-call timeout (per attempt)
	MaxRetries     int           // additional attempts after the first, transient errors only
	RetryBaseDelay time.Duration // backoff before the first retry, doubled per retry
	PerSourceLimit int           // max records each source contributes to the merge
	TotalLimit     int           // max records in the merged result
	SnippetMaxLen  int           // max characters for requirements/responsibilities text
}

// CacheConfig controls the location cache.
type CacheConfig struct {
	Expiry time.Duration // entries older than this are stale
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string
}

// RateLimitConfig enforces a minimum gap between requests to one provider.
type RateLimitConfig struct {
	MinDelay      time.Duration
	SiteOverrides map[string]time.Duration
}

// MinDelayFor returns the configured delay for a site, falling back to MinDelay.
func (r RateLimitConfig) MinDelayFor(site string) time.Duration {
	if d, ok := r.SiteOverrides[site]; ok {
		return d
	}
	return r.MinDelay
}

// WatchConfig describes the saved search that watch mode re-runs.
type WatchConfig struct {
	Interval     time.Duration
	Keyword      string
	Location     string
	Sites        []string
	SeenTTL      time.Duration // seen-job entries older than this are cleaned up
	Notification NotificationConfig
}

// NotificationConfig selects the watch-mode notifier.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "webhook"
	WebhookURL string `yaml:"webhook_url"` // required if type is "webhook"
}

// TimeoutFor returns the per-site request timeout, falling back to the
// global search timeout.
func (c *Config) TimeoutFor(site string) time.Duration {
	if s, ok := c.Sites[site]; ok && s.Timeout > 0 {
		return s.Timeout
	}
	return c.Search.RequestTimeout
}

// SiteIDs returns the registered adapter identifiers.
func (c *Config) SiteIDs() []string {
	ids := make([]string, 0, len(c.Sites))
	for id := range c.Sites {
		ids = append(ids, id)
	}
	return ids
}

// urlKinds are the template kinds every site must define. Missing templates
// are a configuration error caught at load time, never at request time.
var urlKinds = []string{"vacancy", "company", "search", "apply"}

// rawConfig is used for YAML unmarshaling (snake_case fields, durations as strings).
type rawConfig struct {
	UserAgent string                   `yaml:"user_agent"`
	Sites     map[string]rawSiteConfig `yaml:"sites"`
	Search    rawSearchConfig          `yaml:"search"`
	Cache     rawCacheConfig           `yaml:"cache"`
	RateLimit rawRateLimitConfig       `yaml:"rate_limit"`
	Store     rawStoreConfig           `yaml:"store"`
	Watch     rawWatchConfig           `yaml:"watch"`
}

type rawSiteConfig struct {
	Name     string            `yaml:"name"`
	APIURL   string            `yaml:"api_url"`
	AreasURL string            `yaml:"areas_url"`
	PerPage  int               `yaml:"per_page"`
	Timeout  string            `yaml:"timeout"`
	URLs     map[string]string `yaml:"urls"`
}

type rawSearchConfig struct {
	RequestTimeout string `yaml:"request_timeout"`
	MaxRetries     *int   `yaml:"max_retries"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
	PerSourceLimit int    `yaml:"per_source_limit"`
	TotalLimit     int    `yaml:"total_limit"`
	SnippetMaxLen  int    `yaml:"snippet_max_len"`
}

type rawCacheConfig struct {
	Expiry string `yaml:"expiry"`
}

type rawStoreConfig struct {
	Path string `yaml:"path"`
}

type rawRateLimitConfig struct {
	MinDelay      string            `yaml:"min_delay"`
	SiteOverrides map[string]string `yaml:"site_overrides"`
}

type rawWatchConfig struct {
	Interval     string             `yaml:"interval"`
	Keyword      string             `yaml:"keyword"`
	Location     string             `yaml:"location"`
	Sites        []string           `yaml:"sites"`
	SeenTTL      string             `yaml:"seen_ttl"`
	Notification NotificationConfig `yaml:"notification"`
}

// Default returns the built-in configuration covering the known job boards.
// Used when no config file is present; a file overrides it wholesale.
func Default() *Config {
	return &Config{
		UserAgent: "jobscout/1.0",
		Sites: map[string]SiteConfig{
			"hh": {
				Name:     "HeadHunter",
				APIURL:   "https://api.hh.ru/vacancies",
				AreasURL: "https://api.hh.ru/areas",
				PerPage:  19,
				URLs: map[string]string{
					"vacancy": "https://hh.ru/vacancy/{job_id}",
					"company": "https://hh.ru/employer/{company_id}",
					"search":  "https://hh.ru/search/vacancy?text={query}",
					"apply":   "https://hh.ru/applicant/vacancy_response?vacancyId={job_id}",
				},
			},
			"geekjob": {
				Name:    "GeekJob",
				APIURL:  "https://geekjob.ru/json/find/vacancy",
				PerPage: 10,
				URLs: map[string]string{
					"vacancy": "https://geekjob.ru/vacancy/{job_id}",
					"company": "https://geekjob.ru/company/{company_id}",
					"search":  "https://geekjob.ru/vacancies?qs={query}",
					"apply":   "https://geekjob.ru/vacancy/{job_id}",
				},
			},
		},
		Search: SearchConfig{
			RequestTimeout: 10 * time.Second,
			MaxRetries:     2,
			RetryBaseDelay: 2 * time.Second,
			PerSourceLimit: 10,
			TotalLimit:     30,
			SnippetMaxLen:  200,
		},
		Cache:     CacheConfig{Expiry: 7 * 24 * time.Hour},
		Store:     StoreConfig{Path: "jobscout.db"},
		RateLimit: RateLimitConfig{MinDelay: 250 * time.Millisecond},
		Watch: WatchConfig{
			Interval:     15 * time.Minute,
			SeenTTL:      30 * 24 * time.Hour,
			Notification: NotificationConfig{Type: "log"},
		},
	}
}

// Load reads and parses the YAML config file at path, applies defaults for
// omitted fields, validates it, and returns the Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables (e.g. webhook URLs).
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()

	if raw.UserAgent != "" {
		cfg.UserAgent = raw.UserAgent
	}

	if len(raw.Sites) > 0 {
		sites := make(map[string]SiteConfig, len(raw.Sites))
		for id, rs := range raw.Sites {
			site := SiteConfig{
				Name:     rs.Name,
				APIURL:   rs.APIURL,
				AreasURL: rs.AreasURL,
				PerPage:  rs.PerPage,
				URLs:     rs.URLs,
			}
			if rs.Timeout != "" {
				site.Timeout, err = time.ParseDuration(rs.Timeout)
				if err != nil {
					return nil, fmt.Errorf("parse sites.%s.timeout %q: %w", id, rs.Timeout, err)
				}
			}
			sites[id] = site
		}
		cfg.Sites = sites
	}

	if err := parseSearch(&cfg.Search, raw.Search); err != nil {
		return nil, err
	}

	if raw.Cache.Expiry != "" {
		cfg.Cache.Expiry, err = time.ParseDuration(raw.Cache.Expiry)
		if err != nil {
			return nil, fmt.Errorf("parse cache.expiry %q: %w", raw.Cache.Expiry, err)
		}
	}

	if raw.Store.Path != "" {
		cfg.Store.Path = raw.Store.Path
	}

	if raw.RateLimit.MinDelay != "" {
		cfg.RateLimit.MinDelay, err = time.ParseDuration(raw.RateLimit.MinDelay)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.min_delay %q: %w", raw.RateLimit.MinDelay, err)
		}
	}
	if len(raw.RateLimit.SiteOverrides) > 0 {
		overrides := make(map[string]time.Duration, len(raw.RateLimit.SiteOverrides))
		for site, v := range raw.RateLimit.SiteOverrides {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("parse rate_limit.site_overrides[%q]: %w", site, err)
			}
			overrides[site] = d
		}
		cfg.RateLimit.SiteOverrides = overrides
	}

	if err := parseWatch(&cfg.Watch, raw.Watch); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseSearch(dst *SearchConfig, raw rawSearchConfig) error {
	var err error
	if raw.RequestTimeout != "" {
		dst.RequestTimeout, err = time.ParseDuration(raw.RequestTimeout)
		if err != nil {
			return fmt.Errorf("parse search.request_timeout %q: %w", raw.RequestTimeout, err)
		}
	}
	if raw.MaxRetries != nil {
		dst.MaxRetries = *raw.MaxRetries
	}
	if raw.RetryBaseDelay != "" {
		dst.RetryBaseDelay, err = time.ParseDuration(raw.RetryBaseDelay)
		if err != nil {
			return fmt.Errorf("parse search.retry_base_delay %q: %w", raw.RetryBaseDelay, err)
		}
	}
	if raw.PerSourceLimit > 0 {
		dst.PerSourceLimit = raw.PerSourceLimit
	}
	if raw.TotalLimit > 0 {
		dst.TotalLimit = raw.TotalLimit
	}
	if raw.SnippetMaxLen > 0 {
		dst.SnippetMaxLen = raw.SnippetMaxLen
	}
	return nil
}

func parseWatch(dst *WatchConfig, raw rawWatchConfig) error {
	var err error
	if raw.Interval != "" {
		dst.Interval, err = time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("parse watch.interval %q: %w", raw.Interval, err)
		}
	}
	if raw.SeenTTL != "" {
		dst.SeenTTL, err = time.ParseDuration(raw.SeenTTL)
		if err != nil {
			return fmt.Errorf("parse watch.seen_ttl %q: %w", raw.SeenTTL, err)
		}
	}
	dst.Keyword = raw.Keyword
	dst.Location = raw.Location
	if len(raw.Sites) > 0 {
		dst.Sites = raw.Sites
	}
	if raw.Notification.Type != "" {
		dst.Notification = raw.Notification
	}
	return nil
}

func validate(cfg *Config) error {
	if len(cfg.Sites) == 0 {
		return fmt.Errorf("at least one site must be configured")
	}
	for id, site := range cfg.Sites {
		if site.APIURL == "" {
			return fmt.Errorf("sites.%s.api_url is required", id)
		}
		if site.PerPage <= 0 {
			return fmt.Errorf("sites.%s.per_page must be positive, got %d", id, site.PerPage)
		}
		for _, kind := range urlKinds {
			if site.URLs[kind] == "" {
				return fmt.Errorf("sites.%s.urls.%s template is required", id, kind)
			}
		}
	}

	s := cfg.Search
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("search.request_timeout must be positive, got %v", s.RequestTimeout)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("search.max_retries must not be negative, got %d", s.MaxRetries)
	}
	if s.PerSourceLimit <= 0 || s.TotalLimit <= 0 {
		return fmt.Errorf("search limits must be positive, got per_source=%d total=%d", s.PerSourceLimit, s.TotalLimit)
	}
	if s.SnippetMaxLen <= 0 {
		return fmt.Errorf("search.snippet_max_len must be positive, got %d", s.SnippetMaxLen)
	}

	if cfg.Cache.Expiry <= 0 {
		return fmt.Errorf("cache.expiry must be positive, got %v", cfg.Cache.Expiry)
	}

	for site := range cfg.RateLimit.SiteOverrides {
		if _, ok := cfg.Sites[site]; !ok {
			return fmt.Errorf("rate_limit.site_overrides references unknown site %q", site)
		}
	}

	w := cfg.Watch
	for _, site := range w.Sites {
		if _, ok := cfg.Sites[site]; !ok {
			return fmt.Errorf("watch.sites references unknown site %q", site)
		}
	}
	switch w.Notification.Type {
	case "", "log":
	case "webhook":
		if w.Notification.WebhookURL == "" {
			return fmt.Errorf("watch.notification.webhook_url is required when type is \"webhook\"")
		}
	default:
		return fmt.Errorf("watch.notification.type must be \"log\" or \"webhook\", got %q", w.Notification.Type)
	}

	return nil
}
