// Package locations resolves free-text place names to provider location
// ids through a persisted, expiry-checked cache.
package locations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/akarpov/jobscout/internal/model"
)

// Store is the durable backing for cache entries. Writes are write-through:
// the cache flushes after every successful resolution.
type Store interface {
	LoadLocations() ([]model.LocationEntry, error)
	PutLocation(e model.LocationEntry) error
}

// Resolution is a resolved location id. Stale marks that the id came from
// an expired entry because the live provider call failed; callers may log
// it but still use the id.
type Resolution struct {
	ID    string
	Stale bool
}

// Cache resolves location text against a provider directory, serving fresh
// entries without network calls and coalescing concurrent resolutions for
// the same key into one provider call.
type Cache struct {
	resolver model.LocationResolver
	store    Store
	expiry   time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]model.LocationEntry
	flight  singleflight.Group
}

// NewCache loads the persisted entries wholesale and returns the cache.
func NewCache(resolver model.LocationResolver, store Store, expiry time.Duration, logger *slog.Logger) (*Cache, error) {
	persisted, err := store.LoadLocations()
	if err != nil {
		return nil, fmt.Errorf("loading location cache: %w", err)
	}

	entries := make(map[string]model.LocationEntry, len(persisted))
	for _, e := range persisted {
		entries[e.Query] = e
	}

	logger.Debug("location cache loaded", "entries", len(entries))

	return &Cache{
		resolver: resolver,
		store:    store,
		expiry:   expiry,
		logger:   logger,
		now:      time.Now,
		entries:  entries,
	}, nil
}

// Normalize folds a location query into its cache key: lowercase, trimmed,
// inner whitespace collapsed.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Resolve maps text to a provider location id. Fresh cache hits never touch
// the network; misses resolve via the provider (single-flight per key) and
// are written through to the store. If the provider fails and a stale entry
// exists, the stale id is returned with Stale set.
func (c *Cache) Resolve(ctx context.Context, text string) (Resolution, error) {
	key := Normalize(text)
	if key == "" {
		return Resolution{}, fmt.Errorf("empty location: %w", model.ErrLocationNotFound)
	}

	if e, ok := c.lookup(key); ok && c.fresh(e) {
		return Resolution{ID: e.ResolvedID}, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		return c.resolveSlow(ctx, key)
	})
	if err != nil {
		return Resolution{}, err
	}
	return v.(Resolution), nil
}

func (c *Cache) lookup(key string) (model.LocationEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache) fresh(e model.LocationEntry) bool {
	return c.now().Sub(e.ResolvedAt) < c.expiry
}

func (c *Cache) resolveSlow(ctx context.Context, key string) (Resolution, error) {
	// A concurrent flight may have refreshed the entry while this caller
	// was waiting for the lock-free fast path to fail.
	if e, ok := c.lookup(key); ok && c.fresh(e) {
		return Resolution{ID: e.ResolvedID}, nil
	}

	id, err := c.resolver.ResolveLocation(ctx, key)
	if err != nil {
		if e, ok := c.lookup(key); ok {
			// Degraded fallback: an expired id beats no id at all.
			c.logger.Warn("location resolution failed, serving stale entry",
				"query", key,
				"age", c.now().Sub(e.ResolvedAt).String(),
				"error", err,
			)
			return Resolution{ID: e.ResolvedID, Stale: true}, nil
		}
		return Resolution{}, err
	}

	entry := model.LocationEntry{Query: key, ResolvedID: id, ResolvedAt: c.now()}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	// Write-through. A flush failure costs durability of this one entry,
	// not the resolution itself.
	if err := c.store.PutLocation(entry); err != nil {
		c.logger.Warn("location cache flush failed", "query", key, "error", err)
	}

	return Resolution{ID: id}, nil
}

// Entries returns a snapshot of the in-memory cache, for inspection.
func (c *Cache) Entries() []model.LocationEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.LocationEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// Fresh reports whether an entry is inside the expiry window.
func (c *Cache) Fresh(e model.LocationEntry) bool {
	return c.fresh(e)
}
