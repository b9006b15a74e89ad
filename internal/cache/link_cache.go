package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"shortlinks/internal/entities"
)

// Config controls expiry per entry kind. Stats and search results reflect
// aggregate state that changes on every click, so they live shorter than links.
type Config struct {
	LinkTTL   time.Duration
	StatsTTL  time.Duration
	SearchTTL time.Duration
	OpTimeout time.Duration // upper bound for a single backend call
	// FetchTimeout bounds a shared store fetch, which outlives the request
	// that started it
	FetchTimeout time.Duration
}

// DefaultConfig returns the standard TTLs
func DefaultConfig() Config {
	return Config{
		LinkTTL:      time.Hour,
		StatsTTL:     5 * time.Minute,
		SearchTTL:    10 * time.Minute,
		OpTimeout:    500 * time.Millisecond,
		FetchTimeout: 10 * time.Second,
	}
}

func LinkKey(shortCode string) string { return "link:" + shortCode }

func StatsKey(shortCode string) string { return "stats:" + shortCode }

func SearchKey(normalizedURL string) string { return "search:" + normalizedURL }

// LinkCache is the typed, best-effort cache in front of the link repository.
// It never returns backend errors: failed reads are misses and failed writes
// are logged. A nil backend turns every call into a miss or a no-op.
type LinkCache struct {
	backend Cache
	cfg     Config
	group   singleflight.Group
}

// NewLinkCache creates a link cache over backend, which may be nil
func NewLinkCache(backend Cache, cfg Config) *LinkCache {
	return &LinkCache{backend: backend, cfg: cfg}
}

// Enabled reports whether a backend is configured
func (c *LinkCache) Enabled() bool {
	return c.backend != nil
}

// Ping checks the backend
func (c *LinkCache) Ping(ctx context.Context) error {
	if c.backend == nil {
		return errors.New("cache disabled")
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	return c.backend.Ping(ctx)
}

func (c *LinkCache) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.OpTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.OpTimeout)
}

// fetchContext detaches a shared fetch from the caller that started it, so one
// client going away does not fail the others waiting on the same key
func (c *LinkCache) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if c.cfg.FetchTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.FetchTimeout)
}

func getJSON[T any](ctx context.Context, c *LinkCache, key string) (T, bool) {
	var v T
	if c.backend == nil {
		return v, false
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Cache read failed, falling back to store")
		}
		return v, false
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		c.invalidate(ctx, key)
		return v, false
	}
	return v, true
}

func (c *LinkCache) put(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.backend == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.backend.Set(ctx, key, string(data), ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

func (c *LinkCache) invalidate(ctx context.Context, keys ...string) {
	if c.backend == nil || len(keys) == 0 {
		return
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.backend.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("Cache invalidation failed, entries will expire by TTL")
	}
}

// ReadThrough returns the cached value for key, or calls fetch, caches its
// result for ttl and returns it. Concurrent misses on the same key share one
// fetch, which runs detached from any single caller; each caller stops
// waiting when its own ctx is done. Values are shared between those callers
// and must not be mutated.
func ReadThrough[T any](ctx context.Context, c *LinkCache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := getJSON[T](ctx, c, key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := c.fetchContext(ctx)
		defer cancel()

		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.put(fetchCtx, key, v, ttl)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// PutLink caches a link for redirects
func (c *LinkCache) PutLink(ctx context.Context, link *entities.Link) {
	c.put(ctx, LinkKey(link.ShortCode), link, c.cfg.LinkTTL)
}

// GetLink returns the cached link, if any
func (c *LinkCache) GetLink(ctx context.Context, shortCode string) (*entities.Link, bool) {
	link, ok := getJSON[*entities.Link](ctx, c, LinkKey(shortCode))
	if !ok || link == nil {
		return nil, false
	}
	return link, true
}

// InvalidateLink drops the cached link and its stats
func (c *LinkCache) InvalidateLink(ctx context.Context, shortCode string) {
	c.invalidate(ctx, LinkKey(shortCode), StatsKey(shortCode))
}

// Stats returns the cached snapshot for shortCode, loading it with fetch on a miss
func (c *LinkCache) Stats(ctx context.Context, shortCode string, fetch func(context.Context) (entities.StatsSnapshot, error)) (entities.StatsSnapshot, error) {
	return ReadThrough(ctx, c, StatsKey(shortCode), c.cfg.StatsTTL, fetch)
}

func (c *LinkCache) InvalidateStats(ctx context.Context, shortCode string) {
	c.invalidate(ctx, StatsKey(shortCode))
}

// Search returns the cached results for normalizedURL, loading them with fetch on a miss
func (c *LinkCache) Search(ctx context.Context, normalizedURL string, fetch func(context.Context) ([]entities.StatsSnapshot, error)) ([]entities.StatsSnapshot, error) {
	return ReadThrough(ctx, c, SearchKey(normalizedURL), c.cfg.SearchTTL, fetch)
}

// InvalidateSearch drops cached search results for the given URLs
func (c *LinkCache) InvalidateSearch(ctx context.Context, normalizedURLs ...string) {
	keys := make([]string, 0, len(normalizedURLs))
	for _, u := range normalizedURLs {
		if u != "" {
			keys = append(keys, SearchKey(u))
		}
	}
	c.invalidate(ctx, keys...)
}
