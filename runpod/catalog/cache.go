package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/ncobase/runpod/logging/logger"
	"github.com/ncobase/runpod/runpod/job"
)

// DefaultTTL is how long a discovered catalog stays fresh.
const DefaultTTL = 5 * time.Minute

// Cache serves model ids from the current snapshot and refreshes it through
// the Discoverer once stale. Check, fetch and replace happen under one lock,
// so concurrent callers trigger at most one discovery per stale window.
type Cache struct {
	mu         sync.Mutex
	discoverer Discoverer
	store      Store
	clock      job.Clock
	ttl        time.Duration
	log        *logger.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore replaces the in-memory snapshot store.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithClock injects the time source.
func WithClock(clock job.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// NewCache creates an empty cache in front of d.
func NewCache(d Discoverer, opts ...Option) *Cache {
	c := &Cache{
		discoverer: d,
		store:      NewMemoryStore(),
		clock:      job.SystemClock,
		ttl:        DefaultTTL,
		log:        logger.StdLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetModels returns the cached ids while fresh, otherwise discovers and
// stores a new snapshot. A failed discovery returns a DiscoveryError and
// leaves the stored snapshot untouched.
func (c *Cache) GetModels(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	snap, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn(ctx, "catalog snapshot unreadable, refreshing", "error", err)
		snap = nil
	}
	if c.fresh(snap, now) {
		return append([]string(nil), snap.Models...), nil
	}

	ids, err := c.discoverer.Discover(ctx)
	if err != nil {
		return nil, &DiscoveryError{Err: err}
	}
	if len(ids) == 0 {
		return nil, &DiscoveryError{Err: errEmptyCatalog}
	}

	next := &Snapshot{Models: append([]string(nil), ids...), FetchedAt: now}
	if err := c.store.Save(ctx, next); err != nil {
		c.log.Warn(ctx, "catalog snapshot not stored", "error", err)
	}
	c.log.Debug(ctx, "catalog refreshed", "models", len(ids))
	return append([]string(nil), ids...), nil
}

// Invalidate drops the snapshot so the next GetModels discovers again.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Clear(ctx)
}

// Snapshot returns the stored snapshot without refreshing, nil when empty.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	return c.store.Load(ctx)
}

func (c *Cache) fresh(s *Snapshot, now time.Time) bool {
	return s != nil && len(s.Models) > 0 && now.Sub(s.FetchedAt) < c.ttl
}
