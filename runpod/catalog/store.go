package catalog

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ncobase/runpod/cache"
	"github.com/redis/go-redis/v9"
)

// Snapshot is one discovered catalog. It is replaced whole, never edited.
type Snapshot struct {
	Models    []string  `json:"models"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Store keeps the current snapshot. Load returns nil when there is none.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
	Clear(ctx context.Context) error
}

// MemoryStore holds the snapshot in process.
type MemoryStore struct {
	p atomic.Pointer[Snapshot]
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (*Snapshot, error) {
	return m.p.Load(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Snapshot) error {
	m.p.Store(s)
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.p.Store(nil)
	return nil
}

// RedisStore shares one snapshot between processes under a single key.
// Writes are a single SET, so readers see either the old or the new catalog.
type RedisStore struct {
	cache  *cache.Cache[Snapshot]
	field  string
	expiry time.Duration
}

// NewRedisStore stores the snapshot at key. expiry bounds how long a
// snapshot may linger in redis; zero keeps it until replaced.
func NewRedisStore(rc redis.Cmdable, key string, expiry time.Duration) *RedisStore {
	return &RedisStore{
		cache:  cache.NewCache[Snapshot](rc, ""),
		field:  key,
		expiry: expiry,
	}
}

func (r *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	return r.cache.Get(ctx, r.field)
}

func (r *RedisStore) Save(ctx context.Context, s *Snapshot) error {
	return r.cache.Set(ctx, r.field, s, r.expiry)
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.cache.Delete(ctx, r.field)
}
