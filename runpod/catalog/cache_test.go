package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ncobase/runpod/runpod/job"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingDiscoverer returns a fresh id list per call
type countingDiscoverer struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (d *countingDiscoverer) Discover(ctx context.Context) ([]string, error) {
	n := d.calls.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.err != nil {
		return nil, d.err
	}
	return []string{"granite-4-0-h-small", "wan-2-5", "call-" + string(rune('0'+n))}, nil
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestCacheFreshness(t *testing.T) {
	d := &countingDiscoverer{}
	clock := newClock()
	c := NewCache(d, WithClock(clock))
	ctx := context.Background()

	first, err := c.GetModels(ctx)
	if err != nil {
		t.Fatalf("GetModels: %v", err)
	}
	if d.calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", d.calls.Load())
	}

	clock.Advance(5*time.Minute - time.Second)
	second, err := c.GetModels(ctx)
	if err != nil {
		t.Fatalf("GetModels: %v", err)
	}
	if d.calls.Load() != 1 {
		t.Errorf("calls within TTL = %d, want 1", d.calls.Load())
	}
	if strings.Join(first, ",") != strings.Join(second, ",") {
		t.Errorf("cached = %v, want %v", second, first)
	}

	clock.Advance(time.Second)
	third, err := c.GetModels(ctx)
	if err != nil {
		t.Fatalf("GetModels: %v", err)
	}
	if d.calls.Load() != 2 {
		t.Errorf("calls at TTL = %d, want 2", d.calls.Load())
	}
	if third[2] != "call-2" {
		t.Errorf("refreshed = %v", third)
	}
}

func TestCacheReturnsCopy(t *testing.T) {
	c := NewCache(&countingDiscoverer{}, WithClock(newClock()))
	got, _ := c.GetModels(context.Background())
	got[0] = "mutated"

	again, _ := c.GetModels(context.Background())
	if again[0] == "mutated" {
		t.Error("caller mutation leaked into the snapshot")
	}
}

func TestCacheDiscoveryFailureKeepsStaleSnapshot(t *testing.T) {
	d := &countingDiscoverer{}
	clock := newClock()
	c := NewCache(d, WithClock(clock))
	ctx := context.Background()

	if _, err := c.GetModels(ctx); err != nil {
		t.Fatalf("GetModels: %v", err)
	}
	before, _ := c.Snapshot(ctx)

	clock.Advance(10 * time.Minute)
	d.err = errors.New("network down")

	models, err := c.GetModels(ctx)
	if !errors.Is(err, ErrDiscovery) {
		t.Fatalf("err = %v, want ErrDiscovery", err)
	}
	if models != nil {
		t.Errorf("stale models returned: %v", models)
	}
	after, _ := c.Snapshot(ctx)
	if after != before {
		t.Error("snapshot modified by failed refresh")
	}
}

func TestCacheEmptyDiscoveryIsError(t *testing.T) {
	c := NewCache(DiscovererFunc(func(context.Context) ([]string, error) { return nil, nil }))
	if _, err := c.GetModels(context.Background()); !errors.Is(err, ErrDiscovery) {
		t.Errorf("err = %v, want ErrDiscovery", err)
	}
}

func TestCacheConcurrentRefresh(t *testing.T) {
	d := &countingDiscoverer{delay: 20 * time.Millisecond}
	c := NewCache(d, WithClock(newClock()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetModels(context.Background()); err != nil {
				t.Errorf("GetModels: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := d.calls.Load(); n != 1 {
		t.Errorf("discovery calls = %d, want 1", n)
	}
}

func TestCacheInvalidate(t *testing.T) {
	d := &countingDiscoverer{}
	c := NewCache(d, WithClock(newClock()))
	ctx := context.Background()

	_, _ = c.GetModels(ctx)
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if s, _ := c.Snapshot(ctx); s != nil {
		t.Errorf("snapshot after Invalidate = %+v", s)
	}
	_, _ = c.GetModels(ctx)
	if d.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", d.calls.Load())
	}
}

func TestCacheWithTTL(t *testing.T) {
	d := &countingDiscoverer{}
	clock := newClock()
	c := NewCache(d, WithClock(clock), WithTTL(time.Minute))

	_, _ = c.GetModels(context.Background())
	clock.Advance(time.Minute)
	_, _ = c.GetModels(context.Background())
	if d.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", d.calls.Load())
	}
}

// fakeRedis implements the commands RedisStore needs
type fakeRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisStoreSharedBetweenCaches(t *testing.T) {
	rc := &fakeRedis{data: map[string]string{}}
	clock := newClock()
	d1 := &countingDiscoverer{}
	d2 := &countingDiscoverer{}

	a := NewCache(d1, WithClock(clock), WithStore(NewRedisStore(rc, "runpod:catalog", 0)))
	b := NewCache(d2, WithClock(clock), WithStore(NewRedisStore(rc, "runpod:catalog", 0)))

	first, err := a.GetModels(context.Background())
	if err != nil {
		t.Fatalf("GetModels: %v", err)
	}
	second, err := b.GetModels(context.Background())
	if err != nil {
		t.Fatalf("GetModels: %v", err)
	}
	if d2.calls.Load() != 0 {
		t.Errorf("second process discovered again")
	}
	if strings.Join(first, ",") != strings.Join(second, ",") {
		t.Errorf("shared = %v, want %v", second, first)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(rc.data["runpod:catalog"]), &snap); err != nil {
		t.Fatalf("stored snapshot: %v", err)
	}
	if !snap.FetchedAt.Equal(clock.Now()) || len(snap.Models) != 3 {
		t.Errorf("stored = %+v", snap)
	}

	if err := b.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := rc.data["runpod:catalog"]; ok {
		t.Error("key not deleted")
	}
}

type fixedKey string

func (k fixedKey) APIKey(context.Context) (string, error) { return string(k), nil }

// rotatingKey returns whatever key was last stored
type rotatingKey struct {
	mu  sync.Mutex
	key string
}

func (k *rotatingKey) set(s string) {
	k.mu.Lock()
	k.key = s
	k.mu.Unlock()
}

func (k *rotatingKey) APIKey(context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.key, nil
}

func TestGraphQLDiscoverer(t *testing.T) {
	var got *job.Request
	r := job.RequesterFunc(func(_ context.Context, req *job.Request) (json.RawMessage, error) {
		got = req
		return json.RawMessage(`{"data":{"allAiApiPublicConfigs":[{"aiApiId":"wan-2-5"},{"aiApiId":""},{"aiApiId":"qwen3-32b-awq"},{"aiApiId":"wan-2-5"}]}}`), nil
	})
	d := NewGraphQLDiscoverer(r, fixedKey("secret"))

	ids, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if strings.Join(ids, ",") != "wan-2-5,qwen3-32b-awq" {
		t.Errorf("ids = %v", ids)
	}
	if got.Method != "POST" || got.URL != DefaultGraphQLEndpoint {
		t.Errorf("request = %s %s", got.Method, got.URL)
	}
	if got.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("auth header = %q", got.Headers["Authorization"])
	}
	var body map[string]string
	if err := json.Unmarshal(got.Body, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if !strings.Contains(body["query"], "allAiApiPublicConfigs { aiApiId }") {
		t.Errorf("query = %q", body["query"])
	}
}

func TestGraphQLDiscovererAnonymous(t *testing.T) {
	var got *job.Request
	r := job.RequesterFunc(func(_ context.Context, req *job.Request) (json.RawMessage, error) {
		got = req
		return json.RawMessage(`{"data":{"allAiApiPublicConfigs":[{"aiApiId":"wan-2-5"}]}}`), nil
	})
	if _, err := NewGraphQLDiscoverer(r, fixedKey("")).Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if _, ok := got.Headers["Authorization"]; ok {
		t.Error("authorization header sent without a key")
	}
}

func TestGraphQLDiscovererReadsKeyPerQuery(t *testing.T) {
	var auth []string
	r := job.RequesterFunc(func(_ context.Context, req *job.Request) (json.RawMessage, error) {
		auth = append(auth, req.Headers["Authorization"])
		return json.RawMessage(`{"data":{"allAiApiPublicConfigs":[{"aiApiId":"wan-2-5"}]}}`), nil
	})
	keys := &rotatingKey{key: "old"}
	d := NewGraphQLDiscoverer(r, keys)

	if _, err := d.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	keys.set("new")
	if _, err := d.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(auth) != 2 || auth[0] != "Bearer old" || auth[1] != "Bearer new" {
		t.Errorf("auth headers = %v", auth)
	}
}

func TestGraphQLDiscovererKeyError(t *testing.T) {
	called := false
	r := job.RequesterFunc(func(context.Context, *job.Request) (json.RawMessage, error) {
		called = true
		return nil, nil
	})
	keys := keyFunc(func(context.Context) (string, error) { return "", errors.New("vault sealed") })
	c := NewCache(NewGraphQLDiscoverer(r, keys))
	if _, err := c.GetModels(context.Background()); !errors.Is(err, ErrDiscovery) {
		t.Errorf("err = %v, want ErrDiscovery", err)
	}
	if called {
		t.Error("query sent without a key")
	}
}

type keyFunc func(context.Context) (string, error)

func (f keyFunc) APIKey(ctx context.Context) (string, error) { return f(ctx) }

func TestGraphQLDiscovererFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{"transport", "", errors.New("dial tcp: refused")},
		{"graphql errors", `{"errors":[{"message":"unauthorized"}]}`, nil},
		{"no data", `{}`, nil},
		{"empty list", `{"data":{"allAiApiPublicConfigs":[]}}`, nil},
		{"malformed", `{"data":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := job.RequesterFunc(func(context.Context, *job.Request) (json.RawMessage, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return json.RawMessage(tt.body), nil
			})
			c := NewCache(NewGraphQLDiscoverer(r, nil))
			if _, err := c.GetModels(context.Background()); !errors.Is(err, ErrDiscovery) {
				t.Errorf("err = %v, want ErrDiscovery", err)
			}
		})
	}
}
