package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/ncobase/runpod/cache"
	"github.com/ncobase/runpod/config"
	"github.com/ncobase/runpod/logging/logger"
	"github.com/ncobase/runpod/metrics"
	"github.com/ncobase/runpod/net/transport"
	"github.com/ncobase/runpod/runpod/catalog"
	"github.com/ncobase/runpod/runpod/executor"
	"github.com/ncobase/runpod/runpod/job"
	"github.com/ncobase/runpod/version"
)

// app holds the components shared by every command.
type app struct {
	conf      *config.Config
	log       *logger.Logger
	requester *transport.HTTPRequester
	catalog   *catalog.Cache
	coord     *executor.Coordinator
	metrics   *metrics.Collector
	apiKey    *apiKey

	closers []func()
}

// apiKey is the configured credential, swapped on config reload.
type apiKey struct {
	v atomic.Pointer[string]
}

func (k *apiKey) set(s string) { k.v.Store(&s) }

func (k *apiKey) APIKey(context.Context) (string, error) {
	if p := k.v.Load(); p != nil {
		return *p, nil
	}
	return "", nil
}

func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func newApp(ctx context.Context, flags *rootFlags) (*app, error) {
	if err := loadEnv(flags.envFile); err != nil {
		return nil, err
	}

	conf, err := config.Init(flags.configFile)
	if err != nil {
		return nil, err
	}

	cleanup, err := logger.New(conf.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetVersion(version.GetVersionInfo().Version)
	log := logger.StdLogger()

	a := &app{
		conf:    conf,
		log:     log,
		metrics: metrics.NewCollector(0),
		apiKey:  &apiKey{},
		closers: []func(){cleanup},
	}
	a.apiKey.set(conf.Runpod.APIKey)

	a.requester, err = transport.New(conf.Runpod, transport.WithLogger(log))
	if err != nil {
		a.close()
		return nil, err
	}

	store, err := a.catalogStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.catalog = catalog.NewCache(newDiscoverer(a.requester, conf.Runpod, a.apiKey),
		catalog.WithStore(store),
		catalog.WithTTL(conf.Runpod.CatalogTTL),
		catalog.WithLogger(log),
	)

	client := job.NewClient(a.requester, job.WithBaseURL(conf.Runpod.InferenceHost), job.WithClientLogger(log))
	a.coord = executor.NewCoordinator(client, a.catalog, a.apiKey,
		executor.WithLogger(log),
		executor.WithMetrics(a.metrics),
		executor.WithPollDefaults(job.PollOptions{Interval: conf.Runpod.PollInterval, Timeout: conf.Runpod.PollTimeout}),
	)
	return a, nil
}

// newDiscoverer queries the configured API host with the live key.
func newDiscoverer(r job.Requester, rc *config.Runpod, keys catalog.KeySource) *catalog.GraphQLDiscoverer {
	d := catalog.NewGraphQLDiscoverer(r, keys)
	d.Endpoint = strings.TrimRight(rc.APIHost, "/") + "/graphql"
	return d
}

// catalogStore shares the catalog through redis when configured.
func (a *app) catalogStore(ctx context.Context) (catalog.Store, error) {
	rc := a.conf.Cache.Redis
	if !rc.Enabled() {
		return catalog.NewMemoryStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := cache.Connect(connectCtx, cache.RedisOptions{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.log.Info(ctx, "catalog shared through redis", "addr", rc.Addr, "key", rc.Key)
	return catalog.NewRedisStore(client, rc.Key, a.conf.Runpod.CatalogTTL), nil
}

// watch follows config file changes for the credential.
func (a *app) watch(ctx context.Context) {
	config.Watch(func(c *config.Config) {
		a.apiKey.set(c.Runpod.APIKey)
		if err := a.catalog.Invalidate(ctx); err != nil {
			a.log.Warn(ctx, "failed to invalidate catalog after reload", "error", err)
		}
		a.log.Info(ctx, "configuration reloaded")
	}, func(err error) {
		a.log.Error(ctx, "configuration reload rejected", "error", err)
	})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
