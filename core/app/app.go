// Package app wires the store, cache, queue, local repository and sync engine
// from a validated configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/roamly/tripcache/core/cache"
	"github.com/roamly/tripcache/core/domaincache"
	"github.com/roamly/tripcache/core/local"
	"github.com/roamly/tripcache/core/syncer"
	"github.com/roamly/tripcache/core/syncqueue"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/internal/kvstore"
	"github.com/roamly/tripcache/internal/logger"
	"github.com/roamly/tripcache/internal/remote"
	"github.com/roamly/tripcache/schema"
)

// ErrNoRemote is returned by sync operations when no remote service is configured.
var ErrNoRemote = errors.New("no remote configured (set remote-base-url)")

// Options holds the dependencies that are not part of the configuration.
type Options struct {
	// Store overrides the store built from the configured backend.
	Store contract.PersistentStore

	// Remote overrides the HTTP client built from remote-base-url.
	Remote contract.RemoteClient

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// App holds the wired components. Syncer is nil when no remote is configured.
type App struct {
	Config *contract.Config
	Store  contract.PersistentStore
	Cache  *cache.Engine
	Domain *domaincache.Facade
	Queue  *syncqueue.Queue
	Local  *local.Repository
	Syncer *syncer.Engine

	log       *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// Open builds every component for cfg. The cache is initialized, so a format
// version mismatch or expired entries are dealt with before Open returns.
func Open(ctx context.Context, cfg *contract.Config, opts Options) (*App, error) {
	log := logger.OrDiscard(opts.Logger)
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = kvstore.NewStore(cfg.StoreBackend, cfg.StoreConnect, kvstore.Options{Clock: clock})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
	}

	engine, err := cache.Open(ctx, store, cache.Options{
		MaxCacheSize:   cfg.Cache.MaxCacheSize,
		DefaultTTL:     cfg.Cache.DefaultTTL,
		UseCompression: cfg.Cache.UseCompression,
		CleanOnInit:    cfg.Cache.CleanOnInit,
		Clock:          clock,
		Logger:         log,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	ttls := make(map[schema.EntityType]time.Duration, len(schema.ValidEntityTypes))
	for entity := range schema.ValidEntityTypes {
		ttls[entity] = cfg.Cache.TTLFor(entity)
	}
	facade := domaincache.New(engine, ttls)
	queue := syncqueue.New(store, cfg.Sync.Concurrency, log)
	repo := local.New(store, facade, queue, clock, log)

	a := &App{
		Config: cfg,
		Store:  store,
		Cache:  engine,
		Domain: facade,
		Queue:  queue,
		Local:  repo,
		log:    log,
	}

	client := opts.Remote
	if client == nil && cfg.RemoteBaseURL != "" {
		c, err := remote.New(cfg.RemoteBaseURL, cfg.RemoteTimeout)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		client = c
	}
	if client != nil {
		a.Syncer = syncer.New(client, repo, queue, store, syncer.Options{
			Interval:   cfg.Sync.Interval,
			Debounce:   cfg.Sync.Debounce,
			BackOff:    syncer.NewBackOff(cfg.Sync.Backoff, cfg.Sync.Interval, cfg.Sync.MaxBackoff),
			MaxBackoff: cfg.Sync.MaxBackoff,
			Clock:      clock,
			Logger:     log,
		})
	}
	return a, nil
}

// RequireSyncer returns the sync engine or ErrNoRemote.
func (a *App) RequireSyncer() (*syncer.Engine, error) {
	if a.Syncer == nil {
		return nil, ErrNoRemote
	}
	return a.Syncer, nil
}

// SyncStatus reports the engine status. Without a remote it still reports the
// cursor and queue size so offline clients can see what is waiting.
func (a *App) SyncStatus(ctx context.Context) (schema.SyncStatus, error) {
	if a.Syncer != nil {
		return a.Syncer.Status(ctx)
	}
	status := schema.SyncStatus{State: schema.IdleState}
	pending, err := a.Queue.Len(ctx)
	if err != nil {
		return status, err
	}
	status.Pending = pending
	return status, nil
}

// Close stops the sync engine and releases the cache and store. It is safe to call twice.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		if a.Syncer != nil {
			a.Syncer.Stop()
		}
		a.Cache.Close()
		a.closeErr = a.Store.Close()
		if a.closeErr != nil {
			a.log.Warn("failed to close store", "error", a.closeErr)
		}
	})
	return a.closeErr
}
