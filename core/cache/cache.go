// Package cache implements a TTL cache over a PersistentStore with optional compression,
// size accounting, global size-bounded eviction and a format version check.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/internal/logger"
	"github.com/roamly/tripcache/schema"
)

// Reserved store keys.
const (
	KeyPrefix  = "cache:"
	MetaKey    = KeyPrefix + "meta"
	VersionKey = KeyPrefix + "version"
)

// FormatVersion is the cache format written by this build.
// Opening a cache written with any other version clears it.
const FormatVersion = "2"

// Options configures an Engine. Zero sizes and TTLs take the contract defaults,
// but the zero value leaves compression and the startup sweep off. Start from
// DefaultOptions to get both enabled.
type Options struct {
	MaxCacheSize   int64
	DefaultTTL     time.Duration
	UseCompression bool
	CleanOnInit    bool

	// Version overrides FormatVersion. Used by tests.
	Version string

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Engine is a TTL cache whose values and metadata index live in a PersistentStore.
// Every operation takes the engine lock, so the index is always read, changed and
// written as a unit.
type Engine struct {
	mu    sync.Mutex
	store contract.PersistentStore
	opts  Options
	clock clockwork.Clock
	log   *slog.Logger
	codec *codec
}

// DefaultOptions returns the default cache configuration: 50MB, 24h TTL,
// compression on and expired entries swept at startup.
func DefaultOptions() Options {
	return Options{
		MaxCacheSize:   contract.DefaultMaxCacheSize,
		DefaultTTL:     contract.DefaultTTL,
		UseCompression: true,
		CleanOnInit:    true,
	}
}

// New returns an engine without touching the store. Most callers want Open.
func New(store contract.PersistentStore, opts Options) (*Engine, error) {
	if opts.MaxCacheSize <= 0 {
		opts.MaxCacheSize = contract.DefaultMaxCacheSize
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = contract.DefaultTTL
	}
	if opts.Version == "" {
		opts.Version = FormatVersion
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	return &Engine{
		store: store,
		opts:  opts,
		clock: opts.Clock,
		log:   logger.OrDiscard(opts.Logger).With("component", "cache"),
		codec: c,
	}, nil
}

// Open returns an initialized engine. See Init.
func Open(ctx context.Context, store contract.PersistentStore, opts Options) (*Engine, error) {
	e, err := New(store, opts)
	if err != nil {
		return nil, err
	}
	if err := e.Init(ctx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// Init checks the stored format version, clearing the cache on mismatch,
// and sweeps expired entries when CleanOnInit is set.
func (e *Engine) Init(ctx context.Context) error {
	stored, ok, err := e.store.Get(ctx, VersionKey)
	if err != nil {
		return newError("init", VersionKey, ErrStorage, err)
	}
	if !ok || stored != e.opts.Version {
		if ok {
			e.log.Info("cache version changed, clearing cache", "stored", stored, "current", e.opts.Version)
		}
		if err := e.TryClear(ctx); err != nil {
			return err
		}
		if err := e.store.Set(ctx, VersionKey, e.opts.Version); err != nil {
			return newError("init", VersionKey, ErrStorage, err)
		}
	}
	if e.opts.CleanOnInit {
		if n := e.CleanExpired(ctx); n > 0 {
			e.log.Info("removed expired cache entries", "count", n)
		}
	}
	return nil
}

// Close releases the compression resources. The store is owned by the caller.
func (e *Engine) Close() {
	e.codec.close()
}

// MaxSize returns the configured size bound in bytes.
func (e *Engine) MaxSize() int64 { return e.opts.MaxCacheSize }

// DefaultTTL returns the TTL used when Set is called without one.
func (e *Engine) DefaultTTL() time.Duration { return e.opts.DefaultTTL }

func storageKey(key string) string { return KeyPrefix + key }

func validKey(key string) bool {
	sk := storageKey(key)
	return key != "" && sk != MetaKey && sk != VersionKey
}

// Set stores value under key for ttl, or the default TTL when ttl <= 0.
// It reports false on any failure; the failure is logged.
func (e *Engine) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if err := e.TrySet(ctx, key, value, ttl); err != nil {
		e.log.Warn("cache set failed", "key", key, "error", err)
		return false
	}
	return true
}

// TrySet is Set with the failure kind exposed.
func (e *Engine) TrySet(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !validKey(key) {
		return newError("set", key, ErrInvalidKey, nil)
	}
	if ttl <= 0 {
		ttl = e.opts.DefaultTTL
	}

	compressed := e.opts.UseCompression
	payload, err := e.codec.encode(value, compressed)
	if err != nil {
		return newError("set", key, ErrSerialization, err)
	}
	size := int64(len(payload))
	if size > e.opts.MaxCacheSize {
		return newError("set", key, ErrTooLarge, nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.loadMeta(ctx)
	if err != nil {
		return newError("set", key, ErrStorage, err)
	}

	evicted, err := e.evictLocked(ctx, idx, key, size)
	if err != nil {
		e.persistEvictions(ctx, idx, evicted)
		return newError("set", key, ErrStorage, err)
	}

	if err := e.store.Set(ctx, storageKey(key), payload); err != nil {
		e.persistEvictions(ctx, idx, evicted)
		return newError("set", key, ErrStorage, err)
	}

	now := e.clock.Now()
	idx[key] = metaEntry{
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		SizeBytes:  size,
		Compressed: compressed,
		Checksum:   checksum(payload),
	}
	if err := e.saveMeta(ctx, idx); err != nil {
		return newError("set", key, ErrStorage, err)
	}
	if evicted > 0 {
		e.log.Debug("evicted cache entries", "count", evicted, "for", key)
	}
	return nil
}

// evictLocked removes the oldest entries across the whole cache until an entry of
// size bytes fits under key. The old size of key itself never counts.
func (e *Engine) evictLocked(ctx context.Context, idx metaIndex, key string, size int64) (int, error) {
	total := idx.totalSize(key)
	if total+size <= e.opts.MaxCacheSize {
		return 0, nil
	}
	evicted := 0
	for _, victim := range idx.oldestFirst(key) {
		if total+size <= e.opts.MaxCacheSize {
			break
		}
		if err := e.store.Remove(ctx, storageKey(victim)); err != nil {
			return evicted, err
		}
		total -= idx[victim].SizeBytes
		delete(idx, victim)
		evicted++
	}
	return evicted, nil
}

// persistEvictions keeps the index consistent with values already removed
// when a Set fails part way through.
func (e *Engine) persistEvictions(ctx context.Context, idx metaIndex, evicted int) {
	if evicted == 0 {
		return
	}
	if err := e.saveMeta(ctx, idx); err != nil {
		e.log.Warn("failed to record evictions", "count", evicted, "error", err)
	}
}

// Get decodes the value under key into out. It reports false on a miss,
// on expiry and on any failure.
func (e *Engine) Get(ctx context.Context, key string, out any) bool {
	err := e.TryGet(ctx, key, out)
	switch {
	case err == nil:
		return true
	case IsMiss(err):
		e.log.Debug("cache miss", "key", key, "reason", err)
	default:
		e.log.Warn("cache get failed", "key", key, "error", err)
	}
	return false
}

// TryGet is Get with the failure kind exposed.
// Expired entries are deleted. Entries whose payload is gone or unreadable are purged.
func (e *Engine) TryGet(ctx context.Context, key string, out any) error {
	if !validKey(key) {
		return newError("get", key, ErrInvalidKey, nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.loadMeta(ctx)
	if err != nil {
		return newError("get", key, ErrStorage, err)
	}
	meta, ok := idx[key]
	if !ok {
		return newError("get", key, ErrMiss, nil)
	}
	if meta.expired(e.clock.Now()) {
		if err := e.removeLocked(ctx, idx, key); err != nil {
			e.log.Warn("failed to delete expired entry", "key", key, "error", err)
		}
		return newError("get", key, ErrExpired, nil)
	}

	payload, ok, err := e.store.Get(ctx, storageKey(key))
	if err != nil {
		return newError("get", key, ErrStorage, err)
	}
	if !ok {
		// The index outlived its value; drop the index row.
		delete(idx, key)
		if err := e.saveMeta(ctx, idx); err != nil {
			e.log.Warn("failed to drop orphaned index entry", "key", key, "error", err)
		}
		return newError("get", key, ErrMiss, nil)
	}

	if meta.Checksum != "" && checksum(payload) != meta.Checksum {
		e.purgeLocked(ctx, idx, key)
		return newError("get", key, ErrSerialization, errors.New("checksum mismatch"))
	}
	if err := e.codec.decode(payload, meta.Compressed, out); err != nil {
		e.purgeLocked(ctx, idx, key)
		return newError("get", key, ErrSerialization, err)
	}
	return nil
}

// Get is a typed form of Engine.Get.
func Get[T any](ctx context.Context, e *Engine, key string) (T, bool) {
	var v T
	if !e.Get(ctx, key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

func (e *Engine) purgeLocked(ctx context.Context, idx metaIndex, key string) {
	if err := e.removeLocked(ctx, idx, key); err != nil {
		e.log.Warn("failed to purge unreadable entry", "key", key, "error", err)
	}
}

// removeLocked deletes the value first and only then drops the index row.
func (e *Engine) removeLocked(ctx context.Context, idx metaIndex, key string) error {
	if err := e.store.Remove(ctx, storageKey(key)); err != nil {
		return err
	}
	delete(idx, key)
	return e.saveMeta(ctx, idx)
}

// Remove deletes key. Removing an absent key succeeds.
func (e *Engine) Remove(ctx context.Context, key string) bool {
	if err := e.TryRemove(ctx, key); err != nil {
		e.log.Warn("cache remove failed", "key", key, "error", err)
		return false
	}
	return true
}

// TryRemove is Remove with the failure kind exposed.
func (e *Engine) TryRemove(ctx context.Context, key string) error {
	if !validKey(key) {
		return newError("remove", key, ErrInvalidKey, nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.loadMeta(ctx)
	if err != nil {
		return newError("remove", key, ErrStorage, err)
	}
	if err := e.removeLocked(ctx, idx, key); err != nil {
		return newError("remove", key, ErrStorage, err)
	}
	return nil
}

// Clear removes every tracked entry and resets the index.
func (e *Engine) Clear(ctx context.Context) bool {
	if err := e.TryClear(ctx); err != nil {
		e.log.Warn("cache clear failed", "error", err)
		return false
	}
	return true
}

// TryClear is Clear with the failure kind exposed.
func (e *Engine) TryClear(ctx context.Context) error {
	return e.removeMatching(ctx, "clear", func(string) bool { return true })
}

// ClearByPrefix removes every entry whose logical key starts with prefix.
func (e *Engine) ClearByPrefix(ctx context.Context, prefix string) bool {
	err := e.removeMatching(ctx, "clear_prefix", func(k string) bool { return strings.HasPrefix(k, prefix) })
	if err != nil {
		e.log.Warn("cache prefix clear failed", "prefix", prefix, "error", err)
		return false
	}
	return true
}

// removeMatching removes matching entries. Entries removed before a failure stay
// removed and the index reflects them.
func (e *Engine) removeMatching(ctx context.Context, op string, match func(string) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.loadMeta(ctx)
	if err != nil {
		return newError(op, "", ErrStorage, err)
	}
	var firstErr error
	for key := range idx {
		if !match(key) {
			continue
		}
		if err := e.store.Remove(ctx, storageKey(key)); err != nil {
			if firstErr == nil {
				firstErr = newError(op, key, ErrStorage, err)
			}
			continue
		}
		delete(idx, key)
	}
	if err := e.saveMeta(ctx, idx); err != nil && firstErr == nil {
		firstErr = newError(op, MetaKey, ErrStorage, err)
	}
	return firstErr
}

// CleanExpired removes every entry whose expiry has passed and returns how many were removed.
func (e *Engine) CleanExpired(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.loadMeta(ctx)
	if err != nil {
		e.log.Warn("cache clean failed", "error", err)
		return 0
	}
	now := e.clock.Now()
	removed := 0
	for key, meta := range idx {
		if !meta.ExpiresAt.Before(now) {
			continue
		}
		if err := e.store.Remove(ctx, storageKey(key)); err != nil {
			e.log.Warn("failed to remove expired entry", "key", key, "error", err)
			continue
		}
		delete(idx, key)
		removed++
	}
	if removed > 0 {
		if err := e.saveMeta(ctx, idx); err != nil {
			e.log.Warn("failed to save index after clean", "error", err)
		}
	}
	return removed
}

// Stats summarizes the metadata index without reading any value.
func (e *Engine) Stats(ctx context.Context) schema.CacheStats {
	stats := schema.CacheStats{MaxSizeBytes: e.opts.MaxCacheSize}

	e.mu.Lock()
	idx, err := e.loadMeta(ctx)
	e.mu.Unlock()
	if err != nil {
		e.log.Warn("cache stats failed", "error", err)
		return stats
	}

	now := e.clock.Now()
	for _, meta := range idx {
		stats.TotalItems++
		stats.TotalSizeBytes += meta.SizeBytes
		if meta.expired(now) {
			stats.ExpiredItems++
		}
	}
	stats.ActiveItems = stats.TotalItems - stats.ExpiredItems
	if stats.MaxSizeBytes > 0 {
		stats.UsagePercentage = float64(stats.TotalSizeBytes) / float64(stats.MaxSizeBytes) * 100
	}
	return stats
}

// Keys returns a snapshot of the metadata index ordered by key.
func (e *Engine) Keys(ctx context.Context) ([]schema.CacheKeyInfo, error) {
	e.mu.Lock()
	idx, err := e.loadMeta(ctx)
	e.mu.Unlock()
	if err != nil {
		return nil, newError("keys", "", ErrStorage, err)
	}

	now := e.clock.Now()
	infos := make([]schema.CacheKeyInfo, 0, len(idx))
	for key, meta := range idx {
		infos = append(infos, schema.CacheKeyInfo{
			Key:        key,
			CreatedAt:  meta.CreatedAt,
			ExpiresAt:  meta.ExpiresAt,
			SizeBytes:  meta.SizeBytes,
			Compressed: meta.Compressed,
			Expired:    meta.expired(now),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
