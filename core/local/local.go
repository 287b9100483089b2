// Package local keeps the device copies of syncable entities.
// Local mutations are stamped, persisted, cached and queued for push.
// Remote records are applied with last-write-wins on LastUpdated.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/roamly/tripcache/core/domaincache"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/internal/logger"
	"github.com/roamly/tripcache/schema"
)

// Persisted keys.
const (
	entityPrefix      = "entity:"
	routeIndexKey     = entityPrefix + "route:index"
	timelineIndexKey  = entityPrefix + "timeline:index"
	favoritesKey      = entityPrefix + "favorites"
	settingsKey       = entityPrefix + "settings"
	routeKeyPrefix    = entityPrefix + "route:"
	timelineKeyPrefix = entityPrefix + "timeline:"
)

// Enqueuer records that an entity has local changes not yet pushed.
type Enqueuer interface {
	Enqueue(ctx context.Context, entityType schema.EntityType, entityID string) error
}

// Repository stores local entity records in a PersistentStore.
type Repository struct {
	mu    sync.Mutex
	store contract.PersistentStore
	cache *domaincache.Facade
	queue Enqueuer
	clock clockwork.Clock
	log   *slog.Logger
}

// New returns a repository. cache and queue may be nil.
func New(store contract.PersistentStore, cache *domaincache.Facade, queue Enqueuer, clock clockwork.Clock, log *slog.Logger) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Repository{
		store: store,
		cache: cache,
		queue: queue,
		clock: clock,
		log:   logger.OrDiscard(log).With("component", "local"),
	}
}

func routeKey(id string) string    { return routeKeyPrefix + id }
func timelineKey(id string) string { return timelineKeyPrefix + id }

// --- Routes ---

// SaveRoute records a local edit: it stamps LastUpdated, persists the route,
// refreshes the cache and queues the route for push.
func (r *Repository) SaveRoute(ctx context.Context, route schema.Route) (schema.Route, error) {
	if route.ID == "" {
		return route, fmt.Errorf("route id is required")
	}
	route.LastUpdated = r.clock.Now()

	r.mu.Lock()
	err := r.putLocked(ctx, routeKey(route.ID), routeIndexKey, route.ID, route)
	r.mu.Unlock()
	if err != nil {
		return route, err
	}

	r.cacheRoute(ctx, route)
	return route, r.enqueue(ctx, schema.RouteEntity, route.ID)
}

// GetRoute returns the local copy of a route.
func (r *Repository) GetRoute(ctx context.Context, id string) (schema.Route, bool, error) {
	var route schema.Route
	ok, err := r.read(ctx, routeKey(id), &route)
	return route, ok, err
}

// ListRoutes returns every local route ordered by id.
func (r *Repository) ListRoutes(ctx context.Context) ([]schema.Route, error) {
	ids, err := r.readIndex(ctx, routeIndexKey)
	if err != nil {
		return nil, err
	}
	routes := make([]schema.Route, 0, len(ids))
	for _, id := range ids {
		route, ok, err := r.GetRoute(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			routes = append(routes, route)
		}
	}
	return routes, nil
}

// RoutesChangedSince returns local routes updated after since, or all routes when since is nil.
func (r *Repository) RoutesChangedSince(ctx context.Context, since *time.Time) ([]schema.Route, error) {
	routes, err := r.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}
	if since == nil {
		return routes, nil
	}
	changed := routes[:0]
	for _, route := range routes {
		if route.LastUpdated.After(*since) {
			changed = append(changed, route)
		}
	}
	return changed, nil
}

// ApplyRemoteRoute stores a pulled route unless the local copy is newer.
// It reports whether the remote record was applied. Remote records are never queued.
func (r *Repository) ApplyRemoteRoute(ctx context.Context, remote schema.Route) (bool, error) {
	if remote.ID == "" {
		return false, fmt.Errorf("remote route without id")
	}

	r.mu.Lock()
	var local schema.Route
	ok, err := r.read(ctx, routeKey(remote.ID), &local)
	if err == nil && ok && local.LastUpdated.After(remote.LastUpdated) {
		r.mu.Unlock()
		r.log.Debug("kept newer local route", "id", remote.ID)
		return false, nil
	}
	if err == nil {
		err = r.putLocked(ctx, routeKey(remote.ID), routeIndexKey, remote.ID, remote)
	}
	r.mu.Unlock()
	if err != nil {
		return false, err
	}

	r.cacheRoute(ctx, remote)
	return true, nil
}

func (r *Repository) cacheRoute(ctx context.Context, route schema.Route) {
	if r.cache != nil {
		r.cache.CacheRoute(ctx, route)
	}
}

// --- Timelines ---

// SaveTimeline records a local edit of a route timeline.
func (r *Repository) SaveTimeline(ctx context.Context, timeline schema.Timeline) (schema.Timeline, error) {
	if timeline.RouteID == "" {
		return timeline, fmt.Errorf("timeline route id is required")
	}
	timeline.LastUpdated = r.clock.Now()

	r.mu.Lock()
	err := r.putLocked(ctx, timelineKey(timeline.RouteID), timelineIndexKey, timeline.RouteID, timeline)
	r.mu.Unlock()
	if err != nil {
		return timeline, err
	}

	r.cacheTimeline(ctx, timeline)
	return timeline, r.enqueue(ctx, schema.TimelineEntity, timeline.RouteID)
}

// GetTimeline returns the local copy of a route timeline.
func (r *Repository) GetTimeline(ctx context.Context, routeID string) (schema.Timeline, bool, error) {
	var timeline schema.Timeline
	ok, err := r.read(ctx, timelineKey(routeID), &timeline)
	return timeline, ok, err
}

// TimelinesChangedSince returns local timelines updated after since, or all when since is nil.
func (r *Repository) TimelinesChangedSince(ctx context.Context, since *time.Time) ([]schema.Timeline, error) {
	ids, err := r.readIndex(ctx, timelineIndexKey)
	if err != nil {
		return nil, err
	}
	var changed []schema.Timeline
	for _, id := range ids {
		timeline, ok, err := r.GetTimeline(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok && (since == nil || timeline.LastUpdated.After(*since)) {
			changed = append(changed, timeline)
		}
	}
	return changed, nil
}

// ApplyRemoteTimeline stores a pulled timeline unless the local copy is newer.
// The route id comes from the remote map key.
func (r *Repository) ApplyRemoteTimeline(ctx context.Context, routeID string, remote schema.Timeline) (bool, error) {
	if routeID == "" {
		return false, fmt.Errorf("remote timeline without route id")
	}
	remote.RouteID = routeID

	r.mu.Lock()
	var local schema.Timeline
	ok, err := r.read(ctx, timelineKey(routeID), &local)
	if err == nil && ok && local.LastUpdated.After(remote.LastUpdated) {
		r.mu.Unlock()
		r.log.Debug("kept newer local timeline", "route_id", routeID)
		return false, nil
	}
	if err == nil {
		err = r.putLocked(ctx, timelineKey(routeID), timelineIndexKey, routeID, remote)
	}
	r.mu.Unlock()
	if err != nil {
		return false, err
	}

	r.cacheTimeline(ctx, remote)
	return true, nil
}

func (r *Repository) cacheTimeline(ctx context.Context, timeline schema.Timeline) {
	if r.cache != nil {
		r.cache.CacheTimeline(ctx, timeline)
	}
}

// --- Favorites ---

// SetFavorites replaces the local favorites list and queues it for push.
func (r *Repository) SetFavorites(ctx context.Context, ids []string) (schema.Favorites, error) {
	fav := schema.Favorites{IDs: normalizeIDs(ids), LastUpdated: r.clock.Now()}
	r.mu.Lock()
	err := r.write(ctx, favoritesKey, fav)
	r.mu.Unlock()
	if err != nil {
		return fav, err
	}
	r.cacheFavorites(ctx, fav.IDs)
	return fav, r.enqueue(ctx, schema.FavoritesEntity, schema.FavoritesID)
}

// Favorites returns the local favorites list.
func (r *Repository) Favorites(ctx context.Context) (schema.Favorites, bool, error) {
	var fav schema.Favorites
	ok, err := r.read(ctx, favoritesKey, &fav)
	return fav, ok, err
}

// ApplyRemoteFavorites adopts the remote list unless the local list changed after since.
// The remote list carries no timestamp, so a local edit after the last sync wins.
func (r *Repository) ApplyRemoteFavorites(ctx context.Context, ids []string, since *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var local schema.Favorites
	ok, err := r.read(ctx, favoritesKey, &local)
	if err != nil {
		return false, err
	}
	if ok && since != nil && local.LastUpdated.After(*since) {
		return false, nil
	}
	if ok && since == nil && len(local.IDs) > 0 {
		// Never synced: keep what the user picked offline.
		return false, nil
	}

	fav := schema.Favorites{IDs: normalizeIDs(ids), LastUpdated: local.LastUpdated}
	if err := r.write(ctx, favoritesKey, fav); err != nil {
		return false, err
	}
	r.cacheFavorites(ctx, fav.IDs)
	return true, nil
}

func (r *Repository) cacheFavorites(ctx context.Context, ids []string) {
	if r.cache != nil {
		r.cache.CacheFavorites(ctx, ids)
	}
}

// --- Settings ---

// SaveSettings stores the user settings. Settings are not synced.
func (r *Repository) SaveSettings(ctx context.Context, settings schema.Settings) (schema.Settings, error) {
	settings.LastUpdated = r.clock.Now()
	if err := r.write(ctx, settingsKey, settings); err != nil {
		return settings, err
	}
	if r.cache != nil {
		r.cache.CacheSettings(ctx, settings)
	}
	return settings, nil
}

// Settings returns the stored user settings.
func (r *Repository) Settings(ctx context.Context) (schema.Settings, bool, error) {
	var settings schema.Settings
	ok, err := r.read(ctx, settingsKey, &settings)
	return settings, ok, err
}

// --- storage helpers ---

func (r *Repository) enqueue(ctx context.Context, entityType schema.EntityType, id string) error {
	if r.queue == nil {
		return nil
	}
	if err := r.queue.Enqueue(ctx, entityType, id); err != nil {
		return fmt.Errorf("queue %s:%s: %w", entityType, id, err)
	}
	return nil
}

// putLocked writes a record and adds its id to the index. Callers hold r.mu.
func (r *Repository) putLocked(ctx context.Context, key, indexKey, id string, v any) error {
	if err := r.write(ctx, key, v); err != nil {
		return err
	}
	ids, err := r.readIndex(ctx, indexKey)
	if err != nil {
		return err
	}
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return nil
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return r.write(ctx, indexKey, ids)
}

func (r *Repository) readIndex(ctx context.Context, indexKey string) ([]string, error) {
	var ids []string
	if _, err := r.read(ctx, indexKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repository) read(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Repository) write(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// normalizeIDs returns a copy without duplicates or empty ids, keeping the first occurrence.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
