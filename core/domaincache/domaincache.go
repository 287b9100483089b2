// Package domaincache wraps the cache engine with typed helpers for routes,
// timelines, favorites and settings. Each entity has its own key namespace and TTL.
package domaincache

import (
	"context"
	"time"

	"github.com/roamly/tripcache/core/cache"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
)

// Key namespaces.
const (
	RoutesNamespace    = "routes"
	TimelinesNamespace = "timelines"
	FavoritesNamespace = "favorites"
	SettingsNamespace  = "settings"
)

// settingsID is the fixed id of the single settings value.
const settingsID = "current"

// Facade routes typed reads and writes to the cache engine.
type Facade struct {
	engine *cache.Engine
	ttls   map[schema.EntityType]time.Duration
}

// New returns a facade over engine. Entity types missing from ttls use contract.DefaultTTL.
func New(engine *cache.Engine, ttls map[schema.EntityType]time.Duration) *Facade {
	resolved := make(map[schema.EntityType]time.Duration, len(schema.ValidEntityTypes))
	for entity := range schema.ValidEntityTypes {
		resolved[entity] = contract.DefaultTTL
		if ttl, ok := ttls[entity]; ok && ttl > 0 {
			resolved[entity] = ttl
		}
	}
	return &Facade{engine: engine, ttls: resolved}
}

// Engine returns the underlying cache engine.
func (f *Facade) Engine() *cache.Engine { return f.engine }

// TTL returns the TTL applied to an entity type.
func (f *Facade) TTL(entity schema.EntityType) time.Duration { return f.ttls[entity] }

// Key builds the logical cache key for an entity id within a namespace.
func Key(namespace, id string) string { return namespace + ":" + id }

// CacheRoute stores a route under its id.
func (f *Facade) CacheRoute(ctx context.Context, route schema.Route) bool {
	return f.engine.Set(ctx, Key(RoutesNamespace, route.ID), route, f.ttls[schema.RouteEntity])
}

// GetCachedRoute returns the cached route, if any.
func (f *Facade) GetCachedRoute(ctx context.Context, id string) (schema.Route, bool) {
	return cache.Get[schema.Route](ctx, f.engine, Key(RoutesNamespace, id))
}

// RemoveCachedRoute drops a route from the cache.
func (f *Facade) RemoveCachedRoute(ctx context.Context, id string) bool {
	return f.engine.Remove(ctx, Key(RoutesNamespace, id))
}

// ClearRoutes drops every cached route.
func (f *Facade) ClearRoutes(ctx context.Context) bool {
	return f.engine.ClearByPrefix(ctx, RoutesNamespace+":")
}

// CacheTimeline stores a timeline under its route id.
func (f *Facade) CacheTimeline(ctx context.Context, timeline schema.Timeline) bool {
	return f.engine.Set(ctx, Key(TimelinesNamespace, timeline.RouteID), timeline, f.ttls[schema.TimelineEntity])
}

// GetCachedTimeline returns the cached timeline of a route, if any.
func (f *Facade) GetCachedTimeline(ctx context.Context, routeID string) (schema.Timeline, bool) {
	return cache.Get[schema.Timeline](ctx, f.engine, Key(TimelinesNamespace, routeID))
}

// RemoveCachedTimeline drops a timeline from the cache.
func (f *Facade) RemoveCachedTimeline(ctx context.Context, routeID string) bool {
	return f.engine.Remove(ctx, Key(TimelinesNamespace, routeID))
}

// CacheFavorites stores the whole favorites list as one value.
func (f *Facade) CacheFavorites(ctx context.Context, ids []string) bool {
	if ids == nil {
		ids = []string{}
	}
	return f.engine.Set(ctx, Key(FavoritesNamespace, schema.FavoritesID), ids, f.ttls[schema.FavoritesEntity])
}

// GetCachedFavorites returns the cached favorites list, if any.
func (f *Facade) GetCachedFavorites(ctx context.Context) ([]string, bool) {
	return cache.Get[[]string](ctx, f.engine, Key(FavoritesNamespace, schema.FavoritesID))
}

// CacheSettings stores the user settings.
func (f *Facade) CacheSettings(ctx context.Context, settings schema.Settings) bool {
	return f.engine.Set(ctx, Key(SettingsNamespace, settingsID), settings, f.ttls[schema.SettingsEntity])
}

// GetCachedSettings returns the cached settings, if any.
func (f *Facade) GetCachedSettings(ctx context.Context) (schema.Settings, bool) {
	return cache.Get[schema.Settings](ctx, f.engine, Key(SettingsNamespace, settingsID))
}

// ClearAll drops every cached entity.
func (f *Facade) ClearAll(ctx context.Context) bool {
	return f.engine.Clear(ctx)
}
