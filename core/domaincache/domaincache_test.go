package domaincache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/roamly/tripcache/core/cache"
	"github.com/roamly/tripcache/internal/kvstore"
	"github.com/roamly/tripcache/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFacade(t *testing.T, ttls map[schema.EntityType]time.Duration) (*Facade, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	store := kvstore.NewMemoryStore(kvstore.Options{Clock: clock})
	engine, err := cache.Open(context.Background(), store, cache.Options{UseCompression: true, Clock: clock})
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return New(engine, ttls), clock
}

func TestRouteRoundTrip(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t, nil)

	route := schema.Route{ID: "route1", Name: "Test"}
	require.True(t, f.CacheRoute(ctx, route))

	got, ok := f.GetCachedRoute(ctx, "route1")
	assert.True(t, ok)
	assert.Equal(t, route, got)

	require.True(t, f.RemoveCachedRoute(ctx, "route1"))
	_, ok = f.GetCachedRoute(ctx, "route1")
	assert.False(t, ok)
}

func TestClearAllThenGetRoute(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t, nil)

	require.True(t, f.CacheRoute(ctx, schema.Route{ID: "route1", Name: "Test"}))
	require.True(t, f.ClearAll(ctx))

	_, ok := f.GetCachedRoute(ctx, "route1")
	assert.False(t, ok)
}

func TestRouteExpiresAfterDefaultTTL(t *testing.T) {
	ctx := context.Background()
	f, clock := newTestFacade(t, nil)

	require.True(t, f.CacheRoute(ctx, schema.Route{ID: "route1"}))
	clock.Advance(25 * time.Hour)

	_, ok := f.GetCachedRoute(ctx, "route1")
	assert.False(t, ok)
}

func TestPerNamespaceTTL(t *testing.T) {
	ctx := context.Background()
	f, clock := newTestFacade(t, map[schema.EntityType]time.Duration{
		schema.TimelineEntity: time.Hour,
		schema.SettingsEntity: 72 * time.Hour,
	})
	assert.Equal(t, 24*time.Hour, f.TTL(schema.RouteEntity))

	require.True(t, f.CacheTimeline(ctx, schema.Timeline{RouteID: "route1"}))
	require.True(t, f.CacheSettings(ctx, schema.Settings{Theme: "dark"}))
	require.True(t, f.CacheRoute(ctx, schema.Route{ID: "route1"}))

	clock.Advance(2 * time.Hour)
	_, ok := f.GetCachedTimeline(ctx, "route1")
	assert.False(t, ok, "timeline TTL is one hour")
	_, ok = f.GetCachedRoute(ctx, "route1")
	assert.True(t, ok)

	clock.Advance(48 * time.Hour)
	settings, ok := f.GetCachedSettings(ctx)
	assert.True(t, ok, "settings TTL is three days")
	assert.Equal(t, "dark", settings.Theme)
}

func TestFavoritesStoredAsOneList(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t, nil)

	require.True(t, f.CacheFavorites(ctx, []string{"r1", "r2"}))
	got, ok := f.GetCachedFavorites(ctx)
	assert.True(t, ok)
	assert.Equal(t, []string{"r1", "r2"}, got)

	keys, err := f.Engine().Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "favorites:all", keys[0].Key)

	require.True(t, f.CacheFavorites(ctx, nil))
	got, ok = f.GetCachedFavorites(ctx)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestClearRoutesKeepsOtherNamespaces(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFacade(t, nil)

	require.True(t, f.CacheRoute(ctx, schema.Route{ID: "r1"}))
	require.True(t, f.CacheRoute(ctx, schema.Route{ID: "r2"}))
	require.True(t, f.CacheTimeline(ctx, schema.Timeline{RouteID: "r1"}))

	require.True(t, f.ClearRoutes(ctx))

	_, ok := f.GetCachedRoute(ctx, "r1")
	assert.False(t, ok)
	_, ok = f.GetCachedTimeline(ctx, "r1")
	assert.True(t, ok)
}
