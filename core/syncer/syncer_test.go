package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/roamly/tripcache/core/cache"
	"github.com/roamly/tripcache/core/domaincache"
	"github.com/roamly/tripcache/core/local"
	"github.com/roamly/tripcache/core/syncqueue"
	"github.com/roamly/tripcache/internal/contract/mocks"
	"github.com/roamly/tripcache/internal/kvstore"
	"github.com/roamly/tripcache/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testInterval = time.Minute

var start = time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)

type harness struct {
	engine *Engine
	remote *mocks.MockRemoteClient
	repo   *local.Repository
	queue  *syncqueue.Queue
	cache  *domaincache.Facade
	store  *kvstore.MemoryStore
	clock  *clockwork.FakeClock
}

func newHarness(t *testing.T) harness {
	t.Helper()
	return newHarnessWith(t, Options{Interval: testInterval, Debounce: time.Second})
}

func newHarnessWith(t *testing.T, opts Options) harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	clock := clockwork.NewFakeClockAt(start)
	store := kvstore.NewMemoryStore(kvstore.Options{Clock: clock})

	cacheOpts := cache.DefaultOptions()
	cacheOpts.Clock = clock
	engine, err := cache.Open(context.Background(), store, cacheOpts)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	facade := domaincache.New(engine, nil)
	queue := syncqueue.New(store, 2, nil)
	repo := local.New(store, facade, queue, clock, nil)
	remote := mocks.NewMockRemoteClient(ctrl)

	opts.Clock = clock
	e := New(remote, repo, queue, store, opts)
	// Registered after the controller so the engine stops before mocks are checked.
	t.Cleanup(e.Stop)

	return harness{engine: e, remote: remote, repo: repo, queue: queue, cache: facade, store: store, clock: clock}
}

// sinceMatcher matches a non-nil *time.Time at the given instant.
type sinceMatcher time.Time

func sinceEq(ts time.Time) gomock.Matcher { return sinceMatcher(ts) }

func (m sinceMatcher) Matches(x any) bool {
	since, ok := x.(*time.Time)
	return ok && since != nil && since.Equal(time.Time(m))
}

func (m sinceMatcher) String() string { return "since " + time.Time(m).String() }

// expectQuietPass expects one pass where the remote has nothing new.
func (h harness) expectQuietPass() {
	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Any()).Return(nil, nil)
	h.remote.EXPECT().GetTimelines(gomock.Any(), gomock.Any()).Return(nil, nil)
	h.remote.EXPECT().GetFavorites(gomock.Any()).Return(nil, nil)
}

func TestSyncRoutesWithoutCursor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	remoteRoutes := []schema.Route{
		{ID: "route1", Name: "Coast", LastUpdated: start.Add(-time.Hour)},
		{ID: "route2", Name: "Alps", LastUpdated: start.Add(-2 * time.Hour)},
	}
	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Nil()).Return(remoteRoutes, nil)

	require.NoError(t, h.engine.SyncRoutes(ctx, nil))

	for _, want := range remoteRoutes {
		got, ok, err := h.repo.GetRoute(ctx, want.ID)
		require.NoError(t, err)
		assert.True(t, ok, want.ID)
		assert.Equal(t, want, got)

		cached, ok := h.cache.GetCachedRoute(ctx, want.ID)
		assert.True(t, ok, "pulled routes refresh the cache")
		assert.Equal(t, want.Name, cached.Name)
	}
}

func TestSuccessfulPassAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.expectQuietPass()

	ran, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	cursor, err := h.engine.Cursor(ctx)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.True(t, cursor.Equal(start))

	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.IdleState, status.State)
	assert.Equal(t, int64(1), status.Passes)
	assert.False(t, status.RetryScheduled)
	assert.Empty(t, status.LastError)
}

func TestSecondPassUsesCursor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.expectQuietPass()
	_, err := h.engine.Sync(ctx)
	require.NoError(t, err)

	h.clock.Advance(testInterval)
	h.remote.EXPECT().GetRoutes(gomock.Any(), sinceEq(start)).Return(nil, nil)
	h.remote.EXPECT().GetTimelines(gomock.Any(), sinceEq(start)).Return(nil, nil)
	h.remote.EXPECT().GetFavorites(gomock.Any()).Return(nil, nil)

	_, err = h.engine.Sync(ctx)
	require.NoError(t, err)
}

func TestPullFailureBacksOff(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Nil()).Return(nil, errors.New("network unreachable"))

	ran, err := h.engine.Sync(ctx)
	assert.True(t, ran)
	require.Error(t, err)

	cursor, err := h.engine.Cursor(ctx)
	require.NoError(t, err)
	assert.Nil(t, cursor, "cursor must not move after a failed pass")

	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.BackoffWaitState, status.State)
	assert.True(t, status.RetryScheduled)
	require.NotNil(t, status.NextRetry)
	assert.Equal(t, start.Add(2*testInterval), *status.NextRetry)
	assert.Equal(t, int64(1), status.Failures)
	assert.Contains(t, status.LastError, "pull routes")

	// Nothing fires before the backoff delay.
	h.clock.Advance(2*testInterval - time.Second)
	assert.True(t, h.engine.RetryScheduled())

	// Exactly one retry pass runs once the delay elapses.
	h.expectQuietPass()
	h.clock.Advance(time.Second)

	assert.Eventually(t, func() bool {
		status, err := h.engine.Status(ctx)
		return err == nil && status.Passes == 1 && status.State == schema.IdleState
	}, time.Second, 5*time.Millisecond)
	assert.False(t, h.engine.RetryScheduled())

	cursor, err = h.engine.Cursor(ctx)
	require.NoError(t, err)
	require.NotNil(t, cursor)
}

func TestRepeatedFailuresKeepOneRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Any()).Return(nil, errors.New("offline")).Times(2)
	_, err := h.engine.Sync(ctx)
	require.Error(t, err)
	_, err = h.engine.Sync(ctx)
	require.Error(t, err)

	// Only one retry fires even though two passes failed.
	h.expectQuietPass()
	h.clock.Advance(2 * testInterval)
	assert.Eventually(t, func() bool {
		status, err := h.engine.Status(ctx)
		return err == nil && status.Passes == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSuccessCancelsPendingRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Any()).Return(nil, errors.New("offline"))
	_, err := h.engine.Sync(ctx)
	require.Error(t, err)
	require.True(t, h.engine.RetryScheduled())

	h.expectQuietPass()
	_, err = h.engine.Sync(ctx)
	require.NoError(t, err)

	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.IdleState, status.State)
	assert.False(t, status.RetryScheduled)
	assert.Nil(t, status.NextRetry)

	// The old retry must not run another pass; gomock fails on an extra GetRoutes.
	h.clock.Advance(2 * testInterval)
	time.Sleep(20 * time.Millisecond)
	status, err = h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Passes)
}

func TestConstantRetryIgnoresMaxBackoff(t *testing.T) {
	ctx := context.Background()
	interval := 45 * time.Minute
	h := newHarnessWith(t, Options{
		Interval:   interval,
		Debounce:   time.Second,
		BackOff:    NewBackOff(schema.ConstantBackoff, interval, time.Hour),
		MaxBackoff: time.Hour,
	})

	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Any()).Return(nil, errors.New("offline"))
	_, err := h.engine.Sync(ctx)
	require.Error(t, err)

	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.NextRetry)
	assert.Equal(t, start.Add(2*interval), *status.NextRetry)
}

func TestSyncIsSingleFlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *time.Time) ([]schema.Route, error) {
			close(entered)
			<-release
			return nil, nil
		}).Times(1)
	h.remote.EXPECT().GetTimelines(gomock.Any(), gomock.Any()).Return(nil, nil).Times(1)
	h.remote.EXPECT().GetFavorites(gomock.Any()).Return(nil, nil).Times(1)

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.Sync(ctx)
		done <- err
	}()
	<-entered

	assert.True(t, h.engine.IsSyncing())
	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.SyncingState, status.State)

	ran, err := h.engine.Sync(ctx)
	assert.False(t, ran, "re-entrant sync is a no-op")
	assert.NoError(t, err)
	ran, err = h.engine.ForceSync(ctx)
	assert.False(t, ran, "forced sync shares the guard")
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, h.engine.IsSyncing())
}

func TestPullKeepsNewerLocalAndPushesIt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	edited, err := h.repo.SaveRoute(ctx, schema.Route{ID: "r1", Name: "edited offline"})
	require.NoError(t, err)

	stale := schema.Route{ID: "r1", Name: "server copy", LastUpdated: start.Add(-time.Hour)}
	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Nil()).Return([]schema.Route{stale}, nil)
	h.remote.EXPECT().UpdateRoute(gomock.Any(), "r1", edited).Return(nil).Times(1)
	h.remote.EXPECT().GetTimelines(gomock.Any(), gomock.Any()).Return(nil, nil)
	h.remote.EXPECT().GetFavorites(gomock.Any()).Return(nil, nil)

	_, err = h.engine.Sync(ctx)
	require.NoError(t, err)

	got, _, err := h.repo.GetRoute(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "edited offline", got.Name)

	// The pass pushed the route directly, so the drain had nothing left to send.
	n, err := h.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPulledRoutesAreNotEchoed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	fresh := schema.Route{ID: "r2", Name: "from server", LastUpdated: start}
	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Nil()).Return([]schema.Route{fresh}, nil)
	h.remote.EXPECT().UpdateRoute(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	h.remote.EXPECT().GetTimelines(gomock.Any(), gomock.Any()).Return(nil, nil)
	h.remote.EXPECT().GetFavorites(gomock.Any()).Return(nil, nil)

	_, err := h.engine.Sync(ctx)
	require.NoError(t, err)
}

func TestTimelinesAndFavorites(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.repo.SetFavorites(ctx, []string{"r1", "r2"})
	require.NoError(t, err)

	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Any()).Return(nil, nil)
	h.remote.EXPECT().GetTimelines(gomock.Any(), gomock.Nil()).Return(map[string]schema.Timeline{
		"r1": {Days: []schema.TimelineDay{{Day: 1, Activities: []schema.Activity{{Title: "Hike"}}}}, LastUpdated: start},
	}, nil)
	h.remote.EXPECT().GetFavorites(gomock.Any()).Return([]string{"r9"}, nil)
	// Never synced and edited offline: the local list replaces the remote one.
	h.remote.EXPECT().UpdateFavorites(gomock.Any(), []string{"r1", "r2"}).Return(nil).Times(1)

	_, err = h.engine.Sync(ctx)
	require.NoError(t, err)

	timeline, ok, err := h.repo.GetTimeline(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r1", timeline.RouteID)
	assert.Equal(t, "Hike", timeline.Days[0].Activities[0].Title)

	n, err := h.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDrainPushesQueuedAndDropsUnsupported(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	saved, err := h.repo.SaveRoute(ctx, schema.Route{ID: "r1"})
	require.NoError(t, err)
	require.NoError(t, h.queue.Enqueue(ctx, schema.SettingsEntity, "current"))
	require.NoError(t, h.queue.Enqueue(ctx, schema.TimelineEntity, "missing"))

	// A cursor past the edit keeps r1 out of the changed-since push,
	// so only the queue can deliver it.
	cursor := start.Add(time.Minute)
	require.NoError(t, h.engine.setCursor(ctx, cursor))
	h.clock.Advance(2 * time.Minute)

	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Any()).Return(nil, nil)
	h.remote.EXPECT().GetTimelines(gomock.Any(), gomock.Any()).Return(nil, nil)
	h.remote.EXPECT().GetFavorites(gomock.Any()).Return(nil, nil)
	h.remote.EXPECT().UpdateRoute(gomock.Any(), "r1", saved).Return(nil).Times(1)

	_, err = h.engine.Sync(ctx)
	require.NoError(t, err)

	n, err := h.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "pushed and unsupported markers both leave the queue")
}

func TestFailedQueuedPushStaysQueued(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.repo.SaveRoute(ctx, schema.Route{ID: "r1"})
	require.NoError(t, err)
	require.NoError(t, h.engine.setCursor(ctx, start.Add(time.Minute)))

	h.expectQuietPass()
	h.remote.EXPECT().UpdateRoute(gomock.Any(), "r1", gomock.Any()).Return(errors.New("503"))

	ran, err := h.engine.Sync(ctx)
	require.NoError(t, err, "a failed queued push does not fail the pass")
	assert.True(t, ran)

	pending, err := h.queue.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"route:r1"}, pending)
}

func TestRequestSyncIsDebounced(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.engine.RequestSync()
	h.engine.RequestSync()
	h.engine.RequestSync()

	h.expectQuietPass()
	h.clock.Advance(time.Second)

	assert.Eventually(t, func() bool {
		status, err := h.engine.Status(ctx)
		return err == nil && status.Passes == 1
	}, time.Second, 5*time.Millisecond)
}

func TestForceSyncCancelsIntentAndRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.remote.EXPECT().GetRoutes(gomock.Any(), gomock.Any()).Return(nil, errors.New("offline"))
	_, err := h.engine.Sync(ctx)
	require.Error(t, err)
	require.True(t, h.engine.RetryScheduled())

	h.engine.RequestSync()

	h.expectQuietPass()
	ran, err := h.engine.ForceSync(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, h.engine.RetryScheduled())

	// Neither the old intent nor the old retry runs another pass.
	h.clock.Advance(10 * testInterval)
	time.Sleep(20 * time.Millisecond)

	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Passes)
	assert.Equal(t, schema.IdleState, status.State)
}

func TestStartRunsOnInterval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.engine.Start(ctx)
	h.expectQuietPass()
	h.clock.Advance(testInterval)

	assert.Eventually(t, func() bool {
		status, err := h.engine.Status(ctx)
		return err == nil && status.Passes == 1
	}, time.Second, 5*time.Millisecond)

	h.engine.Stop()
	// No pass runs after Stop.
	h.clock.Advance(testInterval)
	time.Sleep(20 * time.Millisecond)
	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Passes)
}

func TestStartAgainAfterContextEnds(t *testing.T) {
	h := newHarness(t)

	loopCtx, cancel := context.WithCancel(context.Background())
	h.engine.Start(loopCtx)
	assert.True(t, h.engine.Looping())
	cancel()
	assert.Eventually(t, func() bool { return !h.engine.Looping() }, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	h.engine.Start(ctx)
	assert.True(t, h.engine.Looping())
	h.expectQuietPass()
	h.clock.Advance(testInterval)
	assert.Eventually(t, func() bool {
		status, err := h.engine.Status(ctx)
		return err == nil && status.Passes == 1
	}, time.Second, 5*time.Millisecond)

	h.engine.Stop()
	assert.False(t, h.engine.Looping())
	h.engine.Start(ctx)
	assert.False(t, h.engine.Looping(), "a stopped engine stays stopped")
}

func TestResetCursor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.engine.setCursor(ctx, start))
	require.NoError(t, h.engine.ResetCursor(ctx))
	cursor, err := h.engine.Cursor(ctx)
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestUnreadableCursorMeansFullSync(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.store.Set(ctx, CursorKey, "yesterday"))
	cursor, err := h.engine.Cursor(ctx)
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestNewBackOff(t *testing.T) {
	constant := NewBackOff(schema.ConstantBackoff, time.Minute, time.Hour)
	assert.Equal(t, 2*time.Minute, constant.NextBackOff())
	assert.Equal(t, 2*time.Minute, constant.NextBackOff())

	exp := NewBackOff(schema.ExponentialBackoff, time.Minute, 5*time.Minute)
	first := exp.NextBackOff()
	assert.GreaterOrEqual(t, first, time.Minute)
	assert.LessOrEqual(t, first, 3*time.Minute)
	for range 10 {
		assert.LessOrEqual(t, exp.NextBackOff(), 5*time.Minute+5*time.Minute/2)
	}
}
