package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/roamly/tripcache/core/syncqueue"
	"github.com/roamly/tripcache/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// runPass executes the steps in order and advances the cursor only if all succeed.
// The new cursor is the pass start time, so remote changes made during the pass
// are pulled again next time.
func (e *Engine) runPass(ctx context.Context) (err error) {
	ctx, span := e.tracer.Start(ctx, "sync.pass")
	defer func() {
		endSpan(span, err)
	}()

	startedAt := e.clock.Now()
	since, err := e.Cursor(ctx)
	if err != nil {
		return err
	}
	if since != nil {
		span.SetAttributes(attribute.String("sync.since", since.Format(time.RFC3339Nano)))
	}

	if err := e.SyncRoutes(ctx, since); err != nil {
		return err
	}
	if err := e.SyncTimelines(ctx, since); err != nil {
		return err
	}
	if err := e.SyncFavorites(ctx, since); err != nil {
		return err
	}
	if err := e.drainQueue(ctx); err != nil {
		return err
	}
	if err := e.setCursor(ctx, startedAt); err != nil {
		return err
	}
	e.log.Info("sync pass finished", "took", e.clock.Since(startedAt))
	return nil
}

// SyncRoutes pulls routes changed since the cursor, then pushes local routes changed
// since the cursor. Routes just taken from the remote are not echoed back.
func (e *Engine) SyncRoutes(ctx context.Context, since *time.Time) (err error) {
	ctx, span := e.tracer.Start(ctx, "sync.routes")
	defer func() { endSpan(span, err) }()

	remote, err := e.remote.GetRoutes(ctx, since)
	if err != nil {
		return fmt.Errorf("pull routes: %w", err)
	}
	pulled := make(map[string]struct{}, len(remote))
	for _, route := range remote {
		applied, err := e.local.ApplyRemoteRoute(ctx, route)
		if err != nil {
			return fmt.Errorf("store route %s: %w", route.ID, err)
		}
		if applied {
			pulled[route.ID] = struct{}{}
		}
	}

	changed, err := e.local.RoutesChangedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("list local routes: %w", err)
	}
	pushed := 0
	for _, route := range changed {
		if _, ok := pulled[route.ID]; ok {
			continue
		}
		if err := e.remote.UpdateRoute(ctx, route.ID, route); err != nil {
			return fmt.Errorf("push route %s: %w", route.ID, err)
		}
		e.markPushed(ctx, schema.RouteEntity, route.ID)
		pushed++
	}

	span.SetAttributes(attribute.Int("sync.pulled", len(pulled)), attribute.Int("sync.pushed", pushed))
	return nil
}

// SyncTimelines does for timelines what SyncRoutes does for routes.
func (e *Engine) SyncTimelines(ctx context.Context, since *time.Time) (err error) {
	ctx, span := e.tracer.Start(ctx, "sync.timelines")
	defer func() { endSpan(span, err) }()

	remote, err := e.remote.GetTimelines(ctx, since)
	if err != nil {
		return fmt.Errorf("pull timelines: %w", err)
	}
	pulled := make(map[string]struct{}, len(remote))
	for routeID, timeline := range remote {
		applied, err := e.local.ApplyRemoteTimeline(ctx, routeID, timeline)
		if err != nil {
			return fmt.Errorf("store timeline %s: %w", routeID, err)
		}
		if applied {
			pulled[routeID] = struct{}{}
		}
	}

	changed, err := e.local.TimelinesChangedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("list local timelines: %w", err)
	}
	pushed := 0
	for _, timeline := range changed {
		if _, ok := pulled[timeline.RouteID]; ok {
			continue
		}
		if err := e.remote.UpdateTimeline(ctx, timeline.RouteID, timeline); err != nil {
			return fmt.Errorf("push timeline %s: %w", timeline.RouteID, err)
		}
		e.markPushed(ctx, schema.TimelineEntity, timeline.RouteID)
		pushed++
	}

	span.SetAttributes(attribute.Int("sync.pulled", len(pulled)), attribute.Int("sync.pushed", pushed))
	return nil
}

// SyncFavorites pulls the remote list. When the local list wins it replaces the remote one.
func (e *Engine) SyncFavorites(ctx context.Context, since *time.Time) (err error) {
	ctx, span := e.tracer.Start(ctx, "sync.favorites")
	defer func() { endSpan(span, err) }()

	remote, err := e.remote.GetFavorites(ctx)
	if err != nil {
		return fmt.Errorf("pull favorites: %w", err)
	}
	applied, err := e.local.ApplyRemoteFavorites(ctx, remote, since)
	if err != nil {
		return fmt.Errorf("store favorites: %w", err)
	}

	span.SetAttributes(attribute.Bool("sync.adopted_remote", applied))
	if applied {
		// Local now equals remote, so a queued push would only echo it.
		e.markPushed(ctx, schema.FavoritesEntity, schema.FavoritesID)
		return nil
	}

	fav, ok, err := e.local.Favorites(ctx)
	if err != nil {
		return fmt.Errorf("read local favorites: %w", err)
	}
	if !ok {
		return nil
	}
	if err := e.remote.UpdateFavorites(ctx, fav.IDs); err != nil {
		return fmt.Errorf("push favorites: %w", err)
	}
	e.markPushed(ctx, schema.FavoritesEntity, schema.FavoritesID)
	span.SetAttributes(attribute.Int("sync.count", len(fav.IDs)))
	return nil
}

// drainQueue pushes queued markers. Individual push failures keep their markers
// queued but do not fail the pass.
func (e *Engine) drainQueue(ctx context.Context) (err error) {
	ctx, span := e.tracer.Start(ctx, "sync.drain")
	defer func() { endSpan(span, err) }()

	result, err := e.queue.Drain(ctx, syncqueue.PusherFunc(e.push))
	span.SetAttributes(
		attribute.Int("sync.pushed", result.Pushed),
		attribute.Int("sync.failed", result.Failed),
		attribute.Int("sync.dropped", result.Dropped),
	)
	if err != nil {
		return fmt.Errorf("drain queue: %w", err)
	}
	return nil
}

// push resolves the current local value of a queued entity and sends it.
func (e *Engine) push(ctx context.Context, ref schema.EntityRef) error {
	switch ref.Type {
	case schema.RouteEntity:
		route, ok, err := e.local.GetRoute(ctx, ref.ID)
		if err != nil {
			return err
		}
		if !ok {
			return syncqueue.ErrNotFound
		}
		return e.remote.UpdateRoute(ctx, ref.ID, route)

	case schema.TimelineEntity:
		timeline, ok, err := e.local.GetTimeline(ctx, ref.ID)
		if err != nil {
			return err
		}
		if !ok {
			return syncqueue.ErrNotFound
		}
		return e.remote.UpdateTimeline(ctx, ref.ID, timeline)

	case schema.FavoritesEntity:
		fav, ok, err := e.local.Favorites(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return syncqueue.ErrNotFound
		}
		return e.remote.UpdateFavorites(ctx, fav.IDs)

	default:
		return fmt.Errorf("%w: %s", syncqueue.ErrUnsupported, ref.Type)
	}
}

// markPushed drops the queue marker of an entity the pass already pushed.
func (e *Engine) markPushed(ctx context.Context, entityType schema.EntityType, id string) {
	marker := schema.EntityRef{Type: entityType, ID: id}.String()
	if err := e.queue.Remove(ctx, marker); err != nil {
		e.log.Warn("failed to clear pushed marker", "marker", marker, "error", err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
