// Package syncqueue persists the set of entities with local changes awaiting push.
package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/internal/logger"
	"github.com/roamly/tripcache/schema"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// QueueKey is the store key of the pending set.
const QueueKey = "sync:queue"

// Pushers return these for markers that can never be pushed. Such markers are dropped.
var (
	ErrUnsupported = errors.New("entity type cannot be pushed")
	ErrNotFound    = errors.New("local entity not found")
)

// Pusher sends the current local value of an entity to the remote service.
type Pusher interface {
	Push(ctx context.Context, ref schema.EntityRef) error
}

// PusherFunc adapts a function to a Pusher.
type PusherFunc func(ctx context.Context, ref schema.EntityRef) error

// Push implements Pusher.
func (f PusherFunc) Push(ctx context.Context, ref schema.EntityRef) error { return f(ctx, ref) }

// Queue is a persisted set of "type:id" markers.
// The set is read, changed and written as a unit under mu.
type Queue struct {
	mu          sync.Mutex
	store       contract.PersistentStore
	concurrency int
	flight      singleflight.Group
	log         *slog.Logger

	// inflight holds markers being pushed. The value turns true when the
	// marker is enqueued again during the push, so it is kept afterwards.
	inflight map[string]bool
}

// New returns a queue over store. concurrency bounds parallel pushes during Drain.
func New(store contract.PersistentStore, concurrency int, log *slog.Logger) *Queue {
	if concurrency <= 0 {
		concurrency = contract.DefaultSyncConcurrency
	}
	return &Queue{
		store:       store,
		concurrency: concurrency,
		log:         logger.OrDiscard(log).With("component", "syncqueue"),
		inflight:    make(map[string]bool),
	}
}

// Enqueue adds a marker. Adding a marker already queued is a no-op.
func (q *Queue) Enqueue(ctx context.Context, entityType schema.EntityType, entityID string) error {
	if entityType == "" || entityID == "" {
		return fmt.Errorf("invalid queue entry %q:%q", entityType, entityID)
	}
	marker := schema.EntityRef{Type: entityType, ID: entityID}.String()

	q.mu.Lock()
	defer q.mu.Unlock()

	set, err := q.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := q.inflight[marker]; ok {
		q.inflight[marker] = true
	}
	if _, ok := set[marker]; ok {
		return nil
	}
	set[marker] = struct{}{}
	return q.save(ctx, set)
}

// Remove deletes a marker if present.
func (q *Queue) Remove(ctx context.Context, marker string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	set, err := q.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := set[marker]; !ok {
		return nil
	}
	delete(set, marker)
	return q.save(ctx, set)
}

// Clear drops every marker.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.save(ctx, map[string]struct{}{})
}

// Pending returns the queued markers in sorted order.
func (q *Queue) Pending(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	set, err := q.load(ctx)
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return sortedMarkers(set), nil
}

// Len returns the number of queued markers.
func (q *Queue) Len(ctx context.Context) (int, error) {
	pending, err := q.Pending(ctx)
	return len(pending), err
}

// Drain pushes every queued marker. Successful markers are removed; failed ones stay
// queued for the next drain. Markers the pusher reports as unsupported or missing are
// dropped. Different markers are pushed concurrently, but one marker is never pushed
// twice at the same time, even across overlapping drains.
func (q *Queue) Drain(ctx context.Context, pusher Pusher) (schema.DrainResult, error) {
	var result schema.DrainResult

	markers, err := q.Pending(ctx)
	if err != nil {
		return result, err
	}
	if len(markers) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.concurrency)

	for _, marker := range markers {
		g.Go(func() error {
			_, err, _ := q.flight.Do(marker, func() (any, error) {
				return nil, q.pushOne(gctx, pusher, marker)
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Pushed++
			case errors.Is(err, ErrUnsupported), errors.Is(err, ErrNotFound):
				result.Dropped++
			default:
				result.Failed++
			}
			// A failed push is not a drain failure; the marker stays queued.
			return nil
		})
	}
	_ = g.Wait()

	if result.Failed > 0 {
		q.log.Warn("some queued changes failed to push", "failed", result.Failed, "pushed", result.Pushed)
	}
	return result, ctx.Err()
}

// pushOne pushes a marker and removes it when the push succeeds or can never succeed.
func (q *Queue) pushOne(ctx context.Context, pusher Pusher, marker string) error {
	q.mu.Lock()
	q.inflight[marker] = false
	q.mu.Unlock()

	ref, err := schema.ParseEntityRef(marker)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrUnsupported, err)
	} else {
		err = pusher.Push(ctx, ref)
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrUnsupported), errors.Is(err, ErrNotFound):
		q.log.Warn("dropping queued change that cannot be pushed", "marker", marker, "error", err)
	default:
		q.log.Debug("push failed, keeping queued", "marker", marker, "error", err)
		q.mu.Lock()
		delete(q.inflight, marker)
		q.mu.Unlock()
		return err
	}

	if rmErr := q.settle(ctx, marker); rmErr != nil {
		q.log.Warn("failed to remove pushed marker", "marker", marker, "error", rmErr)
	}
	return err
}

// settle removes a pushed marker unless it was enqueued again while the push ran.
func (q *Queue) settle(ctx context.Context, marker string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	requeued := q.inflight[marker]
	delete(q.inflight, marker)
	if requeued {
		return nil
	}

	set, err := q.load(ctx)
	if err != nil {
		return err
	}
	delete(set, marker)
	return q.save(ctx, set)
}

func (q *Queue) load(ctx context.Context) (map[string]struct{}, error) {
	raw, ok, err := q.store.Get(ctx, QueueKey)
	if err != nil {
		return nil, fmt.Errorf("read sync queue: %w", err)
	}
	set := map[string]struct{}{}
	if !ok || raw == "" {
		return set, nil
	}
	var markers []string
	if err := json.Unmarshal([]byte(raw), &markers); err != nil {
		q.log.Warn("sync queue is corrupt, starting empty", "error", err)
		return set, nil
	}
	for _, m := range markers {
		set[m] = struct{}{}
	}
	return set, nil
}

func (q *Queue) save(ctx context.Context, set map[string]struct{}) error {
	raw, err := json.Marshal(sortedMarkers(set))
	if err != nil {
		return err
	}
	if err := q.store.Set(ctx, QueueKey, string(raw)); err != nil {
		return fmt.Errorf("write sync queue: %w", err)
	}
	return nil
}

func sortedMarkers(set map[string]struct{}) []string {
	markers := make([]string, 0, len(set))
	for m := range set {
		markers = append(markers, m)
	}
	sort.Strings(markers)
	return markers
}
