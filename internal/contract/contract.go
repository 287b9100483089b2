// Package contract provides interfaces and shared utilities for the internal architecture of tripcache.
package contract

import (
	"context"
	"time"

	"github.com/roamly/tripcache/schema"
)

// PersistentStore defines the key-value persistence used by the cache and sync layers.
// This allows the storage backend to be swapped and mocked for testing.
type PersistentStore interface {
	// Get returns the value for key. The boolean is false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key string, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// GetStatus returns status information about the store.
	GetStatus() (schema.StoreStatus, error)

	// Close closes the underlying connection.
	Close() error
}

// RemoteClient defines the operations the sync engine needs from the backend service.
// Implementations own their timeouts; failures are ordinary errors.
//
//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_contract.go -package=mocks . RemoteClient
type RemoteClient interface {
	// GetRoutes returns routes changed since the given time. A nil since means all routes.
	GetRoutes(ctx context.Context, since *time.Time) ([]schema.Route, error)

	// UpdateRoute pushes a local route.
	UpdateRoute(ctx context.Context, id string, route schema.Route) error

	// GetTimelines returns timelines changed since the given time, keyed by route id.
	GetTimelines(ctx context.Context, since *time.Time) (map[string]schema.Timeline, error)

	// UpdateTimeline pushes a local timeline.
	UpdateTimeline(ctx context.Context, id string, timeline schema.Timeline) error

	// GetFavorites returns the remote favorites list.
	GetFavorites(ctx context.Context) ([]string, error)

	// UpdateFavorites replaces the remote favorites list.
	UpdateFavorites(ctx context.Context, ids []string) error
}
