// Package kvstore provides the persistent key-value stores behind the cache and sync layers.
package kvstore

import (
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
)

// ErrQuotaExceeded is returned when a write would exceed the store capacity.
var ErrQuotaExceeded = errors.New("store quota exceeded")

// Options configures a store.
type Options struct {
	// CapacityBytes bounds the memory store. Zero means unbounded.
	CapacityBytes int64

	// Clock stamps write times. Defaults to the real clock.
	Clock clockwork.Clock
}

func (o Options) clock() clockwork.Clock {
	if o.Clock == nil {
		return clockwork.NewRealClock()
	}
	return o.Clock
}

// NewStore initializes and returns a PersistentStore based on the backend type.
func NewStore(backend schema.DatabaseBackend, connStr string, opts Options) (contract.PersistentStore, error) {
	switch backend {
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
		return NewSQLStore(backend, connStr, opts)
	case schema.MemoryBackend:
		return NewMemoryStore(opts), nil
	case schema.NoneBackend:
		return NoneStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s. Must be sqlite, mysql, postgresql, memory, or none", backend)
	}
}
