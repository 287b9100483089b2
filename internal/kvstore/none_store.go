package kvstore

import (
	"context"

	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
)

// NoneStore is a no-op store for disabled persistence. Every read misses.
type NoneStore struct{}

var _ contract.PersistentStore = NoneStore{} // Compile-time check

// Get implements the PersistentStore interface.
func (NoneStore) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// Set implements the PersistentStore interface.
func (NoneStore) Set(context.Context, string, string) error { return nil }

// Remove implements the PersistentStore interface.
func (NoneStore) Remove(context.Context, string) error { return nil }

// GetStatus implements the PersistentStore interface.
func (NoneStore) GetStatus() (schema.StoreStatus, error) {
	return schema.StoreStatus{Backend: string(schema.NoneBackend)}, nil
}

// Close implements the PersistentStore interface.
func (NoneStore) Close() error { return nil }
