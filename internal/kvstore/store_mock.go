package kvstore

import (
	"context"

	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of PersistentStore for testing.
type MockStore struct {
	mock.Mock
}

var _ contract.PersistentStore = &MockStore{} // Compile-time check

// Get implements the PersistentStore interface.
func (m *MockStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

// Set implements the PersistentStore interface.
func (m *MockStore) Set(ctx context.Context, key string, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// Remove implements the PersistentStore interface.
func (m *MockStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// GetStatus implements the PersistentStore interface.
func (m *MockStore) GetStatus() (schema.StoreStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Close implements the PersistentStore interface.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
