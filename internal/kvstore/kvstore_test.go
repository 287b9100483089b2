package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behavior every PersistentStore must share.
func exerciseStore(t *testing.T, store contract.PersistentStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok, "absent key should miss")

	require.NoError(t, store.Set(ctx, "cache:routes:r1", `{"id":"r1"}`))
	value, ok, err := store.Get(ctx, "cache:routes:r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"r1"}`, value)

	// Overwrite replaces the value
	require.NoError(t, store.Set(ctx, "cache:routes:r1", `{"id":"r1","name":"coast"}`))
	value, _, err = store.Get(ctx, "cache:routes:r1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"r1","name":"coast"}`, value)

	require.NoError(t, store.Remove(ctx, "cache:routes:r1"))
	_, ok, err = store.Get(ctx, "cache:routes:r1")
	require.NoError(t, err)
	assert.False(t, ok, "removed key should miss")

	// Removing an absent key is not an error
	assert.NoError(t, store.Remove(ctx, "never-set"))
}

func TestSQLStore_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kv.db")
	store, err := NewSQLStore(schema.SQLiteBackend, dbPath, Options{})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	exerciseStore(t, store)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "22"))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.True(t, status.Connected)
	assert.Equal(t, 2, status.TotalKeys)
	assert.Positive(t, status.TotalBytes)
	assert.False(t, status.LastWriteTime.IsZero())
}

func TestSQLStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	store, err := NewSQLStore(schema.SQLiteBackend, dbPath, Options{})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "sync:queue", `["route:r1"]`))
	require.NoError(t, store.Close())

	// Reopening runs migrations again as a no-op
	store, err = NewSQLStore(schema.SQLiteBackend, dbPath, Options{})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	value, ok, err := store.Get(ctx, "sync:queue")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["route:r1"]`, value)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(Options{}))
}

func TestMemoryStore_Quota(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Options{CapacityBytes: 10})

	require.NoError(t, store.Set(ctx, "k", "12345"))
	err := store.Set(ctx, "j", "123456789")
	assert.True(t, errors.Is(err, ErrQuotaExceeded))

	// Overwriting the same key only counts the difference
	require.NoError(t, store.Set(ctx, "k", "123456789"))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Remove(ctx, "k"))
	require.NoError(t, store.Set(ctx, "j", "123456789"))
}

func TestMemoryStore_Status(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(Options{Clock: clock, CapacityBytes: 1024})

	require.NoError(t, store.Set(ctx, "a", "1"))
	clock.Advance(time.Hour)
	require.NoError(t, store.Set(ctx, "b", "2"))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalKeys)
	assert.Equal(t, int64(4), status.TotalBytes)
	assert.Equal(t, int64(1024), status.CapacityBytes)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.OldestWriteTime)
	assert.Equal(t, time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), status.LastWriteTime)
}

func TestNoneStore(t *testing.T) {
	ctx := context.Background()
	store := NoneStore{}
	require.NoError(t, store.Set(ctx, "k", "v"))
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(schema.MemoryBackend, "", Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore(schema.NoneBackend, "", Options{})
	require.NoError(t, err)
	assert.IsType(t, NoneStore{}, store)

	_, err = NewStore("redis", "", Options{})
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	_, err := Migrate(schema.NoneBackend, "", -1)
	assert.Error(t, err)

	dbPath := filepath.Join(t.TempDir(), "migrate.db")

	result, err := Migrate(schema.SQLiteBackend, dbPath, -1)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, uint(2), result.ToVersion)

	// Already at the latest version
	result, err = Migrate(schema.SQLiteBackend, dbPath, -1)
	require.NoError(t, err)
	assert.False(t, result.Changed)

	result, err = Migrate(schema.SQLiteBackend, dbPath, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(2), result.FromVersion)
	assert.Equal(t, uint(1), result.ToVersion)

	result, err = Migrate(schema.SQLiteBackend, dbPath, 0)
	require.NoError(t, err)
	assert.Equal(t, uint(0), result.ToVersion)
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`kv_store`", quoteTableName("kv_store", schema.MySQLBackend))
	assert.Equal(t, `"kv_store"`, quoteTableName("kv_store", schema.PostgreSQLBackend))
	assert.Equal(t, `"kv_store"`, quoteTableName("kv_store", schema.SQLiteBackend))
}
