//go:build basic

package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/roamly/tripcache/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService is a minimal trip service holding one route.
type fakeService struct {
	mu        sync.Mutex
	favorites []string
}

func (s *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /routes", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "r1", "name": "Coastal loop", "lastUpdated": "2026-05-01T08:00:00Z"},
		})
	})
	mux.HandleFunc("GET /timelines", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /favorites", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"ids": s.favorites})
	})
	mux.HandleFunc("PUT /favorites", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.favorites = body.IDs
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// TestSyncRunWithSQLite runs one pass against a local service and checks that
// the pulled route lands in the cache and the cursor persists across processes.
func TestSyncRunWithSQLite(t *testing.T) {
	srv := httptest.NewServer((&fakeService{favorites: []string{"r1"}}).handler())
	defer srv.Close()

	env := map[string]string{
		"TRIPCACHE_STORE_BACKEND":   "sqlite",
		"TRIPCACHE_STORE_CONNECT":   filepath.Join(t.TempDir(), "tripcache.db"),
		"TRIPCACHE_REMOTE_BASE_URL": srv.URL,
	}

	_, err := runCommand(t, env, "store", "migrate")
	require.NoError(t, err)

	out, err := runCommand(t, env, "sync", "run", "--output", "json")
	require.NoError(t, err)
	var status schema.SyncStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, schema.IdleState, status.State)
	require.NotNil(t, status.LastSync)
	assert.Zero(t, status.Pending)

	out, err = runCommand(t, env, "cache", "keys", "--prefix", "routes:", "--output", "json")
	require.NoError(t, err)
	var keys []schema.CacheKeyInfo
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	require.Len(t, keys, 1)
	assert.Equal(t, "routes:r1", keys[0].Key)

	out, err = runCommand(t, env, "sync", "status", "--output", "json")
	require.NoError(t, err)
	var again schema.SyncStatus
	require.NoError(t, json.Unmarshal([]byte(out), &again))
	require.NotNil(t, again.LastSync)
	assert.True(t, status.LastSync.Equal(*again.LastSync))
}

// TestSyncRunFailureKeepsCursor checks that a failing service leaves the cursor unset.
func TestSyncRunFailureKeepsCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	env := map[string]string{
		"TRIPCACHE_STORE_BACKEND":   "sqlite",
		"TRIPCACHE_STORE_CONNECT":   filepath.Join(t.TempDir(), "tripcache.db"),
		"TRIPCACHE_REMOTE_BASE_URL": srv.URL,
	}

	out, err := runCommand(t, env, "sync", "run", "--output", "json")
	require.Error(t, err)
	var status schema.SyncStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, schema.BackoffWaitState, status.State)
	assert.Nil(t, status.LastSync)
	assert.NotEmpty(t, status.LastError)
}

// TestCommandsWithoutRemote checks the offline commands.
func TestCommandsWithoutRemote(t *testing.T) {
	env := map[string]string{
		"TRIPCACHE_STORE_BACKEND": "sqlite",
		"TRIPCACHE_STORE_CONNECT": filepath.Join(t.TempDir(), "tripcache.db"),
	}

	for _, args := range [][]string{
		{"version"},
		{"cache", "status"},
		{"cache", "clean"},
		{"cache", "clear"},
		{"queue", "list"},
		{"sync", "status"},
		{"store", "status"},
	} {
		_, err := runCommand(t, env, args...)
		assert.NoError(t, err, "tripcache %v", args)
	}

	_, err := runCommand(t, env, "sync", "run")
	assert.Error(t, err)
}
