package cache

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// metaEntry is one row of the metadata index.
type metaEntry struct {
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	SizeBytes  int64     `json:"sizeBytes"`
	Compressed bool      `json:"compressed"`
	Checksum   string    `json:"checksum"`
}

func (m metaEntry) expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

// metaIndex maps logical keys to their metadata. It is persisted as one value.
type metaIndex map[string]metaEntry

func (idx metaIndex) totalSize(exclude string) int64 {
	var total int64
	for k, m := range idx {
		if k != exclude {
			total += m.SizeBytes
		}
	}
	return total
}

// oldestFirst returns the keys ordered by createdAt, ties broken by key.
func (idx metaIndex) oldestFirst(exclude string) []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		if k != exclude {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := idx[keys[i]], idx[keys[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return keys[i] < keys[j]
	})
	return keys
}

// loadMeta reads the index. A corrupt index is logged and replaced with an empty one.
func (e *Engine) loadMeta(ctx context.Context) (metaIndex, error) {
	raw, ok, err := e.store.Get(ctx, MetaKey)
	if err != nil {
		return nil, err
	}
	idx := metaIndex{}
	if !ok || raw == "" {
		return idx, nil
	}
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		e.log.Warn("cache metadata index is corrupt, starting empty", "error", err)
		return metaIndex{}, nil
	}
	return idx, nil
}

func (e *Engine) saveMeta(ctx context.Context, idx metaIndex) error {
	raw, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return e.store.Set(ctx, MetaKey, string(raw))
}
