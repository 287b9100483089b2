package schema

import "time"

// StoreStatus represents the status of the persistent key-value store.
type StoreStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalKeys       int       `json:"total_keys"`
	TotalBytes      int64     `json:"total_bytes"`
	LastWriteTime   time.Time `json:"last_write_time"`
	OldestWriteTime time.Time `json:"oldest_write_time"`
	CapacityBytes   int64     `json:"capacity_bytes,omitempty"`
}

// CacheStats summarizes the cache metadata index.
type CacheStats struct {
	TotalItems      int     `json:"total_items"`
	ExpiredItems    int     `json:"expired_items"`
	ActiveItems     int     `json:"active_items"`
	TotalSizeBytes  int64   `json:"total_size_bytes"`
	MaxSizeBytes    int64   `json:"max_size_bytes"`
	UsagePercentage float64 `json:"usage_percentage"`
}

// CacheKeyInfo is one row of the cache metadata index.
type CacheKeyInfo struct {
	Key        string    `json:"key"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	SizeBytes  int64     `json:"size_bytes"`
	Compressed bool      `json:"compressed"`
	Expired    bool      `json:"expired"`
}

// SyncStatus reports the state of the sync engine.
type SyncStatus struct {
	State          SyncState  `json:"state"`
	LastSync       *time.Time `json:"last_sync,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	Pending        int        `json:"pending"`
	RetryScheduled bool       `json:"retry_scheduled"`
	NextRetry      *time.Time `json:"next_retry,omitempty"`
	Passes         int64      `json:"passes"`
	Failures       int64      `json:"failures"`
}

// DrainResult reports the outcome of one queue drain.
type DrainResult struct {
	Pushed  int `json:"pushed"`
	Failed  int `json:"failed"`
	Dropped int `json:"dropped"`
}
