package schema

// Custom string types for type safety.
type (
	// DatabaseBackend represents the persistence backend for the key-value store.
	DatabaseBackend string

	// EntityType represents a syncable entity kind.
	EntityType string

	// SyncState represents the state of the sync engine.
	SyncState string

	// BackoffPolicy represents how the retry delay is computed after a failed sync pass.
	BackoffPolicy string

	// OutputMode represents the format of the output.
	OutputMode string
)

// All store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	MemoryBackend     DatabaseBackend = "memory"
	NoneBackend       DatabaseBackend = "none"
)

// All entity types known to the cache and sync layers.
const (
	RouteEntity     EntityType = "route"
	TimelineEntity  EntityType = "timeline"
	FavoritesEntity EntityType = "favorites"
	SettingsEntity  EntityType = "settings"
)

// All sync engine states.
const (
	IdleState        SyncState = "idle"
	SyncingState     SyncState = "syncing"
	BackoffWaitState SyncState = "backoff_wait"
)

// All backoff policies supported.
const (
	ConstantBackoff    BackoffPolicy = "constant" // default
	ExponentialBackoff BackoffPolicy = "exponential"
)

// All output modes supported.
const (
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// ValidStoreBackends lists all valid store backends.
var ValidStoreBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	MemoryBackend:     {},
	NoneBackend:       {},
}

// ValidEntityTypes lists all valid entity types.
var ValidEntityTypes = map[EntityType]struct{}{
	RouteEntity:     {},
	TimelineEntity:  {},
	FavoritesEntity: {},
	SettingsEntity:  {},
}

// ValidBackoffPolicies lists all valid backoff policies.
var ValidBackoffPolicies = map[BackoffPolicy]struct{}{
	ConstantBackoff:    {},
	ExponentialBackoff: {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut: {},
	JSONOut: {},
}

// FavoritesID is the fixed entity id used for the single favorites list.
const FavoritesID = "all"
