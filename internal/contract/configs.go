package contract

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roamly/tripcache/schema"
)

// Default values for configuration.
const (
	DefaultMaxCacheSize    int64 = 50 * 1024 * 1024
	DefaultTTL                   = 24 * time.Hour
	DefaultSyncInterval          = 5 * time.Minute
	DefaultSyncDebounce          = 2 * time.Second
	DefaultMaxBackoff            = time.Hour
	DefaultSyncConcurrency       = 4
	DefaultRemoteTimeout         = 15 * time.Second
	MaxSyncConcurrency           = 64
)

// TTLRawInput holds per-namespace TTL overrides from the YAML config file.
// Values are durations ("36h") or plain seconds ("86400").
type TTLRawInput struct {
	Routes    *string `mapstructure:"routes"`
	Timelines *string `mapstructure:"timelines"`
	Favorites *string `mapstructure:"favorites"`
	Settings  *string `mapstructure:"settings"`
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	StoreBackend string `mapstructure:"store-backend"`
	StoreConnect string `mapstructure:"store-connect"`
	Output       string `mapstructure:"output"`
	OutputFile   string `mapstructure:"output-file"`
	Color        string `mapstructure:"color"`
	LogJSON      bool   `mapstructure:"log-json"`
	LogLevel     string `mapstructure:"log-level"`

	// --- Cache settings ---
	CacheMaxSize     int64  `mapstructure:"cache-max-size"`
	CacheDefaultTTL  string `mapstructure:"cache-default-ttl"`
	CacheCompression bool   `mapstructure:"cache-compression"`
	CacheCleanOnInit bool   `mapstructure:"cache-clean-on-init"`

	// --- Sync settings ---
	SyncInterval    string `mapstructure:"sync-interval"`
	SyncDebounce    string `mapstructure:"sync-debounce"`
	SyncBackoff     string `mapstructure:"sync-backoff"`
	SyncMaxBackoff  string `mapstructure:"sync-max-backoff"`
	SyncConcurrency int    `mapstructure:"sync-concurrency"`

	// --- Remote service ---
	RemoteBaseURL string `mapstructure:"remote-base-url"`
	RemoteTimeout string `mapstructure:"remote-timeout"`

	// --- Per-namespace TTLs from config file ---
	TTL TTLRawInput `mapstructure:"ttl"`
}

// CacheConfig holds the validated cache settings.
type CacheConfig struct {
	MaxCacheSize   int64
	DefaultTTL     time.Duration
	UseCompression bool
	CleanOnInit    bool

	// TTLs holds the per-entity TTL. Missing entries fall back to DefaultTTL.
	TTLs map[schema.EntityType]time.Duration
}

// SyncConfig holds the validated sync engine settings.
type SyncConfig struct {
	Interval    time.Duration
	Debounce    time.Duration
	Backoff     schema.BackoffPolicy
	MaxBackoff  time.Duration
	Concurrency int
}

// Config holds the final, validated runtime configuration.
type Config struct {
	StoreBackend schema.DatabaseBackend
	StoreConnect string // Please use env var as this is plaintext

	Cache CacheConfig
	Sync  SyncConfig

	RemoteBaseURL string
	RemoteTimeout time.Duration

	Output     schema.OutputMode
	OutputFile string
	UseColors  bool

	LogJSON  bool
	LogLevel slog.Level
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Cache.TTLs != nil {
		clone.Cache.TTLs = make(map[schema.EntityType]time.Duration, len(c.Cache.TTLs))
		maps.Copy(clone.Cache.TTLs, c.Cache.TTLs)
	}
	return &clone
}

// TTLFor returns the TTL configured for an entity type.
func (c *CacheConfig) TTLFor(entity schema.EntityType) time.Duration {
	if ttl, ok := c.TTLs[entity]; ok && ttl > 0 {
		return ttl
	}
	if c.DefaultTTL > 0 {
		return c.DefaultTTL
	}
	return DefaultTTL
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processCacheInputs(cfg, input); err != nil {
		return err
	}
	if err := processSyncInputs(cfg, input); err != nil {
		return err
	}
	if err := processRemoteInputs(cfg, input); err != nil {
		return err
	}
	return nil
}

// ProcessStoreInputs validates only the store backend settings.
// It is used by commands that need the store without the rest of the configuration.
func ProcessStoreInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.StoreBackend = schema.DatabaseBackend(strings.ToLower(input.StoreBackend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidStoreBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql, memory, none", input.StoreBackend)
	}
	cfg.StoreConnect = input.StoreConnect
	return ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreConnect)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.MemoryBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSimpleInputs processes output, logging and store fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.LogJSON = input.LogJSON

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, json", input.Output)
	}

	level, err := ParseLogLevel(input.LogLevel)
	if err != nil {
		return err
	}
	cfg.LogLevel = level

	return ProcessStoreInputs(cfg, input)
}

// processCacheInputs handles cache size and TTL parsing.
func processCacheInputs(cfg *Config, input *ConfigRawInput) error {
	if input.CacheMaxSize <= 0 {
		return fmt.Errorf("cache-max-size must be greater than 0 (received %d)", input.CacheMaxSize)
	}
	cfg.Cache.MaxCacheSize = input.CacheMaxSize
	cfg.Cache.UseCompression = input.CacheCompression
	cfg.Cache.CleanOnInit = input.CacheCleanOnInit

	cfg.Cache.DefaultTTL = DefaultTTL
	if input.CacheDefaultTTL != "" {
		ttl, err := ParseTTL(input.CacheDefaultTTL)
		if err != nil {
			return fmt.Errorf("invalid cache-default-ttl: %w", err)
		}
		cfg.Cache.DefaultTTL = ttl
	}

	overrides := []struct {
		entity schema.EntityType
		raw    *string
	}{
		{schema.RouteEntity, input.TTL.Routes},
		{schema.TimelineEntity, input.TTL.Timelines},
		{schema.FavoritesEntity, input.TTL.Favorites},
		{schema.SettingsEntity, input.TTL.Settings},
	}
	cfg.Cache.TTLs = make(map[schema.EntityType]time.Duration, len(overrides))
	for _, o := range overrides {
		if o.raw == nil {
			cfg.Cache.TTLs[o.entity] = cfg.Cache.DefaultTTL
			continue
		}
		ttl, err := ParseTTL(*o.raw)
		if err != nil {
			return fmt.Errorf("invalid ttl for %s: %w", o.entity, err)
		}
		cfg.Cache.TTLs[o.entity] = ttl
	}
	return nil
}

// processSyncInputs handles sync intervals and backoff policy.
func processSyncInputs(cfg *Config, input *ConfigRawInput) error {
	var err error
	if cfg.Sync.Interval, err = parseDurationOr(input.SyncInterval, DefaultSyncInterval); err != nil {
		return fmt.Errorf("invalid sync-interval: %w", err)
	}
	if cfg.Sync.Interval <= 0 {
		return fmt.Errorf("sync-interval must be positive (received %s)", cfg.Sync.Interval)
	}
	if cfg.Sync.Debounce, err = parseDurationOr(input.SyncDebounce, DefaultSyncDebounce); err != nil {
		return fmt.Errorf("invalid sync-debounce: %w", err)
	}
	if cfg.Sync.MaxBackoff, err = parseDurationOr(input.SyncMaxBackoff, DefaultMaxBackoff); err != nil {
		return fmt.Errorf("invalid sync-max-backoff: %w", err)
	}

	cfg.Sync.Backoff = schema.BackoffPolicy(strings.ToLower(input.SyncBackoff))
	if cfg.Sync.Backoff == "" {
		cfg.Sync.Backoff = schema.ConstantBackoff
	}
	if _, ok := schema.ValidBackoffPolicies[cfg.Sync.Backoff]; !ok {
		return fmt.Errorf("invalid sync-backoff '%s'. must be constant, exponential", input.SyncBackoff)
	}

	if input.SyncConcurrency <= 0 || input.SyncConcurrency > MaxSyncConcurrency {
		return fmt.Errorf("sync-concurrency must be greater than 0 and cannot exceed %d (received %d)", MaxSyncConcurrency, input.SyncConcurrency)
	}
	cfg.Sync.Concurrency = input.SyncConcurrency
	return nil
}

// processRemoteInputs validates the remote service settings.
func processRemoteInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.RemoteBaseURL = strings.TrimRight(input.RemoteBaseURL, "/")
	if cfg.RemoteBaseURL != "" {
		u, err := url.Parse(cfg.RemoteBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid remote-base-url '%s'. must be an absolute http(s) URL", input.RemoteBaseURL)
		}
	}
	var err error
	if cfg.RemoteTimeout, err = parseDurationOr(input.RemoteTimeout, DefaultRemoteTimeout); err != nil {
		return fmt.Errorf("invalid remote-timeout: %w", err)
	}
	return nil
}

// ParseTTL parses a TTL given either as a Go duration ("36h") or as plain seconds ("86400").
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty ttl")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("ttl must be positive (received %d)", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("ttl must be positive (received %s)", d)
	}
	return d, nil
}

// ParseLogLevel parses debug, info, warn or error (case-insensitive). Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s'. must be debug, info, warn, error", s)
	}
}

func parseDurationOr(s string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return time.ParseDuration(strings.TrimSpace(s))
}
