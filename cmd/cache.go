package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roamly/tripcache/internal/outwriter"
	"github.com/roamly/tripcache/internal/parquet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cacheCmd focused on cache management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local entity cache",
	Long: `Inspect and manage the TTL cache that keeps routes, timelines, favorites and
settings readable while offline.

Entries expire after their namespace TTL (24h by default). When the cache grows past
cache-max-size, the oldest entries are evicted first.

Subcommands:
  status - Show cache statistics
  keys   - List cache entries
  clear  - Remove cache entries
  clean  - Remove expired cache entries
  export - Export the cache index and pending changes to Parquet`,
}

// cacheStatusCmd shows cache statistics.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics",
	Long: `Show the number of active and expired cache entries, the total payload size and
how much of the size bound is in use.

Examples:
  tripcache cache status
  tripcache cache status --output json`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		stats := application.Cache.Stats(rootCtx)
		return outwriter.NewOutWriter().WriteCacheStats(stats, cfg)
	},
}

// cacheKeysCmd lists cache entries.
var cacheKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List cache entries",
	Long: `List every entry of the cache index with its creation time, expiry, size and flags.

Examples:
  tripcache cache keys
  tripcache cache keys --prefix routes:`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		keys, err := application.Cache.Keys(rootCtx)
		if err != nil {
			return err
		}
		if prefix := viper.GetString("prefix"); prefix != "" {
			filtered := keys[:0]
			for _, k := range keys {
				if strings.HasPrefix(k.Key, prefix) {
					filtered = append(filtered, k)
				}
			}
			keys = filtered
		}
		return outwriter.NewOutWriter().WriteCacheKeys(keys, cfg)
	},
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cache entries",
	Long: `Remove every cache entry, or only the entries whose key starts with --prefix.
Local entity records and pending changes are kept.

Examples:
  tripcache cache clear
  tripcache cache clear --prefix timelines:`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if prefix := viper.GetString("clear-prefix"); prefix != "" {
			if !application.Cache.ClearByPrefix(rootCtx, prefix) {
				return fmt.Errorf("failed to clear cache entries with prefix %q", prefix)
			}
			cmd.Printf("Cache entries with prefix %q cleared.\n", prefix)
			return nil
		}
		if err := application.Cache.TryClear(rootCtx); err != nil {
			return err
		}
		cmd.Println("Cache cleared successfully.")
		return nil
	},
}

// cacheCleanCmd removes expired entries.
var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove expired cache entries",
	Long: `Remove expired entries and reclaim their space. This also runs at startup unless
cache-clean-on-init is disabled.`,
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, _ []string) {
		removed := application.Cache.CleanExpired(rootCtx)
		cmd.Printf("Removed %d expired cache entries.\n", removed)
	},
}

// cacheExportCmd exports the cache index and the sync queue to Parquet.
var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the cache index and pending changes to Parquet",
	Long: `Export the cache metadata index and the pending sync queue to Parquet files.

Writes two files:
  <output-file>.cache_entries.parquet
  <output-file>.queue.parquet

Requires: --output-file parameter

Examples:
  tripcache cache export --output-file tripcache
  duckdb -c "SELECT namespace, sum(size_bytes) FROM 'tripcache.cache_entries.parquet' GROUP BY 1"`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.OutputFile == "" {
			return errors.New("--output-file is required for export command")
		}

		keys, err := application.Cache.Keys(rootCtx)
		if err != nil {
			return err
		}
		entriesFile := cfg.OutputFile + ".cache_entries.parquet"
		if err := parquet.WriteCacheEntriesParquet(parquet.ConvertCacheKeys(keys), entriesFile); err != nil {
			return fmt.Errorf("failed to write cache entries: %w", err)
		}
		cmd.Printf("Exported %d cache entries to: %s\n", len(keys), entriesFile)

		markers, err := application.Queue.Pending(rootCtx)
		if err != nil {
			return err
		}
		queueFile := cfg.OutputFile + ".queue.parquet"
		rows := parquet.ConvertQueueMarkers(markers, time.Now())
		if err := parquet.WriteQueueMarkersParquet(rows, queueFile); err != nil {
			return fmt.Errorf("failed to write queue markers: %w", err)
		}
		cmd.Printf("Exported %d pending changes to: %s\n", len(rows), queueFile)
		return nil
	},
}

