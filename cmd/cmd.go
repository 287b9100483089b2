// Package cmd defines the command-line interface for tripcache.
package cmd

import (
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheKeysCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
	cacheCmd.AddCommand(cacheExportCmd)

	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncDaemonCmd)
	syncCmd.AddCommand(syncResetCmd)

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearCmd)

	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Store backend: sqlite or mysql or postgresql or memory or none")
	rootCmd.PersistentFlags().String("store-connect", "", "Database connection string for sqlite path or mysql/postgresql DSN")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().Int64("cache-max-size", contract.DefaultMaxCacheSize, "Upper bound of cached payload bytes")
	rootCmd.PersistentFlags().String("cache-default-ttl", contract.DefaultTTL.String(), "TTL for cache entries without a namespace TTL (duration or seconds)")
	rootCmd.PersistentFlags().Bool("cache-compression", true, "Compress cached payloads with zstd")
	rootCmd.PersistentFlags().Bool("cache-clean-on-init", true, "Remove expired cache entries at startup")
	rootCmd.PersistentFlags().String("sync-interval", contract.DefaultSyncInterval.String(), "Time between periodic sync passes")
	rootCmd.PersistentFlags().String("sync-debounce", contract.DefaultSyncDebounce.String(), "Window in which sync requests collapse into one pass")
	rootCmd.PersistentFlags().String("sync-backoff", string(schema.ConstantBackoff), "Retry policy after a failed pass: constant or exponential")
	rootCmd.PersistentFlags().String("sync-max-backoff", contract.DefaultMaxBackoff.String(), "Upper bound of the retry delay")
	rootCmd.PersistentFlags().Int("sync-concurrency", contract.DefaultSyncConcurrency, "Number of queued changes pushed in parallel")
	rootCmd.PersistentFlags().String("remote-base-url", "", "Base URL of the trip service API")
	rootCmd.PersistentFlags().String("remote-timeout", contract.DefaultRemoteTimeout.String(), "Timeout of each remote request")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	cacheKeysCmd.Flags().String("prefix", "", "Only list keys starting with this prefix")
	if err := viper.BindPFlags(cacheKeysCmd.Flags()); err != nil {
		contract.LogFatal("Error binding cache keys flags", err)
	}

	cacheClearCmd.Flags().String("prefix", "", "Only clear keys starting with this prefix")
	if err := viper.BindPFlag("clear-prefix", cacheClearCmd.Flags().Lookup("prefix")); err != nil {
		contract.LogFatal("Error binding cache clear flags", err)
	}

	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 for latest, 0 to roll back everything)")
	if err := viper.BindPFlags(storeMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding migrate flags", err)
	}
}
