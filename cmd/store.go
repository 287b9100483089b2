package cmd

import (
	"github.com/roamly/tripcache/internal/kvstore"
	"github.com/roamly/tripcache/internal/outwriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// storeCmd groups the persistent store commands.
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and migrate the persistent key-value store",
	Long: `Inspect and migrate the key-value store that holds cache entries, local records
and the sync queue.

Supported backends: SQLite (default), MySQL, PostgreSQL, memory, or none.`,
}

// storeStatusCmd shows store status.
var storeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display store connection and size details",
	Long: `Show the backend, connection state, number of keys, payload size and the
newest and oldest write times.

Examples:
  tripcache store status
  TRIPCACHE_STORE_BACKEND=postgresql TRIPCACHE_STORE_CONNECT="postgres://..." tripcache store status`,
	PreRunE: storeSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := kvstore.NewStore(cfg.StoreBackend, cfg.StoreConnect, kvstore.Options{})
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		status, err := store.GetStatus()
		if err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteStoreStatus(status, cfg)
	},
}

// storeMigrateCmd runs database migrations for the store.
var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage the schema version of the SQL store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  tripcache store migrate

  # Migrate to specific version
  tripcache store migrate --target-version 1

  # Roll back everything
  tripcache store migrate --target-version 0`,
	PreRunE: storeSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, err := kvstore.Migrate(cfg.StoreBackend, cfg.StoreConnect, viper.GetInt("target-version"))
		if err != nil {
			return err
		}
		if !result.Changed {
			cmd.Printf("Store schema already at version %d.\n", result.ToVersion)
			return nil
		}
		cmd.Printf("Migrated store schema from version %d to %d.\n", result.FromVersion, result.ToVersion)
		return nil
	},
}
