package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/roamly/tripcache/core/app"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/internal/logger"
	"github.com/roamly/tripcache/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// application is the wired store, cache and sync engine for the running command.
var application *app.App

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "tripcache",
	Short:              "Offline-first cache and sync for trip planning data.",
	Long:               `Tripcache keeps routes, timelines, favorites and settings available offline and syncs local edits with the trip service.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".tripcache")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("TRIPCACHE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("store-backend", schema.SQLiteBackend)
	viper.SetDefault("store-connect", "")
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("color", "yes")
	viper.SetDefault("log-level", "warn")
	viper.SetDefault("cache-max-size", contract.DefaultMaxCacheSize)
	viper.SetDefault("cache-default-ttl", contract.DefaultTTL.String())
	viper.SetDefault("cache-compression", true)
	viper.SetDefault("cache-clean-on-init", true)
	viper.SetDefault("sync-interval", contract.DefaultSyncInterval.String())
	viper.SetDefault("sync-debounce", contract.DefaultSyncDebounce.String())
	viper.SetDefault("sync-backoff", schema.ConstantBackoff)
	viper.SetDefault("sync-max-backoff", contract.DefaultMaxBackoff.String())
	viper.SetDefault("sync-concurrency", contract.DefaultSyncConcurrency)
	viper.SetDefault("remote-timeout", contract.DefaultRemoteTimeout.String())
}

// readConfig merges defaults, file, env and flags into input.
func readConfig() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return nil
}

// sharedSetup validates the configuration and opens the application.
func sharedSetup(ctx context.Context, _ *cobra.Command, _ []string) error {
	if err := readConfig(); err != nil {
		return err
	}
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	a, err := app.Open(ctx, cfg, app.Options{Logger: newLogger()})
	if err != nil {
		return err
	}
	application = a
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// storeSetup validates only the store settings. It is used by commands that
// must not open the cache, such as migrations.
func storeSetup(_ *cobra.Command, _ []string) error {
	if err := readConfig(); err != nil {
		return err
	}
	return contract.ProcessStoreInputs(cfg, input)
}

// newLogger builds the process logger from the validated config.
func newLogger() *slog.Logger {
	return logger.New(os.Stderr, logger.Options{JSON: cfg.LogJSON, Level: cfg.LogLevel})
}

// requireSyncer returns the sync engine of the open application.
func requireSyncer() (*app.App, error) {
	if application == nil {
		return nil, errors.New("application is not initialized")
	}
	if _, err := application.RequireSyncer(); err != nil {
		return nil, err
	}
	return application, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Shutdown releases the application opened by the last command.
func Shutdown() {
	if application == nil {
		return
	}
	if err := application.Close(); err != nil {
		contract.LogWarn("Failed to close store", err)
	}
	application = nil
}
