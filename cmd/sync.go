package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/roamly/tripcache/internal/outwriter"
	"github.com/spf13/cobra"
)

// syncCmd groups the sync engine commands.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync local changes with the trip service",
	Long: `Run and inspect the sync engine.

A pass pulls and pushes routes, then timelines, then favorites, drains the queue of
pending changes and finally advances the last-sync cursor. A failed pass leaves the
cursor alone and schedules one retry after twice the sync interval.

Subcommands:
  run    - Run one pass now
  status - Show the engine state and pending changes
  daemon - Sync periodically until interrupted
  reset  - Forget the last-sync cursor`,
}

// syncRunCmd runs one pass.
var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sync pass now",
	Long: `Run one sync pass immediately and print the resulting status.

Requires remote-base-url.

Examples:
  TRIPCACHE_REMOTE_BASE_URL=https://api.example.com tripcache sync run`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := requireSyncer()
		if err != nil {
			return err
		}
		_, syncErr := a.Syncer.ForceSync(rootCtx)
		status, err := a.Syncer.Status(rootCtx)
		if err != nil {
			return err
		}
		if err := outwriter.NewOutWriter().WriteSyncStatus(status, cfg); err != nil {
			return err
		}
		return syncErr
	},
}

// syncStatusCmd shows the engine status.
var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync state and pending changes",
	Long: `Show the last successful sync time and the number of local changes waiting
to be pushed. Works without a remote configured.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := application.SyncStatus(rootCtx)
		if err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteSyncStatus(status, cfg)
	},
}

// syncDaemonCmd syncs periodically.
var syncDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync every sync-interval until interrupted",
	Long: `Run a pass now, then one every sync-interval, until SIGINT or SIGTERM.
Failed passes are retried after the backoff delay.

Examples:
  tripcache sync daemon --sync-interval 10m --sync-backoff exponential`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := requireSyncer()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.Syncer.RequestSync()
		a.Syncer.Start(ctx)
		cmd.Printf("Syncing every %s. Press Ctrl+C to stop.\n", cfg.Sync.Interval)

		<-ctx.Done()
		a.Syncer.Stop()

		status, err := a.Syncer.Status(rootCtx)
		if err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteSyncStatus(status, cfg)
	},
}

// syncResetCmd forgets the cursor.
var syncResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the last-sync cursor",
	Long: `Remove the last-sync cursor so the next pass pulls every remote record and
pushes every local one.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := requireSyncer()
		if err != nil {
			return err
		}
		if err := a.Syncer.ResetCursor(rootCtx); err != nil {
			return err
		}
		cmd.Println("Sync cursor reset. The next pass is a full sync.")
		return nil
	},
}
