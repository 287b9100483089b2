package cmd

import (
	"github.com/roamly/tripcache/internal/outwriter"
	"github.com/spf13/cobra"
)

// queueCmd groups the pending-change queue commands.
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect local changes waiting to be pushed",
	Long: `Inspect the queue of local changes waiting to be pushed.

Each entry is a type:id marker. Queuing the same entity twice keeps one marker.
A marker leaves the queue only after its push succeeds.`,
}

// queueListCmd lists pending markers.
var queueListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List pending changes",
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		markers, err := application.Queue.Pending(rootCtx)
		if err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteQueue(markers, cfg)
	},
}

// queueClearCmd drops every pending marker.
var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every pending change",
	Long: `Drop every pending change without pushing it. Local records are kept, and the
next full sync (see 'sync reset') pushes them again.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := application.Queue.Clear(rootCtx); err != nil {
			return err
		}
		cmd.Println("Sync queue cleared.")
		return nil
	},
}
