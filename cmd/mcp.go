package cmd

import (
	"github.com/roamly/tripcache/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:     "mcp",
	Short:   "Start the tripcache MCP server",
	Long:    `Launch an MCP server on stdio exposing cache_stats, cache_keys, sync_status, force_sync and list_pending.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, application, version)
	},
}
