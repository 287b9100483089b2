// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/roamly/tripcache/core/app"
)

// NewMCPServer initializes and configures the tripcache MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(a *app.App, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Tripcache Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{app: a}

	s.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Report cache item counts, size and usage of the size bound."),
	), h.handleCacheStats)

	s.AddTool(mcp.NewTool("cache_keys",
		mcp.WithDescription("List cache entries with creation time, expiry and size."),
		mcp.WithString("prefix", mcp.Description("Only list keys starting with this prefix (e.g. 'routes:').")),
	), h.handleCacheKeys)

	s.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Report the sync engine state, last sync time and pending change count."),
	), h.handleSyncStatus)

	s.AddTool(mcp.NewTool("force_sync",
		mcp.WithDescription("Run a sync pass now, cancelling any scheduled retry."),
	), h.handleForceSync)

	s.AddTool(mcp.NewTool("list_pending",
		mcp.WithDescription("List local changes waiting to be pushed, as type:id markers."),
	), h.handleListPending)

	return s
}

// StartMCPServer serves the tripcache tools over stdio.
func StartMCPServer(_ context.Context, a *app.App, version string) error {
	return server.ServeStdio(NewMCPServer(a, version))
}
