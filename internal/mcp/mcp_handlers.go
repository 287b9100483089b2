package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/roamly/tripcache/core/app"
	"github.com/roamly/tripcache/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	app *app.App
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleCacheStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.app.Cache.Stats(ctx))
}

func (h *toolHandler) handleCacheKeys(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys, err := h.app.Cache.Keys(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read cache index: %v", err)), nil
	}
	if prefix := request.GetString("prefix", ""); prefix != "" {
		filtered := make([]schema.CacheKeyInfo, 0, len(keys))
		for _, k := range keys {
			if strings.HasPrefix(k.Key, prefix) {
				filtered = append(filtered, k)
			}
		}
		keys = filtered
	}
	return jsonResult(keys)
}

func (h *toolHandler) handleSyncStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := h.app.SyncStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read sync status: %v", err)), nil
	}
	return jsonResult(status)
}

// forceSyncResult is the force_sync payload.
type forceSyncResult struct {
	Ran    bool              `json:"ran"`
	Error  string            `json:"error,omitempty"`
	Status schema.SyncStatus `json:"status"`
}

func (h *toolHandler) handleForceSync(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := h.app.RequireSyncer()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ran, syncErr := engine.ForceSync(ctx)
	status, err := engine.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read sync status: %v", err)), nil
	}

	result := forceSyncResult{Ran: ran, Status: status}
	if syncErr != nil {
		result.Error = syncErr.Error()
	}
	return jsonResult(result)
}

func (h *toolHandler) handleListPending(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markers, err := h.app.Queue.Pending(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read sync queue: %v", err)), nil
	}
	if markers == nil {
		markers = []string{}
	}
	return jsonResult(markers)
}
