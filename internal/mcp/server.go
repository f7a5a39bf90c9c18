// Package mcp exposes the resolver and the reference cache to agents over the
// Model Context Protocol.
package mcp

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
	"github.com/studiometa/productive-tools-sub004/internal/resolver"
)

// Deps holds what the tools operate on. All of it belongs to one tenant.
type Deps struct {
	Resolver *resolver.Resolver
	Store    *cache.Store
	Queue    *cache.Queue
	// Fetcher performs the live fetches when the refresh queue is drained.
	Fetcher cache.Fetcher
	// DrainMax caps a drain when the caller gives no limit.
	DrainMax int
	Logger   *zap.Logger
}

// NewServer creates the MCP server with every tool and resource registered.
func NewServer(version string, deps Deps) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.DrainMax <= 0 {
		deps.DrainMax = cache.DefaultDrainMax
	}

	s := server.NewMCPServer(
		"productive",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Resolve Productive references (emails, project numbers, names) to ids and manage the local reference cache."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("resolve",
			mcp.WithDescription("Resolve a human-friendly reference (email, project number such as PRJ-123, or name) to Productive ids. Numeric ids are returned as-is."),
			mcp.WithString("query", mcp.Description("Reference to resolve"), mcp.Required()),
			mcp.WithString("type", mcp.Description("Expected entity type"), mcp.Enum(kindNames()...)),
			mcp.WithString("project_id", mcp.Description("Restrict services and tasks to this project (or projects to this company)")),
			mcp.WithBoolean("first", mcp.Description("Return only the best candidate")),
		),
		resolveTool(deps),
	)

	s.AddTool(
		mcp.NewTool("detect",
			mcp.WithDescription("Report which entity type a query looks like, without looking anything up."),
			mcp.WithString("query", mcp.Description("Query to classify"), mcp.Required()),
		),
		detectTool(),
	)

	s.AddTool(
		mcp.NewTool("drain_refresh_queue",
			mcp.WithDescription("Re-fetch stale cached queries that were queued for refresh."),
			mcp.WithNumber("max", mcp.Description("Maximum number of jobs to process")),
		),
		drainTool(deps),
	)

	s.AddTool(
		mcp.NewTool("cache_stats",
			mcp.WithDescription("Show record counts, last sync times and queue size of the local cache."),
		),
		statsTool(deps),
	)

	s.AddTool(
		mcp.NewTool("clear_cache",
			mcp.WithDescription("Remove cached records of one type (or all types) and optionally cached query results."),
			mcp.WithString("type", mcp.Description("Entity type to clear; all types when omitted"), mcp.Enum(kindNames()...)),
			mcp.WithBoolean("queries", mcp.Description("Also clear cached query results")),
		),
		clearTool(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"productive://guide",
			"Agent guide",
			mcp.WithResourceDescription("How to resolve references with this server"),
			mcp.WithMIMEType("text/markdown"),
		),
		guideResource(),
	)

	s.AddResource(
		mcp.NewResource(
			"productive://cache/stats",
			"Cache statistics",
			mcp.WithResourceDescription("Current cache statistics as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		statsResource(deps),
	)

	return s
}

// Serve runs s over stdio-style streams until ctx is cancelled or in closes.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

func kindNames() []string {
	names := make([]string, len(cache.Kinds))
	for i, k := range cache.Kinds {
		names[i] = k.String()
	}
	return names
}
