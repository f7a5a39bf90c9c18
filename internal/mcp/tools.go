package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
	"github.com/studiometa/productive-tools-sub004/internal/resolver"
)

type toolError struct {
	Code        string               `json:"code"`
	Message     string               `json:"message"`
	Candidates  []resolver.Candidate `json:"candidates,omitempty"`
	Suggestions []resolver.Candidate `json:"suggestions,omitempty"`
}

func resolveTool(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		opts := resolver.Options{
			OwnerID:     req.GetString("project_id", ""),
			PreferFirst: req.GetBool("first", false),
		}
		if t := req.GetString("type", ""); t != "" {
			kind, err := cache.ParseKind(t)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			opts.ExpectedKind = kind
		}

		res, err := deps.Resolver.Resolve(ctx, query, opts)
		if err != nil {
			return resolveError(err), nil
		}
		return mcpJSON(res)
	}
}

func resolveError(err error) *mcp.CallToolResult {
	te := toolError{Code: "error", Message: err.Error()}
	var re *resolver.ResolveError
	if errors.As(err, &re) {
		te.Code = string(re.Code)
		te.Candidates = re.Candidates
		te.Suggestions = re.Suggestions
	}
	b, mErr := json.Marshal(te)
	if mErr != nil {
		return mcpError(err.Error())
	}
	return mcpError(string(b))
}

type detectResult struct {
	Query    string              `json:"query"`
	Detected bool                `json:"detected"`
	IsID     bool                `json:"is_id,omitempty"`
	Match    *resolver.Detection `json:"match,omitempty"`
}

func detectTool() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		out := detectResult{Query: query, IsID: resolver.IsNumericID(query)}
		if d, ok := resolver.Detect(query); ok {
			out.Detected = true
			out.Match = &d
		}
		return mcpJSON(out)
	}
}

func drainTool(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Fetcher == nil {
			return mcpError("no API client configured"), nil
		}
		limit := req.GetInt("max", deps.DrainMax)
		res, err := deps.Queue.Drain(ctx, deps.Fetcher, limit)
		if err != nil {
			if errors.Is(err, cache.ErrDrainLocked) {
				return mcpError("another process is draining the refresh queue"), nil
			}
			deps.Logger.Warn("drain failed", zap.Error(err))
			return mcpError(fmt.Sprintf("drain failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func statsTool(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpJSON(deps.Store.Stats(ctx))
	}
}

type clearResult struct {
	Kinds   []cache.Kind `json:"kinds"`
	Records int          `json:"records"`
	Queries int          `json:"queries,omitempty"`
}

func clearTool(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kinds := cache.Kinds
		if t := req.GetString("type", ""); t != "" {
			kind, err := cache.ParseKind(t)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			kinds = []cache.Kind{kind}
		}

		removed, err := deps.Store.Clear(ctx, kinds...)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to clear cache: %v", err)), nil
		}
		out := clearResult{Kinds: kinds, Records: removed}
		if req.GetBool("queries", false) {
			n, err := deps.Store.ClearQueries(ctx)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to clear cached queries: %v", err)), nil
			}
			out.Queries = n
		}
		return mcpJSON(out)
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
