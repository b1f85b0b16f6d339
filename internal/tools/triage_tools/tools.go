package triage_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/triagemail/triagemail/internal/instrumentation"
	"github.com/triagemail/triagemail/internal/server"
	"github.com/triagemail/triagemail/internal/session"
	"github.com/triagemail/triagemail/internal/triage"
)

// getStringArg extracts an optional string argument.
func getStringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

// requireSession rejects tool calls when no authenticated session
// exists, mirroring the HTTP route guard.
func requireSession(sc *server.ServerContext) error {
	if !session.CanAccess(sc.Sessions().Current()) {
		return fmt.Errorf("no authenticated session; sign in via the dashboard before using triage tools")
	}
	return nil
}

// RegisterTriageTools registers all triage tools with the MCP server.
func RegisterTriageTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := registerListEmailsTool(s, sc); err != nil {
		return fmt.Errorf("failed to register list emails tool: %w", err)
	}
	if err := registerMetricsTool(s, sc); err != nil {
		return fmt.Errorf("failed to register metrics tool: %w", err)
	}
	return nil
}

func registerListEmailsTool(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listEmailsTool := mcp.NewTool("triage_list_emails",
		mcp.WithDescription("List analyzed emails, optionally narrowed by a free-text query and exact-match facets. The query matches subject and sender case-insensitively; facets combine with AND."),
		mcp.WithString("query",
			mcp.Description("Free-text search over subject and sender (substring, case-insensitive)"),
		),
		mcp.WithString("category",
			mcp.Description("Exact category to filter by (e.g. 'Work', 'Finance')"),
		),
		mcp.WithString("priority",
			mcp.Description("Priority bucket to filter by: high, medium, or low"),
		),
		mcp.WithString("sentiment",
			mcp.Description("Sentiment label to filter by: positive, neutral, or negative"),
		),
	)

	s.AddTool(listEmailsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})

		if err := requireSession(sc); err != nil {
			sc.Metrics().RecordToolInvocation(ctx, "triage_list_emails", instrumentation.ResultError)
			return mcp.NewToolResultError(err.Error()), nil
		}

		records := sc.Records().All()
		filtered := triage.Filter(records, getStringArg(args, "query"), triage.Facets{
			Category:  getStringArg(args, "category"),
			Priority:  triage.PriorityBucket(getStringArg(args, "priority")),
			Sentiment: triage.SentimentLabel(getStringArg(args, "sentiment")),
		})

		payload := struct {
			Emails   []triage.EmailRecord `json:"emails"`
			Filtered int                  `json:"filtered"`
			Total    int                  `json:"total"`
		}{Emails: filtered, Filtered: len(filtered), Total: len(records)}

		result, _ := json.MarshalIndent(payload, "", "  ")
		sc.Metrics().RecordToolInvocation(ctx, "triage_list_emails", instrumentation.ResultSuccess)
		return mcp.NewToolResultText(string(result)), nil
	})

	return nil
}

func registerMetricsTool(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	metricsTool := mcp.NewTool("triage_dashboard_metrics",
		mcp.WithDescription("Get the aggregate dashboard metrics: total emails, category counts, sentiment and priority distributions, and average response time. Always computed over the full working set, not a filtered view."),
	)

	s.AddTool(metricsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := requireSession(sc); err != nil {
			sc.Metrics().RecordToolInvocation(ctx, "triage_dashboard_metrics", instrumentation.ResultError)
			return mcp.NewToolResultError(err.Error()), nil
		}

		snapshot := triage.Recompute(sc.Records().All())
		result, _ := json.MarshalIndent(snapshot, "", "  ")
		sc.Metrics().RecordToolInvocation(ctx, "triage_dashboard_metrics", instrumentation.ResultSuccess)
		return mcp.NewToolResultText(string(result)), nil
	})

	return nil
}
