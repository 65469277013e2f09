package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/schedchat/schedchat/internal/schedule"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Assistant Assistant
	History   HistoryStore // optional; nil leaves history://recent unregistered
}

// NewMCPServer creates an MCP server with the schedule tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"schedchat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("schedchat answers questions about preloaded schedules such as week 1 or the general schedule."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_schedule",
			mcp.WithDescription("Ask a question about the preloaded schedules. Mention \"week 1\" or \"general schedule\" to attach those schedules as context."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAskSchedule(deps),
	)

	s.AddTool(
		mcp.NewTool("list_schedules",
			mcp.WithDescription("List the names of the preloaded schedules."),
		),
		mcpListSchedules(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"schedules://preloaded",
			"Preloaded Schedules",
			mcp.WithResourceDescription("All preloaded schedules as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSchedules(deps),
	)

	if deps.History != nil {
		s.AddResource(
			mcp.NewResource(
				"history://recent",
				"Recent Questions",
				mcp.WithResourceDescription("Last 10 answered questions"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceRecent(deps),
		)
	}

	return s
}

func mcpAskSchedule(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcpError("question is required"), nil
		}

		res, err := deps.Assistant.Answer(ctx, question, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("answer failed: %v", err)), nil
		}

		return mcpText(strings.Join(res.Lines, "\n")), nil
	}
}

func mcpListSchedules(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := deps.Assistant.Schedules()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load schedules: %v", err)), nil
		}

		b, err := json.Marshal(c.Names())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal names: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSchedules(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		c, err := deps.Assistant.Schedules()
		if err != nil {
			return nil, fmt.Errorf("failed to load schedules: %w", err)
		}

		blobs := make([]schedule.Blob, 0, len(c))
		for _, name := range c.Names() {
			blobs = append(blobs, c[name])
		}

		b, err := json.Marshal(blobs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schedules: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		interactions, err := deps.History.ListInteractions(10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent interactions: %w", err)
		}

		type interactionSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Question  string `json:"question"`
			Status    string `json:"status"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			question := ix.Question
			if utf8.RuneCountInString(question) > 200 {
				runes := []rune(question)
				question = string(runes[:200]) + "..."
			}
			summaries[i] = interactionSummary{
				ID:        ix.ID,
				CreatedAt: ix.CreatedAt.Format(time.RFC3339),
				Question:  question,
				Status:    ix.Status,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal interactions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
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
