// Package mcpserver exposes the survey pipeline as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"SurveyInsights/internal/domain"
)

const (
	serverName = "survey-insights"

	ToolAsk  = "ask_survey"
	ToolFind = "find_question"
)

// Service is the pipeline surface the tools call.
type Service interface {
	Ask(ctx context.Context, question string) (domain.InsightReport, error)
	FindQuestion(ctx context.Context, question string) (domain.RankedResult, error)
}

// New builds an MCP server with the ask and find tools registered.
func New(svc Service, version string, logger *slog.Logger) *server.MCPServer {
	if logger != nil {
		logger = logger.With("component", "mcp")
	}

	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Answers questions about a market research survey: finds the matching questionnaire item and generates insights from its response table."),
	)

	s.AddTool(
		mcp.NewTool(ToolAsk,
			mcp.WithDescription("Generate insights and recommendations for a free-text question about the survey"),
			mcp.WithString("question", mcp.Required(), mcp.Description("Question about the survey results")),
		),
		askHandler(svc, logger),
	)
	s.AddTool(
		mcp.NewTool(ToolFind,
			mcp.WithDescription("Find the questionnaire item that best matches a free-text question"),
			mcp.WithString("question", mcp.Required(), mcp.Description("Question to match against the questionnaire")),
		),
		findHandler(svc, logger),
	)
	return s
}

// ServeStdio runs s over stdin/stdout until the input closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func askHandler(svc Service, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		report, err := svc.Ask(ctx, question)
		if err != nil {
			logError(logger, ToolAsk, question, err)
			return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatReport(report)), nil
	}
}

func findHandler(svc Service, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := svc.FindQuestion(ctx, question)
		if err != nil {
			logError(logger, ToolFind, question, err)
			return mcp.NewToolResultError(fmt.Sprintf("find failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%s (score %.3f)\n%s", result.QuestionID, result.Score, result.QuestionText)), nil
	}
}

func formatReport(report domain.InsightReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %s: %s\n\n", report.QuestionID, strings.TrimSpace(report.QuestionText))
	b.WriteString(strings.TrimSpace(report.Insights))
	if report.DocumentURL != "" {
		fmt.Fprintf(&b, "\n\nDocument: %s", report.DocumentURL)
	}
	return b.String()
}

func logError(logger *slog.Logger, tool, question string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("tool call failed", "tool", tool, "question", question, "error", err)
}
