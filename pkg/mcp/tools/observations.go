package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/daramad/daramad-engine/pkg/models"
)

const (
	defaultTopIncomes = 10
	maxTopIncomes     = 50
)

type topIncomesResult struct {
	Rankings []models.IncomeRanking `json:"rankings"`
	Count    int                    `json:"count"`
}

// registerJobIncomeSummaryTool adds the job_income_summary tool.
func registerJobIncomeSummaryTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"job_income_summary",
		mcp.WithDescription(
			"Aggregate user-reported income and investment for a job title and every title in its group. "+
				"Outliers are excluded before the central value is computed. "+
				"Use resolve_job_title first to obtain the id.",
		),
		mcp.WithNumber("job_title_id",
			mcp.Required(),
			mcp.Description("Job title id from resolve_job_title"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := getOptionalID(req, "job_title_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		if id == nil {
			return NewErrorResult("invalid_parameters", `parameter "job_title_id" is required`), nil
		}

		scopedCtx, cleanup, err := acquireScope(ctx, deps, "job_income_summary")
		if err != nil {
			return nil, err
		}
		defer cleanup()

		summary, err := deps.Observations.Summary(scopedCtx, *id)
		if err != nil {
			if errResult := NewServiceErrorResult(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to summarize job title: %w", err)
		}

		return jsonResult(summary)
	})
}

// registerTopIncomesTool adds the top_incomes tool.
func registerTopIncomesTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"top_incomes",
		mcp.WithDescription(
			"Rank job groups by median reported income. Groups with too few usable reports are left out.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Optional: number of groups to return (default: 10, max: 50)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := defaultTopIncomes
		if v, ok := getOptionalFloat(req, "limit"); ok && v >= 1 {
			limit = min(int(v), maxTopIncomes)
		}

		scopedCtx, cleanup, err := acquireScope(ctx, deps, "top_incomes")
		if err != nil {
			return nil, err
		}
		defer cleanup()

		rankings, err := deps.Observations.TopByIncome(scopedCtx, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to rank job groups: %w", err)
		}
		if rankings == nil {
			rankings = []models.IncomeRanking{}
		}

		return jsonResult(topIncomesResult{Rankings: rankings, Count: len(rankings)})
	})
}
