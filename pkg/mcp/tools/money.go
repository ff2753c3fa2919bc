package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/daramad/daramad-engine/pkg/money"
	"github.com/daramad/daramad-engine/pkg/stats"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

const maxOutlierValues = 10_000

type detectOutliersResult struct {
	stats.OutlierResult
	Count    int     `json:"count"`
	Excluded int     `json:"excluded"`
	Central  float64 `json:"central"`
}

// registerParseMoneyTool adds the parse_money tool.
func registerParseMoneyTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"parse_money",
		mcp.WithDescription(
			"Parse a free-text Persian monetary amount into toman. "+
				"Handles Persian digits, scale words (هزار, میلیون, میلیارد), rial conversion and ranges (۱۰ تا ۱۵ میلیون). "+
				"Returns a status; only status 'ok' carries a usable value.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The amount as the user wrote it, e.g. 'حدود ۲۰ میلیون در ماه'"),
		),
		mcp.WithString("profile",
			mcp.Description("Optional: 'income' (default) or 'investment'. Investment accepts zero and flags non-cash assets."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		opts := deps.MoneyOptions
		opts.Profile = money.ProfileIncome
		if p := trimString(getOptionalString(req, "profile")); p != "" {
			opts.Profile = money.Profile(p)
		}
		if !opts.Profile.IsValid() {
			return NewErrorResult("invalid_profile", "profile must be income or investment"), nil
		}

		return jsonResult(deps.Parser.Parse(textnorm.Normalize(text), opts))
	})
}

// registerDetectOutliersTool adds the detect_outliers tool.
func registerDetectOutliersTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"detect_outliers",
		mcp.WithDescription(
			"Detect outliers in a list of amounts. Uses Tukey fences for 4 or more positive values and a z-score test for 2 or 3. "+
				"Returns the flagged values, the acceptance bounds and the central value of the rest "+
				"(median after IQR, mean otherwise).",
		),
		mcp.WithArray("values",
			mcp.Required(),
			mcp.Description("Amounts in toman, e.g. [20000000, 22000000, 900000000]"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		values, err := extractFloatSlice(arguments(req), "values", deps.Logger)
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		if values == nil {
			return NewErrorResult("invalid_parameters", `parameter "values" is required`), nil
		}
		if len(values) > maxOutlierValues {
			return NewErrorResult("too_many_values", "at most 10000 values are accepted"), nil
		}

		sum := stats.Summarize(values)
		return jsonResult(detectOutliersResult{
			OutlierResult: sum.Result,
			Count:         sum.Count,
			Excluded:      sum.Excluded,
			Central:       sum.Central,
		})
	})
}
