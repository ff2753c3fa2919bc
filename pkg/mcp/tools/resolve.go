package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/services"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

type classifyIntentResult struct {
	Intent     models.Intent         `json:"intent"`
	Resolution *models.ResolvedQuery `json:"resolution"`
}

// resolveRequestFromArgs builds a resolver request from the shared
// message/job_title_id/group_key/hint/strict arguments.
func resolveRequestFromArgs(req mcp.CallToolRequest) (services.ResolveRequest, error) {
	id, err := getOptionalID(req, "job_title_id")
	if err != nil {
		return services.ResolveRequest{}, err
	}

	var ref *models.EntityRef
	groupKey := trimString(getOptionalString(req, "group_key"))
	if id != nil || groupKey != "" {
		ref = &models.EntityRef{JobTitleID: id, GroupKey: groupKey}
	}

	return services.ResolveRequest{
		Message: textnorm.Normalize(getOptionalString(req, "message")),
		Ref:     ref,
		Hint:    trimString(getOptionalString(req, "hint")),
		Strict:  getOptionalBoolWithDefault(req, "strict", false),
	}, nil
}

func resolverParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("message",
			mcp.Description("The user's message in Persian, e.g. 'درآمد راننده تاکسی چقدره'"),
		),
		mcp.WithNumber("job_title_id",
			mcp.Description("Optional: explicit job title id; takes precedence over the message"),
		),
		mcp.WithString("group_key",
			mcp.Description("Optional: explicit job group key, resolved to the group's primary title"),
		),
		mcp.WithString("hint",
			mcp.Description("Optional: a job name the caller already extracted"),
		),
		mcp.WithBoolean("strict",
			mcp.Description("Optional: report weak single matches as ambiguous (default: false)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
}

// registerResolveJobTitleTool adds the resolve_job_title tool.
func registerResolveJobTitleTool(s *server.MCPServer, deps *ToolDeps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Map a Persian chat message or an explicit reference to a job title from the catalog. " +
				"Returns the matched job with all title ids of its group, or ranked candidates when the match is ambiguous. " +
				"Example: resolve_job_title(message='درآمد راننده') returns candidates for taxi and truck drivers.",
		),
	}, resolverParams()...)
	tool := mcp.NewTool("resolve_job_title", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rreq, err := resolveRequestFromArgs(req)
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		scopedCtx, cleanup, err := acquireScope(ctx, deps, "resolve_job_title")
		if err != nil {
			return nil, err
		}
		defer cleanup()

		result, err := deps.Resolver.Resolve(scopedCtx, rreq)
		if err != nil {
			if errResult := NewServiceErrorResult(err); errResult != nil {
				return errResult, nil
			}
			deps.Logger.Error("resolve_job_title failed", zap.Error(err))
			return nil, fmt.Errorf("failed to resolve job title: %w", err)
		}

		return jsonResult(result)
	})
}

// registerClassifyIntentTool adds the classify_intent tool.
func registerClassifyIntentTool(s *server.MCPServer, deps *ToolDeps) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Classify a Persian chat message as job_income, general_high_income, clarification, general_exploratory or unknown. " +
				"The message is resolved against the job catalog first and the resolution is returned alongside the intent.",
		),
	}, resolverParams()...)
	tool := mcp.NewTool("classify_intent", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rreq, err := resolveRequestFromArgs(req)
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		scopedCtx, cleanup, err := acquireScope(ctx, deps, "classify_intent")
		if err != nil {
			return nil, err
		}
		defer cleanup()

		resolution, err := deps.Resolver.Resolve(scopedCtx, rreq)
		if err != nil {
			if errResult := NewServiceErrorResult(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to resolve job title: %w", err)
		}

		return jsonResult(classifyIntentResult{
			Intent:     deps.Classifier.Classify(rreq.Message, resolution),
			Resolution: resolution,
		})
	})
}
