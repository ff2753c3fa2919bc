// Package tools provides MCP tool implementations for daramad-engine.
package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/database"
	"github.com/daramad/daramad-engine/pkg/money"
	"github.com/daramad/daramad-engine/pkg/services"
)

// ToolDeps holds the dependencies shared by every MCP tool.
type ToolDeps struct {
	// Scope reserves a database connection for one tool call. Nil means the
	// caller already carries a scope, which is how tests run.
	Scope        database.Scoper
	Resolver     services.Resolver
	Classifier   *services.IntentClassifier
	Parser       services.MoneyParser
	MoneyOptions money.Options
	Observations services.ObservationService
	Logger       *zap.Logger
}

// acquireScope reserves a scoped database connection for a tool call.
// The returned cleanup MUST be called, typically with defer.
// Failing to reserve a connection is a system error, not a tool result.
func acquireScope(ctx context.Context, deps *ToolDeps, toolName string) (context.Context, func(), error) {
	if deps.Scope == nil {
		return ctx, func() {}, nil
	}
	scopedCtx, cleanup, err := deps.Scope.WithScope(ctx)
	if err != nil {
		deps.Logger.Error("Failed to acquire database connection for tool",
			zap.String("tool", toolName),
			zap.Error(err))
		return nil, nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	return scopedCtx, cleanup, nil
}

// RegisterAll adds every daramad tool to the server.
func RegisterAll(s *server.MCPServer, deps *ToolDeps, version string, checks ...HealthCheck) {
	registerResolveJobTitleTool(s, deps)
	registerClassifyIntentTool(s, deps)
	registerParseMoneyTool(s, deps)
	registerDetectOutliersTool(s, deps)
	registerJobIncomeSummaryTool(s, deps)
	registerTopIncomesTool(s, deps)
	RegisterHealthTool(s, version, checks...)
}
