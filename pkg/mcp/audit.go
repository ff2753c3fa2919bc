package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/audit"
	"github.com/daramad/daramad-engine/pkg/logging"
)

var (
	// toolCallsTotal counts MCP tool calls.
	// Labels: tool, outcome (ok, tool_error, error)
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daramad",
		Subsystem: "mcp",
		Name:      "tool_calls_total",
		Help:      "MCP tool calls by tool and outcome",
	}, []string{"tool", "outcome"})

	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "daramad",
		Subsystem: "mcp",
		Name:      "tool_call_duration_seconds",
		Help:      "MCP tool call latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})
)

// screenedParams are the tool arguments that carry raw user text.
var screenedParams = map[string]bool{"message": true, "text": true, "hint": true}

// maxPreviewLength bounds the result preview kept in the audit log.
const maxPreviewLength = 200

// AuditLogger records MCP tool calls in the structured log and in metrics.
// Free-text arguments are screened for injection attempts before the tool runs.
type AuditLogger struct {
	auditor *audit.SecurityAuditor
	logger  *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger. auditor may be nil to skip screening.
func NewAuditLogger(auditor *audit.SecurityAuditor, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		auditor: auditor,
		logger:  logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())

	if a.auditor == nil {
		return
	}
	args, _ := req.Params.Arguments.(map[string]any)
	for key, v := range args {
		text, ok := v.(string)
		if !ok || !screenedParams[key] {
			continue
		}
		a.auditor.ScreenMessage(ctx, "mcp:"+req.Params.Name, key, text, "")
	}
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	duration := a.elapsed(id)
	outcome := "ok"
	if result != nil && result.IsError {
		outcome = "tool_error"
	}
	a.observe(req.Params.Name, outcome, duration)

	a.logger.Info("MCP tool call",
		zap.String("tool", req.Params.Name),
		zap.String("outcome", outcome),
		zap.String("request_id", audit.RequestIDFromContext(ctx)),
		zap.Duration("duration", duration),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Any("result", summarizeResult(result)),
	)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	duration := a.elapsed(id)
	a.observe(req.Params.Name, "error", duration)

	a.logger.Warn("MCP tool call failed",
		zap.String("tool", req.Params.Name),
		zap.String("request_id", audit.RequestIDFromContext(ctx)),
		zap.Duration("duration", duration),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.String("error", logging.SanitizeError(err)),
	)
}

func (a *AuditLogger) elapsed(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

func (a *AuditLogger) observe(tool, outcome string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// sanitizeParams prepares tool arguments for logging. Strings go through
// logging.SanitizeMessage and arrays are reduced to their length.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(v)
	}
	return sanitized
}

func sanitizeValue(value any) any {
	switch val := value.(type) {
	case string:
		return logging.SanitizeMessage(val)
	case []any:
		return fmt.Sprintf("[%d items]", len(val))
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

// summarizeResult creates a compact summary of the tool result.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{
		"is_error": result.IsError,
	}
	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		extractCount(tc.Text, summary)
		summary["preview"] = logging.TruncateString(tc.Text, maxPreviewLength)
		break
	}
	return summary
}

// extractCount copies the count field of a JSON result into summary.
func extractCount(text string, summary map[string]any) {
	var partial struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err == nil && partial.Count != nil {
		summary["count"] = *partial.Count
	}
}
