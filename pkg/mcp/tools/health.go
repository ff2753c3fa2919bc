package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one backing component.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResult struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and the state of each checked
// component. Any failing component reports the server as degraded.
func RegisterHealthTool(s *server.MCPServer, version string, checks ...HealthCheck) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: version}
		if len(checks) > 0 {
			result.Components = make(map[string]string, len(checks))
		}

		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		for _, c := range checks {
			if err := c.Check(checkCtx); err != nil {
				result.Status = "degraded"
				result.Components[c.Name] = "unavailable"
				continue
			}
			result.Components[c.Name] = "ok"
		}

		return jsonResult(result)
	})
}
