package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/jsonutil"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

// getOptionalString extracts an optional string argument from the request.
// Non-string values read as empty.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	val, _ := arguments(req)[key].(string)
	return val
}

// getOptionalFloat extracts an optional float argument from the request.
func getOptionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	val, ok := arguments(req)[key].(float64)
	return val, ok
}

// getOptionalBoolWithDefault extracts an optional boolean argument with a default value.
func getOptionalBoolWithDefault(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	if val, ok := arguments(req)[key].(bool); ok {
		return val
	}
	return defaultVal
}

// getOptionalID extracts an identifier given as a number or a numeric string.
// It returns nil when the argument is absent or zero.
func getOptionalID(req mcp.CallToolRequest, key string) (*int64, error) {
	raw, ok := arguments(req)[key]
	if !ok || raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", key, err)
	}
	var id jsonutil.FlexibleID
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("parameter %q: %w", key, err)
	}
	return id.Ptr(), nil
}

// extractArrayParam reads an array argument. Some MCP clients send arrays as
// stringified JSON; those are parsed and a warning is logged. An absent key
// returns nil, nil. logger may be nil.
func extractArrayParam(args map[string]any, key string, logger *zap.Logger) ([]any, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case []any:
		return v, nil
	case string:
		var parsed []any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return nil, fmt.Errorf("parameter %q could not be parsed as an array; send a native JSON array", key)
		}
		if logger != nil {
			logger.Warn("Array parameter sent as stringified JSON", zap.String("param", key))
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("parameter %q must be an array, got %T", key, raw)
	}
}

// extractFloatSlice reads an array of numbers. Numeric strings, including
// Persian digits, are accepted.
func extractFloatSlice(args map[string]any, key string, logger *zap.Logger) ([]float64, error) {
	items, err := extractArrayParam(args, key, logger)
	if err != nil || items == nil {
		return nil, err
	}

	out := make([]float64, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case float64:
			out = append(out, v)
		case string:
			f, err := strconv.ParseFloat(strings.Map(textnorm.ToASCIIDigit, trimString(v)), 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %q element %d must be a number", key, i)
			}
			out = append(out, f)
		default:
			return nil, fmt.Errorf("parameter %q element %d must be a number, got %T", key, i, item)
		}
	}
	return out, nil
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
