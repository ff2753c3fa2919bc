package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func TestNewSecurityAuditor(t *testing.T) {
	logger, _ := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	assert.NotNil(t, auditor)
	assert.NotNil(t, auditor.logger)
}

func TestScreen(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		flagged   bool
		eventType SecurityEventType
	}{
		{name: "empty", text: ""},
		{name: "persian question", text: "درآمد پرستار چقدره؟"},
		{name: "money answer", text: "۳ تا ۵ میلیون تومان"},
		{name: "latin question", text: "how much does a nurse earn"},
		{name: "tautology", text: "' OR '1'='1", flagged: true, eventType: EventSQLInjectionAttempt},
		{name: "drop table", text: "'; DROP TABLE users--", flagged: true, eventType: EventSQLInjectionAttempt},
		{name: "union select", text: "1 UNION SELECT * FROM passwords", flagged: true, eventType: EventSQLInjectionAttempt},
		{name: "script tag", text: "<script>alert(1)</script>", flagged: true, eventType: EventXSSAttempt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Screen(tt.text)
			assert.Equal(t, tt.flagged, got.Flagged)
			if tt.flagged {
				assert.Equal(t, tt.eventType, got.EventType)
			}
		})
	}
}

func TestScreenMessage_CleanTextIsNotLogged(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	result := auditor.ScreenMessage(context.Background(), "ask", "message", "پرستار بگو", "10.0.0.1")

	assert.False(t, result.Flagged)
	assert.Equal(t, 0, recorded.Len())
}

func TestScreenMessage_LogsInjection(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)
	ctx := WithRequestID(context.Background(), "req-42")

	result := auditor.ScreenMessage(ctx, "ask", "message", "admin'; DELETE FROM logs; --", "192.168.1.100")
	require.True(t, result.Flagged)
	assert.NotEmpty(t, result.Fingerprint)

	logs := recorded.All()
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "security_audit", entry.LoggerName)

	fields := entry.ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "message", fields["field"])
	assert.Equal(t, "192.168.1.100", fields["client_ip"])
	assert.Equal(t, string(EventSQLInjectionAttempt), fields["event_type"])

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(fields["event_json"].(string)), &event))
	assert.Equal(t, EventSQLInjectionAttempt, event.EventType)
	assert.Equal(t, "ask", event.Source)
	assert.Equal(t, "warning", event.Severity)
	assert.False(t, event.Timestamp.IsZero())
}

func TestLogInputValidation(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogInputValidation(context.Background(), "resolve", "job_title_id must be a number", "127.0.0.1")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.InfoLevel, logs[0].Level)

	fields := logs[0].ContextMap()
	assert.Equal(t, "job_title_id must be a number", fields["error"])
	assert.Equal(t, "info", fields["severity"])
	assert.Empty(t, fields["request_id"])
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}
