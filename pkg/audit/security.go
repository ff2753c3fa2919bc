// Package audit provides security audit logging for SIEM consumption.
// Free-text chat messages are screened with libinjection and suspicious
// input is logged in structured JSON format.
package audit

import (
	"context"
	"encoding/json"
	"time"

	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"

	"github.com/daramad/daramad-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL injection patterns.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventXSSAttempt is logged when libinjection detects script injection in a message.
	EventXSSAttempt SecurityEventType = "xss_attempt"
	// EventInputValidation is logged when a request field has the wrong shape.
	EventInputValidation SecurityEventType = "input_validation_failure"
)

type requestIDKey struct{}

// WithRequestID stores the request id used to correlate audit events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// SecurityEvent represents an auditable security event.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	RequestID string            `json:"request_id,omitempty"`
	Source    string            `json:"source"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a flagged message.
type InjectionDetails struct {
	Field       string `json:"field"`
	Excerpt     string `json:"excerpt"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// ScreenResult is the verdict for one screened field.
type ScreenResult struct {
	Flagged     bool
	EventType   SecurityEventType
	Fingerprint string
}

// Screen runs libinjection over text. The message pipeline treats flagged
// text as ordinary input; the verdict only drives audit logging.
func Screen(text string) ScreenResult {
	if text == "" {
		return ScreenResult{}
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(text); isSQLi {
		return ScreenResult{Flagged: true, EventType: EventSQLInjectionAttempt, Fingerprint: string(fingerprint)}
	}
	if libinjection.IsXSS(text) {
		return ScreenResult{Flagged: true, EventType: EventXSSAttempt}
	}
	return ScreenResult{}
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated
// "security_audit" logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// ScreenMessage screens a free-text field and logs a warning event when it
// is flagged. It returns the screening verdict.
func (a *SecurityAuditor) ScreenMessage(ctx context.Context, source, field, text, clientIP string) ScreenResult {
	result := Screen(text)
	if !result.Flagged {
		return result
	}

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: result.EventType,
		RequestID: RequestIDFromContext(ctx),
		Source:    source,
		ClientIP:  clientIP,
		Details: InjectionDetails{
			Field:       field,
			Excerpt:     logging.SanitizeMessage(text),
			Fingerprint: result.Fingerprint,
		},
		Severity: "warning",
	}

	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Suspicious input detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(result.EventType)),
		zap.String("request_id", event.RequestID),
		zap.String("source", source),
		zap.String("field", field),
		zap.String("fingerprint", result.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("severity", "warning"),
	)
	return result
}

// LogInputValidation records a malformed request field.
// This is logged at INFO level as these are typically client bugs, not attacks.
func (a *SecurityAuditor) LogInputValidation(ctx context.Context, source, errorMessage, clientIP string) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventInputValidation,
		RequestID: RequestIDFromContext(ctx),
		Source:    source,
		ClientIP:  clientIP,
		Details: map[string]string{
			"error": errorMessage,
		},
		Severity: "info",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Input validation failed",
		zap.String("event_json", string(eventJSON)),
		zap.String("request_id", event.RequestID),
		zap.String("source", source),
		zap.String("error", errorMessage),
		zap.String("client_ip", clientIP),
		zap.String("severity", "info"),
	)
}
