package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/daramad/daramad-engine/pkg/retry"
)

// ErrorType classifies phraser failures.
type ErrorType string

const (
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error represents a structured phraser error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int    // HTTP status code if known
	Model      string // Model name if known
	Endpoint   string // Endpoint URL if known
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := []string{string(e.Type)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if host := endpointHost(e.Endpoint); host != "" {
		parts = append(parts, "endpoint="+host)
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// endpointHost reduces an endpoint URL to its host for error messages.
func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements retry.RetryableError.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

var _ retry.RetryableError = (*Error)(nil)

// NewError creates a new structured error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError categorizes an error whose HTTP status is unknown.
func ClassifyError(err error) *Error {
	return classifyWithStatus(err, 0, "", "")
}

// classifyWithStatus categorizes err. A known status code takes precedence
// over inspecting the message.
func classifyWithStatus(err error, statusCode int, model, endpoint string) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	e := classifyStatus(statusCode, err)
	if e == nil {
		e = classifyMessage(err)
	}
	e.StatusCode = statusCode
	e.Model = model
	e.Endpoint = endpoint
	return e
}

func classifyStatus(statusCode int, err error) *Error {
	switch {
	case statusCode == 0:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case statusCode == http.StatusNotFound:
		return NewError(ErrorTypeModel, "model or endpoint not found", false, err)
	case statusCode == http.StatusTooManyRequests:
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case statusCode == 529 || statusCode >= 500:
		return NewError(ErrorTypeEndpoint, "server error", true, err)
	case statusCode >= 400:
		return NewError(ErrorTypeUnknown, "request rejected", false, err)
	}
	return nil
}

func classifyMessage(err error) *Error {
	if errors.Is(err, context.Canceled) {
		return NewError(ErrorTypeUnknown, "request canceled", false, err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "invalid x-api-key"):
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return NewError(ErrorTypeModel, "model not found", false, err)
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "overloaded"):
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "connection reset"):
		return NewError(ErrorTypeEndpoint, "connection failed", true, err)
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(lower, "timeout"):
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	}
	return NewError(ErrorTypeUnknown, "llm error", false, err)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// phraseRetryConfig bounds phrasing retries. Callers fall back to the
// unphrased draft on failure.
func phraseRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:       2,
		InitialDelay:     200 * time.Millisecond,
		MaxDelay:         2 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 3,
	}
}
