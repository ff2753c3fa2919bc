package database

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Scoper provides request-scoped database connections.
type Scoper interface {
	WithScope(ctx context.Context) (context.Context, func(), error)
}

// WithScopeContext creates middleware that reserves a scoped DB connection
// for the request. The connection is released after the handler returns.
func WithScopeContext(provider Scoper, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx, cleanup, err := provider.WithScope(r.Context())
			if err != nil {
				logger.Error("Failed to acquire database connection",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "database_error", "Database connection error")
				return
			}
			defer cleanup()

			next(w, r.WithContext(ctx))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
