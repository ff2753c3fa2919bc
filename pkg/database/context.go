package database

import (
	"context"
	"time"
)

type contextKey string

const (
	// ScopeKey is the context key for storing the request-scoped database connection.
	ScopeKey contextKey = "dbScope"
)

// GetScope retrieves the request-scoped database connection from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil && scope.Conn != nil
}

// SetScope stores the request-scoped database connection in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeProvider creates scoped contexts for callers outside the HTTP
// middleware chain, such as MCP tool handlers.
type ScopeProvider struct {
	db      *DB
	timeout time.Duration
}

// NewScopeProvider creates a ScopeProvider for the given database.
func NewScopeProvider(db *DB, timeout time.Duration) *ScopeProvider {
	return &ScopeProvider{db: db, timeout: timeout}
}

// WithScope returns a context carrying a scoped connection. An existing scope
// in ctx is reused. The cleanup function must be called when the scope is no
// longer needed.
func (p *ScopeProvider) WithScope(ctx context.Context) (context.Context, func(), error) {
	if _, ok := GetScope(ctx); ok {
		return ctx, func() {}, nil
	}
	scope, err := p.db.Acquire(ctx, p.timeout)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}
