package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultStatementTimeout bounds every statement run through a Scope.
const DefaultStatementTimeout = 5 * time.Second

// Scope wraps a pooled connection reserved for one request. Statements run
// on it are bounded by a statement timeout, so a slow catalog query never
// holds a request open indefinitely.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close resets the statement timeout and releases the connection to the pool.
// This MUST be called to keep the setting from leaking to the next request.
func (s *Scope) Close() {
	if s == nil || s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET statement_timeout")
	s.Conn.Release()
	s.Conn = nil
}

// Acquire reserves a connection and applies the statement timeout. A zero
// timeout selects DefaultStatementTimeout.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context, timeout time.Duration) (*Scope, error) {
	if timeout <= 0 {
		timeout = DefaultStatementTimeout
	}

	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	ms := fmt.Sprintf("%d", timeout.Milliseconds())
	if _, err := conn.Exec(ctx, "SELECT set_config('statement_timeout', $1, false)", ms); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to set statement timeout: %w", err)
	}

	return &Scope{Conn: conn}, nil
}
