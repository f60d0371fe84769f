// Package driver defines the database boundary used by the query executors
// and its implementations over pgx and database/sql.
//
// A Session is one connection with one open transaction. Nothing is pooled:
// every Open dials a new connection and Close releases it.
package driver

import (
	"context"
	"fmt"

	"github.com/oriys/pgrun/internal/conn"
)

// Rows is an open result set. Close must be called once iteration is done.
type Rows interface {
	// Columns returns the result column names in projection order.
	Columns() []string
	// Next advances to the next row, returning false when exhausted.
	Next() bool
	// Values returns the current row.
	Values() ([]any, error)
	// Err returns any error encountered during iteration.
	Err() error
	// Close releases the result set.
	Close()
}

// Session is a connection with an open transaction.
type Session interface {
	// Exec executes a statement, discarding any rows.
	Exec(ctx context.Context, sql string, args ...any) error
	// Query executes a statement and returns its rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	// ExecBatch executes sql once per record as a single page.
	ExecBatch(ctx context.Context, sql string, records [][]any) error
	// Commit commits the transaction.
	Commit(ctx context.Context) error
	// Close rolls back anything uncommitted and closes the connection. It
	// is safe to call after Commit.
	Close(ctx context.Context) error
}

// Driver opens sessions.
type Driver interface {
	Open(ctx context.Context, d *conn.Descriptor) (Session, error)
	// Name returns the driver name (e.g. "pgx", "pq", "sqlite").
	Name() string
}

// Lookup returns the driver registered under name. An empty name selects pgx.
func Lookup(name string) (Driver, error) {
	switch name {
	case "", "pgx":
		return NewPgx(), nil
	case "pq", "postgres":
		return NewSQL("postgres"), nil
	case "sqlite":
		return NewSQL("sqlite"), nil
	default:
		return nil, fmt.Errorf("unknown driver: %s (valid: pgx, pq, sqlite)", name)
	}
}
