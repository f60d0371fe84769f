package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/logging"
)

// SQL opens sessions through database/sql. The "postgres" driver is
// github.com/lib/pq and "sqlite" is modernc.org/sqlite.
type SQL struct {
	driverName string
	open       func(driverName, dsn string) (*sql.DB, error)
}

// NewSQL returns a database/sql backed driver for the registered driverName.
func NewSQL(driverName string) *SQL {
	return &SQL{driverName: driverName, open: sql.Open}
}

// Name implements Driver.
func (s *SQL) Name() string {
	if s.driverName == "postgres" {
		return "pq"
	}
	return s.driverName
}

// DataSource renders the descriptor for the underlying driver. SQLite takes
// a file path: a sqlite:// prefix is stripped and a registry record names
// the file in its database field.
func (s *SQL) DataSource(d *conn.Descriptor) string {
	if s.driverName != "sqlite" {
		return d.ConnString()
	}
	if d.IsDSN() {
		return strings.TrimPrefix(d.DSN, "sqlite://")
	}
	return d.Database
}

// Open creates a single-connection *sql.DB and begins a transaction on it.
func (s *SQL) Open(ctx context.Context, d *conn.Descriptor) (Session, error) {
	db, err := s.open(s.driverName, s.DataSource(d))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.driverName, err)
	}
	db.SetMaxOpenConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqlSession{db: db, tx: tx, driverName: s.driverName}, nil
}

type sqlSession struct {
	db         *sql.DB
	tx         *sql.Tx
	driverName string
	done       bool
}

func (s *sqlSession) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.tx.ExecContext(ctx, query, args...)
	return err
}

func (s *sqlSession) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, err
	}
	binary := make([]bool, len(types))
	for i, ct := range types {
		binary[i] = isBinaryType(ct.DatabaseTypeName())
	}
	return &sqlRows{rows: rows, cols: cols, binary: binary}, nil
}

// isBinaryType reports whether a column's values must stay []byte.
func isBinaryType(name string) bool {
	name = strings.ToUpper(name)
	return name == "BYTEA" || strings.Contains(name, "BLOB") || strings.Contains(name, "BINARY")
}

// ExecBatch prepares the statement once for the page.
func (s *sqlSession) ExecBatch(ctx context.Context, query string, records [][]any) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := s.tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			return fmt.Errorf("batch record %d: %w", i, err)
		}
	}
	return nil
}

func (s *sqlSession) Commit(context.Context) error {
	if err := s.tx.Commit(); err != nil {
		return err
	}
	s.done = true
	return nil
}

func (s *sqlSession) Close(context.Context) error {
	if !s.done {
		// Closing the connection discards the transaction server-side, so a
		// failed rollback is only logged.
		if err := s.tx.Rollback(); err != nil {
			logging.Op().Debug("rollback failed", "driver", s.driverName, "error", err)
		}
		s.done = true
	}
	return s.db.Close()
}

type sqlRows struct {
	rows   *sql.Rows
	cols   []string
	binary []bool
}

func (r *sqlRows) Columns() []string { return r.cols }
func (r *sqlRows) Next() bool        { return r.rows.Next() }

func (r *sqlRows) Values() ([]any, error) {
	vals := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range vals {
		// Text and numeric columns arrive as []byte from lib/pq.
		if b, ok := v.([]byte); ok && !r.binary[i] {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

func (r *sqlRows) Err() error { return r.rows.Err() }
func (r *sqlRows) Close()     { r.rows.Close() }
