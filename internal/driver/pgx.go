package driver

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/logging"
)

// Pgx opens sessions with github.com/jackc/pgx/v5.
type Pgx struct{}

// NewPgx returns the pgx driver.
func NewPgx() *Pgx {
	return &Pgx{}
}

// Name implements Driver.
func (*Pgx) Name() string { return "pgx" }

// Open dials a new connection and begins a transaction.
func (*Pgx) Open(ctx context.Context, d *conn.Descriptor) (Session, error) {
	cfg, err := pgx.ParseConfig(d.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse connection config: %w", err)
	}
	c, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	tx, err := c.Begin(ctx)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgxSession{conn: c, tx: tx}, nil
}

type pgxSession struct {
	conn *pgx.Conn
	tx   pgx.Tx
	done bool
}

func (s *pgxSession) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := s.tx.Exec(ctx, sql, args...)
	return err
}

func (s *pgxSession) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := s.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

// ExecBatch queues every record into one pgx.Batch and sends it in a single
// round-trip.
func (s *pgxSession) ExecBatch(ctx context.Context, sql string, records [][]any) error {
	if len(records) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, r := range records {
		b.Queue(sql, r...)
	}
	br := s.tx.SendBatch(ctx, b)
	for i := range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch record %d: %w", i, err)
		}
	}
	return br.Close()
}

func (s *pgxSession) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		return err
	}
	s.done = true
	return nil
}

func (s *pgxSession) Close(ctx context.Context) error {
	if !s.done {
		// Closing the connection discards the transaction server-side, so a
		// failed rollback is only logged.
		if err := s.tx.Rollback(ctx); err != nil {
			logging.Op().Debug("rollback failed", "driver", "pgx", "error", err)
		}
		s.done = true
	}
	return s.conn.Close(ctx)
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Columns() []string {
	fields := r.rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return cols
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Values() ([]any, error) { return r.rows.Values() }
func (r *pgxRows) Err() error             { return r.rows.Err() }
func (r *pgxRows) Close()                 { r.rows.Close() }
