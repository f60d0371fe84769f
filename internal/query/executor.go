// Package query implements the executors: each call resolves its connection
// identifier, opens a fresh session, runs one statement, fetches and/or
// commits, and releases the session before returning.
package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/driver"
	"github.com/oriys/pgrun/internal/logging"
	"github.com/oriys/pgrun/internal/metrics"
	"github.com/oriys/pgrun/internal/observability"
)

// DefaultBatchSize is the number of records sent per batch round-trip.
const DefaultBatchSize = 1000

var (
	// ErrNoRows is returned by FetchOne when the query produced no rows.
	ErrNoRows = errors.New("query returned no rows")
	// ErrNoColumns is returned by FetchOne when the first row has no columns.
	ErrNoColumns = errors.New("query returned no columns")
)

// Row is one result row, in projection order.
type Row []any

// Op names an executor operation in logs, metrics and spans.
type Op string

const (
	OpExecute             Op = "execute"
	OpExecuteAndFetchAll  Op = "execute_fetch_all"
	OpExecuteBatch        Op = "execute_batch"
	OpFetchAll            Op = "fetch_all"
	OpFetchAllWithColumns Op = "fetch_all_with_columns"
	OpFetchOne            Op = "fetch_one"
)

// Resolver maps a connection identifier to a descriptor.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*conn.Descriptor, error)
}

// Executor runs statements against connections named by identifier. It holds
// no connections between calls and is safe for concurrent use.
type Executor struct {
	resolver  Resolver
	driver    driver.Driver
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     *logging.AuditLog

	open atomic.Int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithBatchSize sets the default batch page size. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithLogger sets the logger. The default is logging.Op().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithMetrics records calls into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithAuditLog writes one entry per call to a.
func WithAuditLog(a *logging.AuditLog) Option {
	return func(e *Executor) {
		e.audit = a
	}
}

// New creates an executor.
func New(resolver Resolver, drv driver.Driver, opts ...Option) *Executor {
	e := &Executor{
		resolver:  resolver,
		driver:    drv,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.Op()
	}
	return e
}

// BatchSize returns the default batch page size.
func (e *Executor) BatchSize() int {
	return e.batchSize
}

// OpenSessions returns the number of sessions currently open.
func (e *Executor) OpenSessions() int64 {
	return e.open.Load()
}

// callStats is filled in by an operation for logs, metrics and audit.
type callStats struct {
	rows      int
	pages     int
	committed bool
}

// run resolves connID, opens a session, and hands it to fn. The session is
// closed before run returns, whatever fn does. Errors from the registry, the
// driver and fn are returned as they are.
func (e *Executor) run(ctx context.Context, op Op, connID, sql string, fn func(context.Context, driver.Session, *callStats) error) (err error) {
	start := time.Now()
	requestID := uuid.New().String()
	stats := &callStats{}

	ctx, span := observability.StartSpan(ctx, "pgrun."+string(op),
		observability.AttrOp.String(string(op)),
		observability.AttrConnID.String(connID),
		observability.AttrRequestID.String(requestID),
		observability.AttrDriver.String(e.driver.Name()),
	)
	defer func() {
		e.finish(ctx, op, connID, sql, requestID, start, stats, err)
		if err != nil {
			observability.SetSpanError(span, err)
		} else {
			span.SetAttributes(
				observability.AttrRows.Int(stats.rows),
				observability.AttrPages.Int(stats.pages),
			)
			observability.SetSpanOK(span)
		}
		span.End()
	}()

	desc, err := e.resolver.Resolve(ctx, connID)
	if err != nil {
		return err
	}

	sctx, client := observability.StartClientSpan(ctx, "pgrun.session",
		observability.AttrDBSystem.String(e.driver.Name()),
		observability.AttrConnID.String(connID),
	)
	defer func() {
		if err != nil {
			observability.SetSpanError(client, err)
		}
		client.End()
	}()

	s, err := e.driver.Open(sctx, desc)
	if err != nil {
		return err
	}
	e.open.Add(1)
	e.metrics.SessionOpened()
	defer func() {
		cerr := s.Close(context.WithoutCancel(sctx))
		e.open.Add(-1)
		e.metrics.SessionClosed()
		if err == nil {
			err = cerr
		}
	}()

	return fn(sctx, s, stats)
}

func (e *Executor) finish(ctx context.Context, op Op, connID, sql, requestID string, start time.Time, stats *callStats, err error) {
	elapsed := time.Since(start)
	e.metrics.RecordQuery(string(op), elapsed, err)
	if stats.rows > 0 {
		e.metrics.RecordRows(string(op), stats.rows)
	}

	traceID, _ := observability.TraceIDs(ctx)
	attrs := []any{
		"request_id", requestID,
		"op", op,
		"conn_id", connID,
		"duration_ms", elapsed.Milliseconds(),
	}
	if traceID != "" {
		attrs = append(attrs, "trace_id", traceID)
	}
	if err != nil {
		e.logger.Warn("query failed", append(attrs, "error", err)...)
	} else {
		e.logger.Debug("query done", append(attrs, "rows", stats.rows, "committed", stats.committed)...)
	}

	entry := &logging.QueryLog{
		RequestID:     requestID,
		TraceID:       traceID,
		Op:            string(op),
		ConnID:        connID,
		StatementHash: hashStatement(sql),
		DurationMs:    elapsed.Milliseconds(),
		Rows:          stats.rows,
		Pages:         stats.pages,
		Committed:     stats.committed,
		Success:       err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if aerr := e.audit.Log(entry); aerr != nil {
		e.logger.Error("failed to write audit log", "error", aerr, "request_id", requestID)
	}
}

// hashStatement returns a short hex digest of a statement for audit records.
func hashStatement(sql string) string {
	h := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(h[:8])
}
