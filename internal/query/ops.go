package query

import (
	"context"
	"fmt"

	"github.com/oriys/pgrun/internal/driver"
)

// Execute runs a statement and commits.
func (e *Executor) Execute(ctx context.Context, connID, sql string, args ...any) error {
	return e.run(ctx, OpExecute, connID, sql, func(ctx context.Context, s driver.Session, st *callStats) error {
		if err := s.Exec(ctx, sql, args...); err != nil {
			return err
		}
		return commit(ctx, s, st)
	})
}

// ExecuteAndFetchAll runs a statement, fetches every row it returns, then
// commits. It suits statements that mutate and return data, such as an
// INSERT with a RETURNING clause.
func (e *Executor) ExecuteAndFetchAll(ctx context.Context, connID, sql string, args ...any) ([]Row, error) {
	var out []Row
	err := e.run(ctx, OpExecuteAndFetchAll, connID, sql, func(ctx context.Context, s driver.Session, st *callStats) error {
		rows, err := s.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		if out, err = collect(rows); err != nil {
			return err
		}
		st.rows = len(out)
		return commit(ctx, s, st)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExecuteBatch runs sql once per record, sending batchSize records per
// round-trip, and commits once at the end. A batchSize below 1 selects the
// executor's default.
func (e *Executor) ExecuteBatch(ctx context.Context, connID, sql string, records [][]any, batchSize int) error {
	if batchSize < 1 {
		batchSize = e.batchSize
	}
	return e.run(ctx, OpExecuteBatch, connID, sql, func(ctx context.Context, s driver.Session, st *callStats) error {
		for start := 0; start < len(records); start += batchSize {
			end := min(start+batchSize, len(records))
			if err := s.ExecBatch(ctx, sql, records[start:end]); err != nil {
				return err
			}
			st.pages++
			st.rows += end - start
			e.metrics.RecordBatchPage()
		}
		return commit(ctx, s, st)
	})
}

// FetchAll runs a read-only query and returns all rows. It never commits.
func (e *Executor) FetchAll(ctx context.Context, connID, sql string, args ...any) ([]Row, error) {
	var out []Row
	err := e.run(ctx, OpFetchAll, connID, sql, func(ctx context.Context, s driver.Session, st *callStats) error {
		rows, err := s.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		out, err = collect(rows)
		st.rows = len(out)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchAllWithColumns is FetchAll that also returns the result column names
// in projection order.
func (e *Executor) FetchAllWithColumns(ctx context.Context, connID, sql string, args ...any) ([]Row, []string, error) {
	var (
		out  []Row
		cols []string
	)
	err := e.run(ctx, OpFetchAllWithColumns, connID, sql, func(ctx context.Context, s driver.Session, st *callStats) error {
		rows, err := s.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		cols = rows.Columns()
		out, err = collect(rows)
		st.rows = len(out)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, cols, nil
}

// FetchOne returns the first column of the first row. It never commits. A
// query with no rows fails with ErrNoRows rather than returning a zero value.
func (e *Executor) FetchOne(ctx context.Context, connID, sql string, args ...any) (any, error) {
	var out any
	err := e.run(ctx, OpFetchOne, connID, sql, func(ctx context.Context, s driver.Session, st *callStats) error {
		rows, err := s.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return ErrNoRows
		}
		vals, err := rows.Values()
		if err != nil {
			return err
		}
		if len(vals) == 0 {
			return ErrNoColumns
		}
		out = vals[0]
		st.rows = 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func commit(ctx context.Context, s driver.Session, st *callStats) error {
	if err := s.Commit(ctx); err != nil {
		return err
	}
	st.committed = true
	return nil
}

// collect drains and closes rows.
func collect(rows driver.Rows) ([]Row, error) {
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(out), err)
		}
		out = append(out, Row(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
