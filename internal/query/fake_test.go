package query

import (
	"context"
	"sync"

	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/driver"
)

// fakeDriver records what sessions were asked to do.
type fakeDriver struct {
	mu sync.Mutex

	opened  int
	closed  int
	commits int
	execs   []string
	pages   [][][]any
	lastDSN string

	cols []string
	rows [][]any

	openErr   error
	execErr   error
	queryErr  error
	batchErr  error
	failPage  int
	commitErr error
	closeErr  error
	iterErr   error
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Open(_ context.Context, desc *conn.Descriptor) (driver.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened++
	d.lastDSN = desc.ConnString()
	return &fakeSession{d: d}, nil
}

func (d *fakeDriver) counts() (opened, closed, commits int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened, d.closed, d.commits
}

type fakeSession struct {
	d *fakeDriver
}

func (s *fakeSession) Exec(_ context.Context, sql string, _ ...any) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.execs = append(s.d.execs, sql)
	return s.d.execErr
}

func (s *fakeSession) Query(_ context.Context, sql string, _ ...any) (driver.Rows, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.execs = append(s.d.execs, sql)
	if s.d.queryErr != nil {
		return nil, s.d.queryErr
	}
	return &fakeRows{cols: s.d.cols, rows: s.d.rows, pos: -1, err: s.d.iterErr}, nil
}

func (s *fakeSession) ExecBatch(_ context.Context, _ string, records [][]any) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.pages = append(s.d.pages, records)
	if s.d.batchErr != nil && len(s.d.pages) == s.d.failPage {
		return s.d.batchErr
	}
	return nil
}

func (s *fakeSession) Commit(context.Context) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.d.commitErr != nil {
		return s.d.commitErr
	}
	s.d.commits++
	return nil
}

func (s *fakeSession) Close(context.Context) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.closed++
	return s.d.closeErr
}

type fakeRows struct {
	cols []string
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Next() bool {
	if r.pos+1 >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}
func (r *fakeRows) Values() ([]any, error) { return r.rows[r.pos], nil }
func (r *fakeRows) Err() error             { return r.err }
func (r *fakeRows) Close()                 {}

func newFakeExecutor(d *fakeDriver, opts ...Option) *Executor {
	return New(conn.NewResolver(nil), d, opts...)
}
