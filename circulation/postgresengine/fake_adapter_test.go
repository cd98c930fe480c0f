package postgresengine

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/shelfwise/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	stepQuery = "query"
	stepExec  = "exec"
)

// fakeStep scripts one expected statement and its canned reply. The statement
// issued by the engine must contain the given substring; a mismatch in kind,
// order, or content fails the test.
type fakeStep struct {
	kind         string
	contains     string
	rows         [][]any
	queryErr     error
	rowsAffected int64
	execErr      error
	affectedErr  error
}

func expectQuery(contains string, rows ...[]any) fakeStep {
	return fakeStep{kind: stepQuery, contains: contains, rows: rows}
}

func expectExec(contains string, rowsAffected int64) fakeStep {
	return fakeStep{kind: stepExec, contains: contains, rowsAffected: rowsAffected}
}

// fakeConn is a scripted DBAdapter. Both direct statements and statements
// issued through a transaction consume the same ordered step list.
type fakeConn struct {
	t          testing.TB
	steps      []fakeStep
	pos        int
	beginErr   error
	commitErr  error
	began      int
	committed  int
	rolledBack int
}

func newFakeConn(t testing.TB, steps ...fakeStep) *fakeConn {
	return &fakeConn{t: t, steps: steps}
}

func (c *fakeConn) next(kind string, query string) fakeStep {
	c.t.Helper()

	if c.pos >= len(c.steps) {
		c.t.Fatalf("unexpected %s beyond scripted steps: %s", kind, query)
	}

	step := c.steps[c.pos]
	c.pos++

	if step.kind != kind {
		c.t.Fatalf("step %d: expected %s, got %s: %s", c.pos, step.kind, kind, query)
	}

	if !strings.Contains(query, step.contains) {
		c.t.Fatalf("step %d: statement does not contain %q: %s", c.pos, step.contains, query)
	}

	return step
}

func (c *fakeConn) Query(_ context.Context, query string) (adapters.DBRows, error) {
	step := c.next(stepQuery, query)
	if step.queryErr != nil {
		return nil, step.queryErr
	}

	return &fakeRows{rows: step.rows}, nil
}

func (c *fakeConn) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	step := c.next(stepExec, query)
	if step.execErr != nil {
		return nil, step.execErr
	}

	return fakeResult{rowsAffected: step.rowsAffected, err: step.affectedErr}, nil
}

func (c *fakeConn) BeginTx(_ context.Context) (adapters.DBTx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}

	c.began++

	return &fakeTx{conn: c}, nil
}

func (c *fakeConn) assertScriptExhausted() {
	c.t.Helper()

	if c.pos != len(c.steps) {
		c.t.Fatalf("only %d of %d scripted steps were executed", c.pos, len(c.steps))
	}
}

type fakeTx struct {
	conn *fakeConn
}

func (tx *fakeTx) Query(ctx context.Context, query string) (adapters.DBRows, error) {
	return tx.conn.Query(ctx, query)
}

func (tx *fakeTx) Exec(ctx context.Context, query string) (adapters.DBResult, error) {
	return tx.conn.Exec(ctx, query)
}

func (tx *fakeTx) Commit(_ context.Context) error {
	if tx.conn.commitErr != nil {
		return tx.conn.commitErr
	}

	tx.conn.committed++

	return nil
}

func (tx *fakeTx) Rollback(_ context.Context) error {
	tx.conn.rolledBack++

	return nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}

	r.idx++

	return true
}

// Scan assigns the scripted row values to the destinations, converting
// between compatible types the way a database driver would.
func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan expects %d destinations, row has %d values", len(dest), len(row))
	}

	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		sv := reflect.ValueOf(row[i])

		if !sv.Type().ConvertibleTo(dv.Type()) {
			return fmt.Errorf("cannot scan %T into %T", row[i], d)
		}

		dv.Set(sv.Convert(dv.Type()))
	}

	return nil
}

func (r *fakeRows) Close() error { return nil }

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r fakeResult) RowsAffected() (int64, error) {
	return r.rowsAffected, r.err
}

var (
	_ adapters.DBAdapter = (*fakeConn)(nil)
	_ adapters.DBTx      = (*fakeTx)(nil)
)

// newTestEngine builds an engine on a scripted connection.
func newTestEngine(t testing.TB, conn *fakeConn, options ...Option) *Engine {
	t.Helper()

	engine, err := newEngine(conn, options...)
	if err != nil {
		t.Fatalf("error creating engine in test setup: %v", err)
	}

	return engine
}
