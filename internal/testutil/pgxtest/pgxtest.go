// Package pgxtest provides in-memory stand-ins for pgx rows and for
// infra.SQLExecutor so repositories can be tested without a database.
package pgxtest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"donationhub/internal/infra"
)

type SimpleRow struct {
	scan func(dest ...any) error
}

func NewSimpleRow(scanner func(dest ...any) error) SimpleRow {
	return SimpleRow{scan: scanner}
}

// ValuesRow returns a row that assigns values positionally on Scan.
func ValuesRow(values ...any) SimpleRow {
	return SimpleRow{scan: func(dest ...any) error { return assign(dest, values) }}
}

// ErrRow returns a row whose Scan fails with err.
func ErrRow(err error) SimpleRow {
	return SimpleRow{scan: func(...any) error { return err }}
}

func (r SimpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type TestRowsBase struct{}

func (TestRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (TestRowsBase) Conn() *pgx.Conn { return nil }

func (TestRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (TestRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (TestRowsBase) RawValues() [][]byte { return nil }

// Rows iterates over a fixed set of value tuples.
type Rows struct {
	TestRowsBase
	data   [][]any
	idx    int
	err    error
	closed bool
}

func NewRows(data ...[]any) *Rows {
	return &Rows{data: data, idx: -1}
}

func (r *Rows) Close() { r.closed = true }

func (r *Rows) Err() error { return r.err }

func (r *Rows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *Rows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.data) {
		return fmt.Errorf("scan called without a current row")
	}
	if err := assign(dest, r.data[r.idx]); err != nil {
		r.err = err
		return err
	}
	return nil
}

// Closed reports whether Close was called.
func (r *Rows) Closed() bool { return r.closed }

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(target.Elem().Type()) {
			return fmt.Errorf("scan: cannot assign %T to %s", v, target.Elem().Type())
		}
		target.Elem().Set(val)
	}
	return nil
}

// Call records one statement sent to an Executor.
type Call struct {
	Method string
	Query  string
	Args   []any
}

// Executor is a scripted infra.SQLExecutor. Each hook receives the statement
// and its arguments; unset hooks succeed with no rows.
type Executor struct {
	ExecFn     func(query string, args []any) (pgconn.CommandTag, error)
	QueryRowFn func(query string, args []any) pgx.Row
	QueryFn    func(query string, args []any) (pgx.Rows, error)
	// BeginErr makes InTx fail before running fn.
	BeginErr error

	mu        sync.Mutex
	calls     []Call
	commits   int
	rollbacks int
}

// InTx runs fn on the same executor and records whether the transaction
// would have committed or rolled back.
func (e *Executor) InTx(_ context.Context, fn func(infra.SQLExecutor) error) error {
	if e.BeginErr != nil {
		return e.BeginErr
	}
	err := fn(e)
	e.mu.Lock()
	if err != nil {
		e.rollbacks++
	} else {
		e.commits++
	}
	e.mu.Unlock()
	return err
}

// TxOutcome reports how many transactions committed and rolled back.
func (e *Executor) TxOutcome() (commits, rollbacks int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commits, e.rollbacks
}

func (e *Executor) record(method, query string, args []any) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Method: method, Query: query, Args: args})
	e.mu.Unlock()
}

func (e *Executor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	e.record("exec", query, args)
	if e.ExecFn == nil {
		return pgconn.NewCommandTag("OK"), nil
	}
	return e.ExecFn(query, args)
}

func (e *Executor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	e.record("query_row", query, args)
	if e.QueryRowFn == nil {
		return SimpleRow{}
	}
	return e.QueryRowFn(query, args)
}

func (e *Executor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	e.record("query", query, args)
	if e.QueryFn == nil {
		return NewRows(), nil
	}
	return e.QueryFn(query, args)
}

// Calls returns a copy of every recorded statement.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// CallsTo returns the recorded calls whose query starts with the same marker
// line as query.
func (e *Executor) CallsTo(query string) []Call {
	marker := firstLine(query)
	var out []Call
	for _, c := range e.Calls() {
		if firstLine(c.Query) == marker {
			out = append(out, c)
		}
	}
	return out
}

func firstLine(q string) string {
	q = strings.TrimSpace(q)
	if i := strings.IndexByte(q, '\n'); i >= 0 {
		return q[:i]
	}
	return q
}

var _ infra.SQLExecutor = (*Executor)(nil)
