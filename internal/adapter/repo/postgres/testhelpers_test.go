package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakePool is a hand-rolled PgxPool with pluggable behavior per call.
type fakePool struct {
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (f *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.execFn == nil {
		return pgconn.CommandTag{}, fmt.Errorf("unexpected Exec: %s", sql)
	}
	return f.execFn(ctx, sql, args...)
}

func (f *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.queryRowFn == nil {
		return fakeRow{err: fmt.Errorf("unexpected QueryRow: %s", sql)}
	}
	return f.queryRowFn(ctx, sql, args...)
}

func (f *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.queryFn == nil {
		return nil, fmt.Errorf("unexpected Query: %s", sql)
	}
	return f.queryFn(ctx, sql, args...)
}

// fakeRow scans fixed values, or fails with err.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(dest, r.values)
}

// fakeRows iterates fixed value tuples.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(dest, r.rows[r.idx-1])
}

func testTime(day int) time.Time {
	return time.Date(2026, 8, day+1, 0, 0, 0, 0, time.UTC)
}

func scanInto(dest, src []any) error {
	if len(dest) != len(src) {
		return fmt.Errorf("scan arity mismatch: %d dest, %d src", len(dest), len(src))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = src[i].(string)
		case *int:
			*p = src[i].(int)
		case *bool:
			*p = src[i].(bool)
		case *time.Time:
			*p = src[i].(time.Time)
		case *[]string:
			*p = src[i].([]string)
		default:
			return fmt.Errorf("scan dest %d: unsupported type %T", i, d)
		}
	}
	return nil
}
