package infra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is the query surface repositories depend on.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	// InTx runs fn against an executor bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(SQLExecutor) error) error
}

// querier is the statement surface shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ErrMissingMarker is returned for queries that do not start with a
// "--sql <uuid>" line.
var ErrMissingMarker = errors.New("sql marker missing or invalid")

// SQLRunner runs marked queries on a pgx pool and logs each by marker, so a
// slow or failing statement can be traced back to its constant.
type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger

	tx pgx.Tx
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger}
}

func (r *SQLRunner) conn() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.Pool
}

// InTx begins a transaction on the pool. Called on a runner that is already
// inside a transaction, fn joins it.
func (r *SQLRunner) InTx(ctx context.Context, fn func(SQLExecutor) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&SQLRunner{Pool: r.Pool, Logger: r.Logger, tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.Logger.Error().Err(rbErr).Msg("sql rollback failed")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.conn().Exec(ctx, trimmed, args...)
	if err != nil {
		r.logError(err, marker, "exec")
		return tag, err
	}
	r.Logger.Debug().
		Str("sql_marker", marker).
		Int64("rows", tag.RowsAffected()).
		Dur("duration", time.Since(start)).
		Msg("sql exec")
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	row := r.conn().QueryRow(ctx, trimmed, args...)
	return loggingRow{row: row, runner: r, marker: marker, start: time.Now()}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.conn().Query(ctx, trimmed, args...)
	if err != nil {
		r.logError(err, marker, "query")
		return nil, err
	}
	return loggingRows{Rows: rows, runner: r, marker: marker, start: start}, nil
}

func (r *SQLRunner) logError(err error, marker, op string) {
	ev := r.Logger.Error().Err(err).Str("sql_marker", marker).Str("op", op)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		ev = ev.Str("pg_code", pgErr.Code).Str("pg_constraint", pgErr.ConstraintName)
	}
	ev.Msg("sql error")
}

type loggingRow struct {
	row    pgx.Row
	runner *SQLRunner
	marker string
	start  time.Time
}

// Scan treats pgx.ErrNoRows as a normal outcome and does not log it.
func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	switch {
	case err == nil:
		l.runner.Logger.Debug().Str("sql_marker", l.marker).Dur("duration", time.Since(l.start)).Msg("sql query_row")
	case !IsNoRows(err):
		l.runner.logError(err, l.marker, "scan")
	}
	return err
}

type loggingRows struct {
	pgx.Rows
	runner *SQLRunner
	marker string
	start  time.Time
}

func (l loggingRows) Close() {
	l.Rows.Close()
	if err := l.Rows.Err(); err != nil {
		l.runner.logError(err, l.marker, "rows")
		return
	}
	l.runner.Logger.Debug().Str("sql_marker", l.marker).Dur("duration", time.Since(l.start)).Msg("sql query")
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

// extractMarker splits a query into its marker uuid and the statement body.
func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	markerLine, body, _ := strings.Cut(trimmed, "\n")
	markerLine = strings.TrimSpace(markerLine)
	if !markerRegexp.MatchString(markerLine) {
		return "", "", fmt.Errorf("%w: %.40q", ErrMissingMarker, markerLine)
	}
	return strings.TrimPrefix(markerLine, "--sql "), body, nil
}

// MarkerOf returns the marker uuid of query, or "" when it has none.
func MarkerOf(query string) string {
	marker, _, err := extractMarker(query)
	if err != nil {
		return ""
	}
	return marker
}

var _ SQLExecutor = (*SQLRunner)(nil)
