package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sqlpane/sqlpane/internal/errs"
	"github.com/sqlpane/sqlpane/internal/logger"
)

// Executor is a fluent, stateful per-call statement builder over one
// connection. Per-call state (SQL text, bound parameters, cardinality)
// is fully reset by Query, so state never leaks between logically
// distinct statements.
//
// Usage:
//
//	rows, err := ex.Query("SELECT * FROM streams WHERE id = ?").
//	    Bind(7).
//	    Fetch(ctx, 0)
//
// Executor is not safe for concurrent use; execution is synchronous,
// one statement at a time. Use one Executor per logical request.
type Executor struct {
	conn Conn
	log  *logger.Logger
	prof *Profiler

	// per-call state, reset by Query
	sql    string
	args   []any
	named  map[string]any
	single bool

	tx Tx
}

// NewExecutor creates an executor bound to conn.
func NewExecutor(conn Conn, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.Global()
	}
	return &Executor{
		conn: conn,
		log:  log,
		prof: NewProfiler(),
	}
}

// Dialect exposes the connection's SQL flavor.
func (e *Executor) Dialect() Dialect {
	return e.conn.Dialect()
}

// Profiler exposes the statement log for enable/inspect/clear.
func (e *Executor) Profiler() *Profiler {
	return e.prof
}

// WithProfiler replaces the executor's profiler, letting callers share
// one statement log across executors.
func (e *Executor) WithProfiler(p *Profiler) *Executor {
	if p != nil {
		e.prof = p
	}
	return e
}

// Query stores the SQL text and resets all prior per-call state.
func (e *Executor) Query(sql string) *Executor {
	e.sql = sql
	e.args = nil
	e.named = nil
	e.single = false
	return e
}

// Bind appends positional parameters in order. Each value is normalized
// for the dialect (booleans become 0/1 on engines without a native bool).
func (e *Executor) Bind(args ...any) *Executor {
	d := e.conn.Dialect()
	for _, a := range args {
		e.args = append(e.args, d.NormalizeArg(a))
	}
	return e
}

// BindNamed sets named parameters for :name placeholders in the SQL text.
// Named and positional binding are mutually exclusive per statement.
func (e *Executor) BindNamed(params map[string]any) *Executor {
	e.named = params
	return e
}

// Single forces single-row fetch mode.
func (e *Executor) Single() *Executor {
	e.single = true
	return e
}

// Many forces multi-row fetch mode.
func (e *Executor) Many() *Executor {
	e.single = false
	return e
}

// namedRe matches :name tokens. A preceding colon (postgres ::cast) is
// excluded by the leading character class.
var namedRe = regexp.MustCompile(`([^:]|^):([A-Za-z_][A-Za-z0-9_]*)`)

// resolveNamed rewrites :name placeholders to dialect placeholders in
// occurrence order and returns the final SQL with its argument slice.
func (e *Executor) resolveNamed() (string, []any, error) {
	if e.named == nil {
		return e.sql, e.args, nil
	}
	if len(e.args) > 0 {
		return "", nil, errs.New(errs.ErrKindValidation,
			"cannot mix named and positional parameters in one statement")
	}

	d := e.conn.Dialect()
	var args []any
	var missing string
	idx := 0

	sql := namedRe.ReplaceAllStringFunc(e.sql, func(m string) string {
		sub := namedRe.FindStringSubmatch(m)
		prefix, name := sub[1], sub[2]
		val, ok := e.named[name]
		if !ok {
			missing = name
			return m
		}
		idx++
		args = append(args, d.NormalizeArg(val))
		return prefix + d.Placeholder(idx)
	})

	if missing != "" {
		return "", nil, errs.Newf(errs.ErrKindValidation, "no value bound for parameter :%s", missing)
	}
	return sql, args, nil
}

// querier returns the active transaction when one is open, else the connection.
func (e *Executor) querier() Querier {
	if e.tx != nil {
		return e.tx
	}
	return e.conn
}

// Fetch executes the prepared read query and returns its rows as maps.
//
// limit 1 forces single-row mode and returns a one-element slice (or an
// empty slice when no row matched); limit > 1 forces multi-row mode with
// at most limit rows. limit 0 respects the Single/Many setting.
// The underlying cursor is always closed before Fetch returns.
func (e *Executor) Fetch(ctx context.Context, limit int) ([]map[string]any, error) {
	if limit == 1 {
		e.single = true
	} else if limit > 1 {
		e.single = false
	}

	sql, args, err := e.resolveNamed()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := e.querier().Query(ctx, sql, args...)
	e.record(sql, args, start)
	if err != nil {
		e.log.ErrorWith("query failed", err, map[string]any{"sql": sql})
		return nil, err
	}

	result, err := ScanRows(rows)
	if err != nil {
		return nil, err
	}

	if e.single && len(result) > 1 {
		result = result[:1]
	}
	if limit > 1 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// FetchOne executes the prepared read query and returns its first row,
// or nil when no row matched.
func (e *Executor) FetchOne(ctx context.Context) (map[string]any, error) {
	rows, err := e.Fetch(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Exec executes the prepared non-read statement. For inserts the result
// carries the generated key when the driver reports one; for updates and
// deletes it carries the affected-row count, where zero is a valid
// outcome, not an error.
func (e *Executor) Exec(ctx context.Context) (ExecResult, error) {
	sql, args, err := e.resolveNamed()
	if err != nil {
		return ExecResult{}, err
	}

	start := time.Now()
	res, err := e.querier().Exec(ctx, sql, args...)
	e.record(sql, args, start)
	if err != nil {
		e.log.ErrorWith("statement failed", err, map[string]any{"sql": sql})
		return ExecResult{}, err
	}
	return res, nil
}

// Insert builds and runs a single-row INSERT into table and returns the
// generated identifier. On dialects without LastInsertId support the
// statement is extended with RETURNING pk. Column order is sorted so the
// emitted SQL is stable.
func (e *Executor) Insert(ctx context.Context, table string, data map[string]any, pk string) (int64, error) {
	if len(data) == 0 {
		return 0, errs.New(errs.ErrKindValidation, "insert requires at least one column")
	}

	d := e.conn.Dialect()
	cols := sortedKeys(data)
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
		args[i] = d.NormalizeArg(data[c])
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(table), strings.Join(quoted, ", "), d.Placeholders(1, len(cols)))

	if !d.SupportsLastInsertID() && d.SupportsReturning() && pk != "" {
		sql += " RETURNING " + d.QuoteIdent(pk)

		start := time.Now()
		row := e.querier().QueryRow(ctx, sql, args...)
		e.record(sql, args, start)

		var id int64
		if err := row.Scan(&id); err != nil {
			e.log.ErrorWith("insert failed", err, map[string]any{"sql": sql})
			return 0, errs.Wrap(errs.ErrKindExecution, "insert failed", err)
		}
		return id, nil
	}

	res, err := e.Query(sql).Bind(args...).Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

// InsertBatch runs a single multi-row INSERT. It fails fast, before any
// SQL is run, when a row's arity does not match the column list.
func (e *Executor) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(columns) == 0 {
		return errs.New(errs.ErrKindValidation, "insert batch requires a column list")
	}
	if len(rows) == 0 {
		return errs.New(errs.ErrKindValidation, "insert batch requires at least one row")
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return errs.Newf(errs.ErrKindValidation,
				"insert batch row %d has %d values, want %d", i, len(row), len(columns))
		}
	}

	d := e.conn.Dialect()
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdent(c)
	}

	var args []any
	tuples := make([]string, len(rows))
	for i, row := range rows {
		tuples[i] = "(" + d.Placeholders(len(args)+1, len(row)) + ")"
		for _, v := range row {
			args = append(args, d.NormalizeArg(v))
		}
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(tuples, ", "))

	_, err := e.Query(sql).Bind(args...).Exec(ctx)
	return err
}

// Upsert inserts a row or updates it when the key already exists, using
// the dialect-conditional SQL shape. Postgres and SQLite require explicit
// conflict columns; an unsupported combination is a hard failure.
func (e *Executor) Upsert(ctx context.Context, table string, insert, update map[string]any, conflictCols ...string) error {
	d := e.conn.Dialect()
	sql, args, err := d.UpsertSQL(table, insert, update, conflictCols)
	if err != nil {
		return err
	}
	_, err = e.Query(sql).Bind(args...).Exec(ctx)
	return err
}

// Replace inserts a row, replacing any existing row with the same key.
// Not supported on Postgres; use Upsert there.
func (e *Executor) Replace(ctx context.Context, table string, data map[string]any) error {
	d := e.conn.Dialect()
	sql, args, err := d.ReplaceSQL(table, data)
	if err != nil {
		return err
	}
	_, err = e.Query(sql).Bind(args...).Exec(ctx)
	return err
}

// --- Transaction control ---
//
// Lifecycle calls log transport-level failures and return them as errors
// rather than panicking; Exec and Fetch propagate errors unchanged.
// Nested transactions are not supported; savepoints are a caller concern.

// Begin opens a transaction on the executor's connection.
func (e *Executor) Begin(ctx context.Context) error {
	if e.tx != nil {
		return errs.New(errs.ErrKindExecution, "transaction already open: nested transactions are not supported")
	}
	tx, err := e.conn.Begin(ctx)
	if err != nil {
		e.log.ErrorWith("begin transaction failed", err, nil)
		return err
	}
	e.tx = tx
	return nil
}

// Commit commits the open transaction.
func (e *Executor) Commit(ctx context.Context) error {
	if e.tx == nil {
		return errs.New(errs.ErrKindExecution, "no open transaction to commit")
	}
	err := e.tx.Commit(ctx)
	e.tx = nil
	if err != nil {
		e.log.ErrorWith("commit failed", err, nil)
		return err
	}
	return nil
}

// Rollback aborts the open transaction. Rolling back when no transaction
// is open is a no-op so deferred rollbacks stay cheap.
func (e *Executor) Rollback(ctx context.Context) error {
	if e.tx == nil {
		return nil
	}
	err := e.tx.Rollback(ctx)
	e.tx = nil
	if err != nil {
		e.log.ErrorWith("rollback failed", err, nil)
		return err
	}
	return nil
}

// InTransaction reports whether a transaction is currently open.
func (e *Executor) InTransaction() bool {
	return e.tx != nil
}

func (e *Executor) record(sql string, args []any, start time.Time) {
	d := time.Since(start)
	e.prof.Record(sql, args, d)
	if e.prof.Enabled() {
		e.log.QueryEvent(sql, args, d)
	}
}
