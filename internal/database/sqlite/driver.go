// Package sqlite is the embedded SQLite implementation of database.Conn,
// backed by database/sql and mattn/go-sqlite3. Being file-backed it needs
// no server credentials; only a database path ( ":memory:" is accepted
// for tests).
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/sqlpane/sqlpane/internal/database"
	"github.com/sqlpane/sqlpane/internal/errs"
)

func init() {
	database.RegisterDriver(database.DriverSQLite, open)
}

// setupStatements are run once after the database file is opened.
// WAL keeps readers unblocked during writes; the busy timeout covers
// short write contention instead of failing immediately.
var setupStatements = func(cfg *database.Config) []string {
	return []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
}

// Conn is an embedded SQLite database handle.
type Conn struct {
	db *sql.DB
}

func open(ctx context.Context, cfg *database.Config) (database.Conn, error) {
	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid database path", err)
	}

	// SQLite serializes writes; a single connection avoids database-locked
	// errors under concurrent access from the pool.
	db.SetMaxOpenConns(1)

	c := &Conn{db: db}

	if err := c.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	for _, stmt := range setupStatements(cfg) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, mapError(err, "connection setup failed")
		}
	}

	return c, nil
}

// --- database.Conn implementation ---

func (c *Conn) Dialect() database.Dialect {
	return database.DialectSQLite
}

func (c *Conn) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (c *Conn) Close() {
	_ = c.db.Close()
}

func (c *Conn) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &sqlRows{rows: rows}, nil
}

func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &sqlRow{row: c.db.QueryRowContext(ctx, query, args...)}
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) (database.ExecResult, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return database.ExecResult{}, mapError(err, "statement failed")
	}
	return execResult(res), nil
}

func (c *Conn) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &sqlTx{tx: tx}, nil
}

// --- transaction wrapper ---

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &sqlRows{rows: rows}, nil
}

func (t *sqlTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &sqlRow{row: t.tx.QueryRowContext(ctx, query, args...)}
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (database.ExecResult, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return database.ExecResult{}, mapError(err, "statement failed")
	}
	return execResult(res), nil
}

func (t *sqlTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

func (t *sqlTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return mapError(err, "rollback failed")
	}
	return nil
}

// --- sql.DB type wrappers ---

func execResult(res sql.Result) database.ExecResult {
	id, _ := res.LastInsertId()
	n, _ := res.RowsAffected()
	return database.ExecResult{LastInsertID: id, RowsAffected: n}
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Close()                     { _ = r.rows.Close() }
func (r *sqlRows) Err() error                 { return r.rows.Err() }

type sqlRow struct {
	row *sql.Row
}

func (r *sqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

// --- error mapping ---

// mapError translates go-sqlite3 errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		kind := errs.ErrKindExecution
		switch sqliteErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrPerm, sqlite3.ErrAuth:
			kind = errs.ErrKindConnectionFailed
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			kind = errs.ErrKindTimeout
		}
		return errs.Wrap(kind, msg, err)
	}

	return errs.Wrap(errs.ErrKindExecution, msg, err)
}
