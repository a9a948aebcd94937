// Package mysql is the MySQL implementation of database.Conn, backed by
// database/sql. It is safe for concurrent use by multiple goroutines.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/sqlpane/sqlpane/internal/database"
	"github.com/sqlpane/sqlpane/internal/errs"
)

func init() {
	database.RegisterDriver(database.DriverMySQL, open)
}

// setupStatements are run once after the pool is established.
var setupStatements = func(cfg *database.Config) []string {
	return []string{
		fmt.Sprintf("SET NAMES %s COLLATE %s_unicode_ci", cfg.Charset, cfg.Charset),
		"SET SESSION sql_mode = 'STRICT_TRANS_TABLES,NO_ZERO_DATE,ERROR_FOR_DIVISION_BY_ZERO'",
	}
}

// Conn is a MySQL connection pool.
type Conn struct {
	db *sql.DB
}

func open(ctx context.Context, cfg *database.Config) (database.Conn, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	c := &Conn{db: db}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := c.Ping(pingCtx); err != nil {
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
	return database.DialectMySQL
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
	// Both values are best-effort; the mysql driver supports them.
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

// mapError translates go-sql-driver/mysql errors into *errs.Error.
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

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case 1044, 1045, 1046, 1049:
		return errs.ErrKindConnectionFailed
	case 1040, 1203:
		return errs.ErrKindConnectionFailed
	case 1054, 1064, 1146:
		return errs.ErrKindExecution
	default:
		return errs.ErrKindExecution
	}
}
