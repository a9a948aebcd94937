// Package database is the driver-agnostic data access layer: connection
// configuration, the named connection registry, and the statement executor.
// All layers above this package talk only to these interfaces; they never
// import the postgres, mysql, or sqlite packages directly.
package database

import (
	"context"
	"sort"
	"sync"

	"github.com/sqlpane/sqlpane/internal/errs"
)

// ExecResult reports the outcome of a non-read statement.
type ExecResult struct {
	// LastInsertID is the generated key for INSERT statements, when the
	// driver can report one (see Dialect.SupportsLastInsertID).
	LastInsertID int64

	// RowsAffected is the number of rows changed by UPDATE/DELETE.
	// Zero is a valid, non-error outcome.
	RowsAffected int64
}

// Querier is the statement surface shared by connections and transactions.
type Querier interface {
	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Exec executes a non-read statement.
	Exec(ctx context.Context, sql string, args ...any) (ExecResult, error)
}

// Conn is the central contract for all database connections.
type Conn interface {
	Querier

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Begin opens a transaction. Nested transactions are not supported;
	// the executor rejects a second Begin before Commit/Rollback.
	Begin(ctx context.Context) (Tx, error)

	// Close releases all resources held by the connection pool.
	Close()

	// Dialect identifies the SQL flavor this connection speaks.
	Dialect() Dialect
}

// Tx is a connection-scoped transaction.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}

// OpenFunc creates a live connection from a validated Config.
// Driver packages register one in init().
type OpenFunc func(ctx context.Context, cfg *Config) (Conn, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[DriverName]OpenFunc)
)

// RegisterDriver makes a driver available under the given name.
// It follows the database/sql registration convention and panics on
// duplicate registration, which indicates a programming error.
func RegisterDriver(name DriverName, open OpenFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("database: RegisterDriver called twice for driver " + string(name))
	}
	drivers[name] = open
}

// Open establishes a connection for cfg using the registered driver.
// The config is validated and defaulted before the driver sees it.
func Open(ctx context.Context, cfg *Config) (Conn, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driversMu.RLock()
	open, ok := drivers[cfg.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, errs.Newf(errs.ErrKindConnectionFailed,
			"no driver registered for %q (forgotten import?)", cfg.Driver)
	}
	return open(ctx, cfg)
}

// RegisteredDrivers returns the names of all registered drivers, sorted.
func RegisteredDrivers() []DriverName {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]DriverName, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
