package database

import (
	"fmt"
	"time"

	"github.com/sqlpane/sqlpane/internal/errs"
)

// DriverName identifies the database engine.
type DriverName string

const (
	DriverPostgres DriverName = "postgres"
	DriverMySQL    DriverName = "mysql"
	DriverSQLite   DriverName = "sqlite"
)

// Embedded reports whether the driver is a file-backed engine that
// needs no server credentials.
func (d DriverName) Embedded() bool {
	return d == DriverSQLite
}

// Config holds all settings needed to connect to and pool a database.
type Config struct {
	// Driver is the database engine (e.g. DriverPostgres).
	Driver DriverName

	Host     string
	Port     int
	User     string
	Password string
	Database string
	Charset  string // mysql only; applied post-connect
	SSLMode  string // postgres only

	// Path is the database file for embedded drivers (sqlite).
	Path string

	// Pool tuning
	MaxConns        int32         // maximum number of connections in the pool
	MinConns        int32         // minimum number of idle connections kept alive
	MaxConnLifetime time.Duration // maximum time a connection may be reused
	MaxConnIdleTime time.Duration // maximum time a connection may sit idle

	// Timeouts
	ConnectTimeout time.Duration // time limit for establishing a new connection
	QueryTimeout   time.Duration // default per-query deadline (applied by callers)
}

// DefaultConfig returns production-ready pool settings for the given driver.
func DefaultConfig(driver DriverName) *Config {
	cfg := &Config{
		Driver:          driver,
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		QueryTimeout:    30 * time.Second,
	}
	cfg.ApplyDefaults()
	return cfg
}

// driverDefaults holds per-driver connection defaults, applied when unset.
var driverDefaults = map[DriverName]struct {
	port    int
	charset string
	sslMode string
}{
	DriverPostgres: {port: 5432, sslMode: "disable"},
	DriverMySQL:    {port: 3306, charset: "utf8mb4"},
	DriverSQLite:   {},
}

// ApplyDefaults fills driver-specific defaults (port, charset, ssl mode)
// for fields the caller left unset.
func (c *Config) ApplyDefaults() {
	def, ok := driverDefaults[c.Driver]
	if !ok {
		return
	}
	if c.Port == 0 {
		c.Port = def.port
	}
	if c.Charset == "" {
		c.Charset = def.charset
	}
	if c.SSLMode == "" {
		c.SSLMode = def.sslMode
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// Validate checks that the config carries everything the driver requires.
// Server-backed drivers need host, credentials, and a database name;
// embedded drivers need only a file path.
func (c *Config) Validate() error {
	switch {
	case c.Driver == "":
		return errs.New(errs.ErrKindConnectionFailed, "database driver is required")
	case c.Driver.Embedded():
		if c.Path == "" {
			return errs.New(errs.ErrKindConnectionFailed, "sqlite requires a database file path")
		}
		return nil
	case c.Host == "":
		return errs.Newf(errs.ErrKindConnectionFailed, "%s requires a host", c.Driver)
	case c.User == "":
		return errs.Newf(errs.ErrKindConnectionFailed, "%s requires a user", c.Driver)
	case c.Database == "":
		return errs.Newf(errs.ErrKindConnectionFailed, "%s requires a database name", c.Driver)
	}
	return nil
}

// DSN builds the driver-specific connection string.
func (c *Config) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
		)
	case DriverMySQL:
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=%s",
			c.User, c.Password, c.Host, c.Port, c.Database, c.Charset,
		)
	case DriverSQLite:
		return c.Path
	default:
		return ""
	}
}
