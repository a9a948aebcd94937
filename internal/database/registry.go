package database

import (
	"context"
	"sort"
	"sync"

	"github.com/sqlpane/sqlpane/internal/errs"
	"github.com/sqlpane/sqlpane/internal/logger"
)

// Registry is an explicit named-connection pool: the first caller for a
// name supplies a config and establishes the connection; later callers
// reuse the live handle. Closing by name is explicit and idempotent.
//
// Registry is safe for concurrent use. It is meant to be constructed once
// at startup and passed by handle; not held in package-level state.
type Registry struct {
	mu    sync.Mutex
	conns map[string]Conn
	log   *logger.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Global()
	}
	return &Registry{
		conns: make(map[string]Conn),
		log:   log,
	}
}

// Open returns the connection registered under name, establishing it from
// cfg on first use. When the name is already live, cfg is ignored and the
// existing handle is returned.
func (r *Registry) Open(ctx context.Context, name string, cfg *Config) (Conn, error) {
	if name == "" {
		return nil, errs.New(errs.ErrKindValidation, "connection name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[name]; ok {
		return conn, nil
	}
	if cfg == nil {
		return nil, errs.Newf(errs.ErrKindConnectionFailed,
			"connection %q is not open and no config was supplied", name)
	}

	conn, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r.conns[name] = conn
	r.log.With().Str("connection", name).Str("driver", string(cfg.Driver)).Logger().
		Info("database connection established")
	return conn, nil
}

// Get returns the live connection registered under name.
func (r *Registry) Get(name string) (Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindConnectionFailed, "unknown connection %q", name)
	}
	return conn, nil
}

// Close shuts down the named connection. Closing a name that is not open
// is a no-op, so Close is safe to call repeatedly.
func (r *Registry) Close(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[name]; ok {
		conn.Close()
		delete(r.conns, name)
		r.log.With().Str("connection", name).Logger().Info("database connection closed")
	}
}

// CloseAll shuts down every registered connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, conn := range r.conns {
		conn.Close()
		delete(r.conns, name)
	}
}

// Names returns the currently open connection names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
