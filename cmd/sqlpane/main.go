// Command sqlpane serves configured data grids over HTTP. It opens every
// configured database connection, introspects each grid's table, and
// exposes the grid action API.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sqlpane/sqlpane/internal/config"
	"github.com/sqlpane/sqlpane/internal/database"
	_ "github.com/sqlpane/sqlpane/internal/database/mysql"
	_ "github.com/sqlpane/sqlpane/internal/database/postgres"
	_ "github.com/sqlpane/sqlpane/internal/database/sqlite"
	"github.com/sqlpane/sqlpane/internal/filestore"
	miniostore "github.com/sqlpane/sqlpane/internal/filestore/minio"
	"github.com/sqlpane/sqlpane/internal/grid"
	"github.com/sqlpane/sqlpane/internal/logger"
	"github.com/sqlpane/sqlpane/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Global().Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	})
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := database.NewRegistry(log)
	defer registry.CloseAll()

	for name, db := range cfg.Databases {
		if _, err := registry.Open(ctx, name, db.DatabaseConfig()); err != nil {
			return err
		}
		log.InfoWith("database connected", map[string]any{
			"name": name, "driver": db.Driver,
		})
	}

	var store filestore.Store
	if sc := cfg.StoreConfig(); sc != nil {
		s, err := miniostore.New(ctx, sc)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
		log.InfoWith("filestore connected", map[string]any{
			"endpoint": sc.Endpoint, "bucket": sc.Bucket,
		})
	}

	srv := server.New(log)
	for _, g := range cfg.Grids {
		conn, err := registry.Get(g.Connection)
		if err != nil {
			return err
		}
		engine, err := buildEngine(ctx, g, conn, log, store)
		if err != nil {
			return err
		}
		srv.Register(g.Name, engine)
		log.InfoWith("grid registered", map[string]any{
			"grid": g.Name, "table": g.Table,
		})
	}

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildEngine turns one declarative grid entry into a running engine.
func buildEngine(ctx context.Context, g config.Grid, conn database.Conn, log *logger.Logger, store filestore.Store) (*grid.Engine, error) {
	b := grid.NewBuilder(g.Table)

	if len(g.Columns) > 0 {
		cols := make([]grid.ColumnSpec, len(g.Columns))
		for i, c := range g.Columns {
			cols[i] = grid.ColumnSpec{Expr: c.Expr, Label: c.Label}
		}
		b.Columns(cols...)
	}
	if g.PrimaryKey != "" {
		b.PrimaryKey(g.PrimaryKey)
	}
	if g.PerPage > 0 {
		b.PerPage(g.PerPage, nil, false)
	}
	if len(g.Sortable) > 0 {
		b.Sortable(g.Sortable...)
	}
	if len(g.InlineEditable) > 0 {
		b.InlineEditable(g.InlineEditable...)
	}

	cfg, err := b.Build(ctx, conn)
	if err != nil {
		return nil, err
	}

	engine := grid.NewEngine(cfg, conn, log)
	if store != nil {
		engine.WithFileStore(store)
	}
	return engine, nil
}
