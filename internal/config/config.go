// Package config loads the application configuration from YAML, with
// environment variables expanded so secrets stay out of the file.
package config

import (
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/sqlpane/sqlpane/internal/database"
	"github.com/sqlpane/sqlpane/internal/errs"
	"github.com/sqlpane/sqlpane/internal/filestore"
)

// Config is the root of the YAML file.
type Config struct {
	Server    Server              `yaml:"server"`
	Logger    Logger              `yaml:"logger"`
	Databases map[string]Database `yaml:"databases"`
	FileStore *FileStore          `yaml:"filestore"`
	Grids     []Grid              `yaml:"grids"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Logger configures structured logging.
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Database configures one named connection.
type Database struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"`

	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// FileStore configures the upload backend.
type FileStore struct {
	Provider   string   `yaml:"provider"`
	Endpoint   string   `yaml:"endpoint"`
	AccessKey  string   `yaml:"access_key"`
	SecretKey  string   `yaml:"secret_key"`
	UseSSL     bool     `yaml:"use_ssl"`
	Region     string   `yaml:"region"`
	Bucket     string   `yaml:"bucket"`
	MaxSize    int64    `yaml:"max_size"`
	Extensions []string `yaml:"extensions"`
}

// Grid declares one grid: which connection it runs on and the static
// parts of its configuration. Programmatic pieces (joins, conditions,
// callbacks, overrides) are wired in code on top of this.
type Grid struct {
	Name           string   `yaml:"name"`
	Connection     string   `yaml:"connection"`
	Table          string   `yaml:"table"`
	PrimaryKey     string   `yaml:"primary_key"`
	PerPage        int      `yaml:"per_page"`
	Columns        []Column `yaml:"columns"`
	Sortable       []string `yaml:"sortable"`
	InlineEditable []string `yaml:"inline_editable"`
}

// Column declares one configured grid column.
type Column struct {
	Expr  string `yaml:"expr"`
	Label string `yaml:"label"`
}

// Load reads path, expands $VAR references, parses the YAML, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindValidation, "failed to read config file", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindValidation, "failed to parse config file", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
}

func (c *Config) validate() error {
	if len(c.Databases) == 0 {
		return errs.New(errs.ErrKindValidation, "at least one database must be configured")
	}
	for name, db := range c.Databases {
		if db.Driver == "" {
			return errs.Newf(errs.ErrKindValidation, "database %q has no driver", name)
		}
	}
	seen := make(map[string]bool, len(c.Grids))
	for _, g := range c.Grids {
		if g.Name == "" {
			return errs.New(errs.ErrKindValidation, "every grid needs a name")
		}
		if seen[g.Name] {
			return errs.Newf(errs.ErrKindValidation, "duplicate grid name %q", g.Name)
		}
		seen[g.Name] = true
		if g.Table == "" {
			return errs.Newf(errs.ErrKindValidation, "grid %q has no table", g.Name)
		}
		if _, found := c.Databases[g.Connection]; !found {
			return errs.Newf(errs.ErrKindValidation,
				"grid %q references unknown connection %q", g.Name, g.Connection)
		}
	}
	return nil
}

// DatabaseConfig converts one named entry into the database package's
// config type.
func (d Database) DatabaseConfig() *database.Config {
	cfg := database.DefaultConfig(database.DriverName(d.Driver))
	cfg.Host = d.Host
	cfg.Port = d.Port
	cfg.User = d.User
	cfg.Password = d.Password
	cfg.Database = d.Database
	cfg.Charset = d.Charset
	cfg.SSLMode = d.SSLMode
	cfg.Path = d.Path
	if d.MaxConns > 0 {
		cfg.MaxConns = d.MaxConns
	}
	if d.MinConns > 0 {
		cfg.MinConns = d.MinConns
	}
	if d.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = d.MaxConnLifetime
	}
	if d.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = d.MaxConnIdleTime
	}
	if d.ConnectTimeout > 0 {
		cfg.ConnectTimeout = d.ConnectTimeout
	}
	if d.QueryTimeout > 0 {
		cfg.QueryTimeout = d.QueryTimeout
	}
	cfg.ApplyDefaults()
	return cfg
}

// StoreConfig converts the filestore entry. Returns nil when no
// filestore is configured.
func (c *Config) StoreConfig() *filestore.Config {
	if c.FileStore == nil {
		return nil
	}
	return &filestore.Config{
		Provider:          filestore.Provider(c.FileStore.Provider),
		Endpoint:          c.FileStore.Endpoint,
		AccessKey:         c.FileStore.AccessKey,
		SecretKey:         c.FileStore.SecretKey,
		UseSSL:            c.FileStore.UseSSL,
		Region:            c.FileStore.Region,
		Bucket:            c.FileStore.Bucket,
		MaxSize:           c.FileStore.MaxSize,
		AllowedExtensions: c.FileStore.Extensions,
	}
}
