// Package config provides reading and writing of cmsdb configuration.
// Supports both global (~/.cmsdb/config.yaml) and local (.cmsdb/config.yaml).
// Reading: uses local if it exists, otherwise global, then applies CMS_*
// environment variables (including those from .env and .env.local).
// Writing: defaults to global, use --local for local.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jpl-au/cmsdb/internal/database"
	"github.com/jpl-au/cmsdb/internal/duration"
	"github.com/jpl-au/cmsdb/internal/log"
	"github.com/jpl-au/cmsdb/internal/store/mongo"
	"github.com/jpl-au/cmsdb/internal/store/sqlite"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoConfigPath is returned when the config path cannot be determined.
	ErrNoConfigPath = errors.New("cannot determine config path")
	// ErrUnknownKey is returned when getting/setting an unknown config key.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned when a config value is invalid.
	ErrInvalidValue = errors.New("invalid config value")
)

// Scope represents the configuration scope (global or local).
type Scope int

const (
	// ScopeGlobal is user-wide config in ~/.cmsdb/config.yaml (default)
	ScopeGlobal Scope = iota
	// ScopeLocal is project-specific config in .cmsdb/config.yaml
	ScopeLocal
)

// Dir is the directory name used for both scopes.
const Dir = ".cmsdb"

// Database selects the backend.
type Database struct {
	Type string `yaml:"type,omitempty"`
}

// SQLite holds embedded backend options.
type SQLite struct {
	Path        string `yaml:"path,omitempty"`
	BusyTimeout string `yaml:"busy_timeout,omitempty"`
	Coercion    string `yaml:"coercion,omitempty"`
}

// Mongo holds document-store backend options.
type Mongo struct {
	URI                    string  `yaml:"uri,omitempty"`
	Database               string  `yaml:"database,omitempty"`
	MaxPoolSize            *uint64 `yaml:"max_pool_size,omitempty"`
	ServerSelectionTimeout string  `yaml:"server_selection_timeout,omitempty"`
	SocketTimeout          string  `yaml:"socket_timeout,omitempty"`
}

// Retry holds the connection retry policy.
type Retry struct {
	Attempts *int   `yaml:"attempts,omitempty"`
	Delay    string `yaml:"delay,omitempty"`
}

// Log holds logger options.
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Serve holds options for cmsdb serve.
type Serve struct {
	Addr string `yaml:"addr,omitempty"`
}

// Defaults applied when not configured.
const (
	DefaultType        = "sqlite"
	DefaultSQLitePath  = sqlite.DefaultPath
	DefaultCoercion    = string(sqlite.CoercionHeuristic)
	DefaultMongoURI    = mongo.DefaultURI
	DefaultMongoDB     = mongo.DefaultDatabase
	DefaultMaxPoolSize = mongo.DefaultMaxPoolSize
	DefaultAttempts    = database.DefaultRetryAttempts
	DefaultLogLevel    = "info"
	DefaultLogFormat   = log.FormatConsole
	DefaultServeAddr   = ":9090"
)

// Validation bounds for configuration values.
const (
	MinAttempts    = 1
	MaxAttempts    = 100
	MinMaxPoolSize = 1
	MaxMaxPoolSize = 10000
)

// Config contains configuration for cmsdb.
type Config struct {
	Database Database `yaml:"database,omitempty"`
	SQLite   SQLite   `yaml:"sqlite,omitempty"`
	Mongo    Mongo    `yaml:"mongo,omitempty"`
	Retry    Retry    `yaml:"retry,omitempty"`
	Log      Log      `yaml:"log,omitempty"`
	Serve    Serve    `yaml:"serve,omitempty"`

	// path is the file this config was loaded from (for Save)
	path  string
	scope Scope
}

// Validate checks that all configured values are within acceptable bounds.
// Returns nil if all values are valid or not set (defaults will be used).
func (c *Config) Validate() error {
	if _, err := database.NormalizeBackend(c.Database.Type); err != nil {
		return fmt.Errorf("%w: database.type: %w", ErrInvalidValue, err)
	}
	switch c.SQLite.Coercion {
	case "", string(sqlite.CoercionHeuristic), string(sqlite.CoercionSchema):
	default:
		return fmt.Errorf("%w: sqlite.coercion must be heuristic or schema, got %q",
			ErrInvalidValue, c.SQLite.Coercion)
	}
	if c.Mongo.MaxPoolSize != nil {
		v := *c.Mongo.MaxPoolSize
		if v < MinMaxPoolSize || v > MaxMaxPoolSize {
			return fmt.Errorf("%w: mongo.max_pool_size must be between %d and %d, got %d",
				ErrInvalidValue, MinMaxPoolSize, MaxMaxPoolSize, v)
		}
	}
	if c.Retry.Attempts != nil {
		v := *c.Retry.Attempts
		if v < MinAttempts || v > MaxAttempts {
			return fmt.Errorf("%w: retry.attempts must be between %d and %d, got %d",
				ErrInvalidValue, MinAttempts, MaxAttempts, v)
		}
	}
	durations := map[string]string{
		"sqlite.busy_timeout":            c.SQLite.BusyTimeout,
		"mongo.server_selection_timeout": c.Mongo.ServerSelectionTimeout,
		"mongo.socket_timeout":           c.Mongo.SocketTimeout,
		"retry.delay":                    c.Retry.Delay,
	}
	for key, v := range durations {
		if v == "" {
			continue
		}
		if _, err := duration.Parse(v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("%w: log.level: %w", ErrInvalidValue, err)
		}
	}
	switch c.Log.Format {
	case "", log.FormatConsole, log.FormatJSON:
	default:
		return fmt.Errorf("%w: log.format must be console or json, got %q", ErrInvalidValue, c.Log.Format)
	}
	return nil
}

// DatabaseType returns the backend selector (defaults to sqlite).
func (c *Config) DatabaseType() string {
	if c.Database.Type == "" {
		return DefaultType
	}
	return c.Database.Type
}

// SQLitePath returns the database file (defaults to ./data/cms.db).
func (c *Config) SQLitePath() string {
	if c.SQLite.Path == "" {
		return DefaultSQLitePath
	}
	return c.SQLite.Path
}

// Coercion returns the SQLite read coercion mode (defaults to heuristic).
func (c *Config) Coercion() string {
	if c.SQLite.Coercion == "" {
		return DefaultCoercion
	}
	return c.SQLite.Coercion
}

// BusyTimeout returns the SQLite lock wait (defaults to 5s).
func (c *Config) BusyTimeout() time.Duration {
	return durationOr(c.SQLite.BusyTimeout, sqlite.DefaultBusyTimeout)
}

// MongoURI returns the connection string (defaults to mongodb://localhost:27017).
func (c *Config) MongoURI() string {
	if c.Mongo.URI == "" {
		return DefaultMongoURI
	}
	return c.Mongo.URI
}

// MongoDatabase returns the database name (defaults to cms).
func (c *Config) MongoDatabase() string {
	if c.Mongo.Database == "" {
		return DefaultMongoDB
	}
	return c.Mongo.Database
}

// MaxPoolSize returns the Mongo connection pool size (defaults to 10).
func (c *Config) MaxPoolSize() uint64 {
	if c.Mongo.MaxPoolSize == nil {
		return DefaultMaxPoolSize
	}
	return *c.Mongo.MaxPoolSize
}

// ServerSelectionTimeout returns the Mongo server selection timeout
// (defaults to 5s).
func (c *Config) ServerSelectionTimeout() time.Duration {
	return durationOr(c.Mongo.ServerSelectionTimeout, mongo.DefaultServerSelectionTimeout)
}

// SocketTimeout returns the Mongo socket timeout (defaults to 45s).
func (c *Config) SocketTimeout() time.Duration {
	return durationOr(c.Mongo.SocketTimeout, mongo.DefaultSocketTimeout)
}

// RetryAttempts returns the number of connection attempts (defaults to 3).
func (c *Config) RetryAttempts() int {
	if c.Retry.Attempts == nil {
		return DefaultAttempts
	}
	return *c.Retry.Attempts
}

// RetryDelay returns the wait between connection attempts (defaults to 1s).
func (c *Config) RetryDelay() time.Duration {
	return durationOr(c.Retry.Delay, database.DefaultRetryDelay)
}

// LogLevel returns the log level (defaults to info).
func (c *Config) LogLevel() string {
	if c.Log.Level == "" {
		return DefaultLogLevel
	}
	return c.Log.Level
}

// LogFormat returns the log format (defaults to console).
func (c *Config) LogFormat() string {
	if c.Log.Format == "" {
		return DefaultLogFormat
	}
	return c.Log.Format
}

// ServeAddr returns the listen address for cmsdb serve (defaults to :9090).
func (c *Config) ServeAddr() string {
	if c.Serve.Addr == "" {
		return DefaultServeAddr
	}
	return c.Serve.Addr
}

// DatabaseConfig converts the settings into a database.Config.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Backend: c.DatabaseType(),
		SQLite: sqlite.Options{
			Path:        c.SQLitePath(),
			BusyTimeout: c.BusyTimeout(),
			Coercion:    sqlite.Coercion(c.Coercion()),
		},
		Mongo: mongo.Options{
			URI:                    c.MongoURI(),
			Database:               c.MongoDatabase(),
			MaxPoolSize:            c.MaxPoolSize(),
			ServerSelectionTimeout: c.ServerSelectionTimeout(),
			SocketTimeout:          c.SocketTimeout(),
		},
		Retry: database.Retry{
			Attempts: c.RetryAttempts(),
			Delay:    c.RetryDelay(),
		},
	}
}

// LogOptions converts the settings into log.Options. Output is left to
// the caller.
func (c *Config) LogOptions() log.Options {
	return log.Options{Level: c.LogLevel(), Format: c.LogFormat()}
}

// durationOr parses s, falling back to def when unset. Validate has
// already rejected malformed values.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := duration.Parse(s)
	if err != nil {
		return def
	}
	return d
}

// LocalPath returns the path to the local (project) config file.
func LocalPath() string {
	return filepath.Join(Dir, "config.yaml")
}

// GlobalPath returns the path to the global (user) config file: ~/.cmsdb/config.yaml
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, Dir, "config.yaml")
}

// Load reads configuration: uses local if it exists, otherwise global.
// Environment overrides are applied on top and the result is validated.
func Load() (*Config, error) {
	scope := ScopeGlobal
	if _, err := os.Stat(LocalPath()); err == nil {
		scope = ScopeLocal
	}
	cfg, err := LoadScope(scope)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadScope reads configuration from a specific scope without environment
// overrides. The config command uses it so Save writes only file values.
func LoadScope(scope Scope) (*Config, error) {
	path := pathForScope(scope)
	if path == "" {
		return &Config{scope: scope}, nil
	}
	return loadFile(path, scope)
}

func loadFile(path string, scope Scope) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{path: path, scope: scope}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("malformed config file %s: %w\n\nTo fix: edit the file to correct the YAML syntax, or delete it to use defaults", path, err)
	}
	cfg.path = path
	cfg.scope = scope

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Scope returns which scope this config was loaded from.
func (c *Config) Scope() Scope {
	return c.scope
}

// Save writes the configuration to its original location.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = pathForScope(c.scope)
	}
	if c.path == "" {
		return ErrNoConfigPath
	}
	return c.saveToPath(c.path)
}

// SaveScope writes the configuration to the specified scope.
func (c *Config) SaveScope(scope Scope) error {
	path := pathForScope(scope)
	if path == "" {
		return ErrNoConfigPath
	}
	return c.saveToPath(path)
}

// saveToPath writes configuration to a specific filesystem path.
// Creates parent directories as needed with mode 0755. The file may hold
// a Mongo URI with credentials, so it is written 0600.
func (c *Config) saveToPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// pathForScope returns the filesystem path for a given scope.
func pathForScope(scope Scope) string {
	switch scope {
	case ScopeLocal:
		return LocalPath()
	case ScopeGlobal:
		return GlobalPath()
	default:
		return ""
	}
}
