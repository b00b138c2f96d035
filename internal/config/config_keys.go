// config_keys.go provides key-value access to configuration settings.
//
// Separated from config.go to isolate the key enumeration and string-based
// get/set logic used by the config command, the MCP server and the
// environment overlay, where config is addressed by string keys
// (e.g., "sqlite.path").
//
// Pointers are used for optional numeric fields so "not set" (nil) and
// "explicitly set" stay distinct; defaults apply only to unset values.

package config

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/jpl-au/cmsdb/internal/database"
	"github.com/jpl-au/cmsdb/internal/duration"
	"github.com/jpl-au/cmsdb/internal/log"
)

// ValidKeys returns all valid configuration keys.
func ValidKeys() []string {
	return []string{
		"database.type",
		"sqlite.path", "sqlite.busy_timeout", "sqlite.coercion",
		"mongo.uri", "mongo.database", "mongo.max_pool_size",
		"mongo.server_selection_timeout", "mongo.socket_timeout",
		"retry.attempts", "retry.delay",
		"log.level", "log.format",
		"serve.addr",
	}
}

// IsValidKey returns true if the key is a valid configuration key.
func IsValidKey(key string) bool {
	return slices.Contains(ValidKeys(), key)
}

// Get returns the effective value of a configuration key as a string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "database.type":
		return c.DatabaseType(), nil
	case "sqlite.path":
		return c.SQLitePath(), nil
	case "sqlite.busy_timeout":
		return duration.Format(c.BusyTimeout()), nil
	case "sqlite.coercion":
		return c.Coercion(), nil
	case "mongo.uri":
		return c.MongoURI(), nil
	case "mongo.database":
		return c.MongoDatabase(), nil
	case "mongo.max_pool_size":
		return strconv.FormatUint(c.MaxPoolSize(), 10), nil
	case "mongo.server_selection_timeout":
		return duration.Format(c.ServerSelectionTimeout()), nil
	case "mongo.socket_timeout":
		return duration.Format(c.SocketTimeout()), nil
	case "retry.attempts":
		return strconv.Itoa(c.RetryAttempts()), nil
	case "retry.delay":
		return duration.Format(c.RetryDelay()), nil
	case "log.level":
		return c.LogLevel(), nil
	case "log.format":
		return c.LogFormat(), nil
	case "serve.addr":
		return c.ServeAddr(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set sets the value of a configuration key. Values are checked here so a
// bad value never reaches the file.
func (c *Config) Set(key, value string) error {
	switch key {
	case "database.type":
		if _, err := database.NormalizeBackend(value); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		c.Database.Type = value
	case "sqlite.path":
		c.SQLite.Path = value
	case "sqlite.coercion":
		if value != "heuristic" && value != "schema" {
			return fmt.Errorf("%w: sqlite.coercion must be heuristic or schema", ErrInvalidValue)
		}
		c.SQLite.Coercion = value
	case "mongo.uri":
		c.Mongo.URI = value
	case "mongo.database":
		c.Mongo.Database = value
	case "mongo.max_pool_size":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil || n < MinMaxPoolSize || n > MaxMaxPoolSize {
			return fmt.Errorf("%w: mongo.max_pool_size must be between %d and %d", ErrInvalidValue, MinMaxPoolSize, MaxMaxPoolSize)
		}
		c.Mongo.MaxPoolSize = &n
	case "retry.attempts":
		n, err := strconv.Atoi(value)
		if err != nil || n < MinAttempts || n > MaxAttempts {
			return fmt.Errorf("%w: retry.attempts must be between %d and %d", ErrInvalidValue, MinAttempts, MaxAttempts)
		}
		c.Retry.Attempts = &n
	case "sqlite.busy_timeout", "mongo.server_selection_timeout", "mongo.socket_timeout", "retry.delay":
		if _, err := duration.Parse(value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}
		*c.durationField(key) = value
	case "log.level":
		if _, err := log.ParseLevel(value); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		c.Log.Level = value
	case "log.format":
		if value != log.FormatConsole && value != log.FormatJSON {
			return fmt.Errorf("%w: log.format must be console or json", ErrInvalidValue)
		}
		c.Log.Format = value
	case "serve.addr":
		c.Serve.Addr = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func (c *Config) durationField(key string) *string {
	switch key {
	case "sqlite.busy_timeout":
		return &c.SQLite.BusyTimeout
	case "mongo.server_selection_timeout":
		return &c.Mongo.ServerSelectionTimeout
	case "mongo.socket_timeout":
		return &c.Mongo.SocketTimeout
	default:
		return &c.Retry.Delay
	}
}

// All returns all effective configuration values as a map.
func (c *Config) All() map[string]string {
	out := make(map[string]string, len(ValidKeys()))
	for _, k := range ValidKeys() {
		out[k], _ = c.Get(k)
	}
	return out
}

// IsSet returns true if the key has an explicit value (not just defaults).
func (c *Config) IsSet(key string) bool {
	switch key {
	case "database.type":
		return c.Database.Type != ""
	case "sqlite.path":
		return c.SQLite.Path != ""
	case "sqlite.coercion":
		return c.SQLite.Coercion != ""
	case "mongo.uri":
		return c.Mongo.URI != ""
	case "mongo.database":
		return c.Mongo.Database != ""
	case "mongo.max_pool_size":
		return c.Mongo.MaxPoolSize != nil
	case "retry.attempts":
		return c.Retry.Attempts != nil
	case "sqlite.busy_timeout", "mongo.server_selection_timeout", "mongo.socket_timeout", "retry.delay":
		return *c.durationField(key) != ""
	case "log.level":
		return c.Log.Level != ""
	case "log.format":
		return c.Log.Format != ""
	case "serve.addr":
		return c.Serve.Addr != ""
	default:
		return false
	}
}

// Redacted returns All with credentials in mongo.uri masked, for display.
func (c *Config) Redacted() map[string]string {
	all := c.All()
	all["mongo.uri"] = redactURI(all["mongo.uri"])
	return all
}
