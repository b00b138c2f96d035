package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jpl-au/cmsdb/internal/config"
	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/jpl-au/cmsdb/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with an empty HOME and no
// CMS_* variables inherited from the host.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", filepath.Join(dir, "home"))
	for _, k := range config.ValidKeys() {
		t.Setenv(config.EnvName(k), "")
	}
	return dir
}

func TestDefaults(t *testing.T) {
	isolate(t)
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DatabaseType())
	assert.Equal(t, "./data/cms.db", cfg.SQLitePath())
	assert.Equal(t, "heuristic", cfg.Coercion())
	assert.Equal(t, 5*time.Second, cfg.BusyTimeout())
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI())
	assert.Equal(t, "cms", cfg.MongoDatabase())
	assert.Equal(t, uint64(10), cfg.MaxPoolSize())
	assert.Equal(t, 5*time.Second, cfg.ServerSelectionTimeout())
	assert.Equal(t, 45*time.Second, cfg.SocketTimeout())
	assert.Equal(t, 3, cfg.RetryAttempts())
	assert.Equal(t, time.Second, cfg.RetryDelay())
	assert.Equal(t, "info", cfg.LogLevel())
	assert.Equal(t, "console", cfg.LogFormat())
	assert.Equal(t, config.ScopeGlobal, cfg.Scope())
}

func TestSetGet(t *testing.T) {
	cfg := &config.Config{}
	tests := []struct {
		key, value, want string
	}{
		{"database.type", "mongodb", "mongodb"},
		{"sqlite.path", "/var/lib/cms.db", "/var/lib/cms.db"},
		{"sqlite.busy_timeout", "10s", "10s"},
		{"sqlite.coercion", "schema", "schema"},
		{"mongo.max_pool_size", "50", "50"},
		{"mongo.socket_timeout", "1w", "1w"},
		{"retry.attempts", "5", "5"},
		{"retry.delay", "250ms", "250ms"},
		{"log.level", "debug", "debug"},
		{"log.format", "json", "json"},
		{"serve.addr", "127.0.0.1:8080", "127.0.0.1:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.False(t, cfg.IsSet(tt.key))
			require.NoError(t, cfg.Set(tt.key, tt.value))
			got, err := cfg.Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, cfg.IsSet(tt.key))
		})
	}
	require.NoError(t, cfg.Validate())
}

func TestSet_Invalid(t *testing.T) {
	cfg := &config.Config{}
	tests := []struct {
		key, value string
	}{
		{"database.type", "postgres"},
		{"sqlite.coercion", "magic"},
		{"mongo.max_pool_size", "0"},
		{"mongo.max_pool_size", "lots"},
		{"retry.attempts", "0"},
		{"retry.delay", "soon"},
		{"log.level", "loud"},
		{"log.format", "xml"},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, cfg.Set(tt.key, tt.value), config.ErrInvalidValue, tt.key)
	}
	assert.ErrorIs(t, cfg.Set("nope", "x"), config.ErrUnknownKey)
	_, err := cfg.Get("nope")
	assert.ErrorIs(t, err, config.ErrUnknownKey)
}

func TestSaveLoad_Local(t *testing.T) {
	dir := isolate(t)

	cfg := &config.Config{}
	require.NoError(t, cfg.Set("sqlite.path", "site.db"))
	require.NoError(t, cfg.Set("retry.attempts", "4"))
	require.NoError(t, cfg.SaveScope(config.ScopeLocal))

	info, err := os.Stat(filepath.Join(dir, ".cmsdb", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.ScopeLocal, loaded.Scope())
	assert.Equal(t, "site.db", loaded.SQLitePath())
	assert.Equal(t, 4, loaded.RetryAttempts())
}

func TestLoad_Malformed(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".cmsdb"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cmsdb", "config.yaml"), []byte("database: [\n"), 0644))

	_, err := config.Load()
	assert.ErrorContains(t, err, "malformed config file")
}

func TestLoad_InvalidValue(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".cmsdb"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cmsdb", "config.yaml"),
		[]byte("retry:\n  attempts: 0\n"), 0644))

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrInvalidValue)
}

func TestApplyEnv(t *testing.T) {
	isolate(t)
	t.Setenv("CMS_DB_TYPE", "mongo")
	t.Setenv("CMS_MONGO_URI", "mongodb://db.internal:27017")
	t.Setenv("CMS_MONGO_DB", "site")
	t.Setenv("CMS_SQLITE_PATH", "/tmp/env.db")
	t.Setenv("CMS_LOG_LEVEL", "warn")
	t.Setenv("CMS_RETRY_ATTEMPTS", "2")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.DatabaseType())
	assert.Equal(t, "mongodb://db.internal:27017", cfg.MongoURI())
	assert.Equal(t, "site", cfg.MongoDatabase())
	assert.Equal(t, "/tmp/env.db", cfg.SQLitePath())
	assert.Equal(t, "warn", cfg.LogLevel())
	assert.Equal(t, 2, cfg.RetryAttempts())
}

func TestApplyEnv_DotEnvFile(t *testing.T) {
	dir := isolate(t)
	// godotenv does not override variables that exist, even when empty.
	require.NoError(t, os.Unsetenv("CMS_SQLITE_PATH"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CMS_SQLITE_PATH=from-dotenv.db\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv("CMS_SQLITE_PATH") })

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.SQLitePath())
}

func TestApplyEnv_Invalid(t *testing.T) {
	isolate(t)
	t.Setenv("CMS_DB_TYPE", "oracle")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrInvalidValue)
}

func TestDatabaseConfig(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, cfg.Set("sqlite.path", "x.db"))
	require.NoError(t, cfg.Set("retry.delay", "2s"))

	dc := cfg.DatabaseConfig()
	assert.Equal(t, store.BackendSQLite, dc.Backend)
	assert.Equal(t, "x.db", dc.SQLite.Path)
	assert.Equal(t, sqlite.CoercionHeuristic, dc.SQLite.Coercion)
	assert.Equal(t, 2*time.Second, dc.Retry.Delay)
	assert.Equal(t, 3, dc.Retry.Attempts)
	assert.Equal(t, "cms", dc.Mongo.Database)

	lo := cfg.LogOptions()
	assert.Equal(t, "info", lo.Level)
	assert.Equal(t, "console", lo.Format)
}

func TestRedacted(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, cfg.Set("mongo.uri", "mongodb://admin:s3cret@db:27017/cms"))

	r := cfg.Redacted()
	assert.NotContains(t, r["mongo.uri"], "s3cret")
	assert.Contains(t, r["mongo.uri"], "admin")
	assert.Len(t, r, len(config.ValidKeys()))
}
