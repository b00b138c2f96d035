// Package sqlite implements store.Handler on an embedded SQLite database.
//
// Each collection is a table of JSON blobs:
//
//	id         INTEGER PRIMARY KEY AUTOINCREMENT
//	data       TEXT NOT NULL
//	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
//	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
//
// Document queries are emulated with json_extract. The integer row id is
// exposed as the string _id. Tables are created on first use.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jpl-au/cmsdb/internal/store"
	"github.com/puzpuzpuz/xsync/v3"

	// Register sqlite driver
	_ "modernc.org/sqlite"
)

// DefaultPath is used when Options.Path is empty.
const DefaultPath = "./data/cms.db"

// DefaultBusyTimeout is how long a connection waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

// memoryPath opens a private in-memory database.
const memoryPath = ":memory:"

// Options configures a Handler.
type Options struct {
	// Path is the database file. ":memory:" opens a private in-memory
	// database on a single connection.
	Path string

	// BusyTimeout bounds waits on locks held by other connections.
	BusyTimeout time.Duration

	// Coercion selects how stored values are converted on read.
	Coercion Coercion

	// Schema declares field kinds per collection for CoercionSchema.
	Schema Schema
}

// Handler is the SQLite store.Handler.
type Handler struct {
	opts  Options
	coerc coercer

	mu     sync.RWMutex
	db     *sql.DB
	tables *xsync.MapOf[string, struct{}]
}

// Compile-time interface compliance.
var (
	_ store.Handler    = (*Handler)(nil)
	_ store.Maintainer = (*Handler)(nil)
	_ store.Shutdowner = (*Handler)(nil)
	_ store.Describer  = (*Handler)(nil)
)

// New validates opts and returns an unconnected handler.
func New(opts Options) (*Handler, error) {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}
	if opts.Coercion == "" {
		opts.Coercion = CoercionHeuristic
	}
	c, err := newCoercer(opts.Coercion, opts.Schema)
	if err != nil {
		return nil, err
	}
	return &Handler{
		opts:   opts,
		coerc:  c,
		tables: xsync.NewMapOf[string, struct{}](),
	}, nil
}

// Backend returns store.BackendSQLite.
func (h *Handler) Backend() string { return store.BackendSQLite }

// Path returns the database file path.
func (h *Handler) Path() string { return h.opts.Path }

// Describe reports the database location for status output.
func (h *Handler) Describe() map[string]string {
	return map[string]string{
		"path":     h.opts.Path,
		"coercion": string(h.opts.Coercion),
	}
}

// dsn builds the driver connection string. Pragmas are passed as _pragma
// parameters so every pooled connection gets them, not just the first.
func (h *Handler) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", h.opts.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(ON)")
	if h.opts.Path != memoryPath {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	return h.opts.Path + "?" + q.Encode()
}

// Connect opens the database, creating its directory when needed, and
// verifies it with SELECT 1.
func (h *Handler) Connect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db != nil {
		return nil
	}

	if h.opts.Path != memoryPath {
		if dir := filepath.Dir(h.opts.Path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", h.dsn())
	if err != nil {
		return fmt.Errorf("open database %s: %w", h.opts.Path, err)
	}
	if h.opts.Path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	var one int
	if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		db.Close()
		return explain(h.opts.Path, err)
	}

	h.db = db
	h.tables = xsync.NewMapOf[string, struct{}]()
	return nil
}

// explain adds guidance to the driver errors users most often hit.
func explain(path string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked"):
		return fmt.Errorf("database %s is locked by another process: %w", path, err)
	case strings.Contains(msg, "unable to open"):
		return fmt.Errorf("cannot open database %s (check the path and permissions): %w", path, err)
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "not a database"):
		return fmt.Errorf("database %s is corrupt or not a SQLite file: %w", path, err)
	}
	return fmt.Errorf("verify database %s: %w", path, err)
}

// Disconnect runs PRAGMA optimize and closes the database.
func (h *Handler) Disconnect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	_, _ = h.db.ExecContext(ctx, `PRAGMA optimize`)
	err := h.db.Close()
	h.db = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// IsConnected reports whether the database is open.
func (h *Handler) IsConnected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.db != nil
}

// Ping verifies the database still answers.
func (h *Handler) Ping(ctx context.Context) error {
	db, err := h.conn()
	if err != nil {
		return err
	}
	var one int
	if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// DB exposes the underlying connection for tests and maintenance tools.
func (h *Handler) DB() *sql.DB {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.db
}

func (h *Handler) conn() (*sql.DB, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, store.ErrNotConnected
	}
	return h.db, nil
}

// Tx runs fn within a transaction. If fn returns nil the transaction is
// committed, otherwise it is rolled back.
func (h *Handler) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := h.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// table sanitises coll, creates its table on first use and returns the
// quoted table name.
func (h *Handler) table(ctx context.Context, coll string) (*sql.DB, string, error) {
	name, err := store.SanitizeCollection(coll)
	if err != nil {
		return nil, "", err
	}
	db, err := h.conn()
	if err != nil {
		return nil, "", err
	}
	quoted := quoteIdent(name)

	h.mu.RLock()
	tables := h.tables
	h.mu.RUnlock()
	if _, ok := tables.Load(name); ok {
		return db, quoted, nil
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+quoted+` (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		data       TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return nil, "", fmt.Errorf("create table %s: %w", name, err)
	}
	tables.Store(name, struct{}{})
	return db, quoted, nil
}

// quoteIdent double-quotes a sanitised identifier.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

// isNoRows reports sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
