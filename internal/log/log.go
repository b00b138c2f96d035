// Package log provides structured operation logging for cmsdb.
//
// Entries are written through a zap logger configured by [Open] and are
// also delivered to registered sinks, which is how metrics are collected.
// Before Open is called the logger is a no-op but sinks still receive
// entries.
//
// # Fluent API
//
// Use the fluent builder API to construct and write log entries:
//
//	log.Event("database", "find").
//		Collection(coll).
//		Detail("filter", filter).
//		Detail("count", len(docs)).
//		Write(err)
//
//	log.Event("cms:pages", "publish").
//		Collection("pages").
//		ID(id).
//		Write(err)
//
// The source names the layer the operation came from: "database" for the
// facade, "cms:{area}" for the actions layer, "cli:{command}" for CLI
// commands and "mcp:{tool}" for MCP tools.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Formats accepted by Options.Format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	global *zap.Logger
	mu     sync.Mutex
)

// Entry represents a single logged operation.
type Entry struct {
	Source     string // e.g. "database", "cli:find", "mcp:cms_find"
	Action     string // verb: find, create, update, connect, ...
	Collection string // collection the operation targets, if any
	ID         string // document id, if any

	Start time.Time // when Event() was called
	End   time.Time // when Write() was called

	Success bool           // whether the operation succeeded
	Error   string         // error message if failed
	Detail  map[string]any // additional operation-specific data
}

// Duration is the time between Event and Write.
func (e Entry) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Builder constructs a log entry using a fluent API.
// Create with [Event], chain methods to set fields, then call [Builder.Write]
// to write the entry.
type Builder struct {
	entry Entry
}

// Event creates a new log entry builder for an operation.
//
// The source identifies where the operation originated and the action
// describes what was performed. Timing starts here, so call Event before
// the operation when its duration matters.
func Event(source, action string) *Builder {
	return &Builder{
		entry: Entry{
			Source: source,
			Action: action,
			Start:  time.Now(),
		},
	}
}

// Collection sets the collection this operation affects.
func (b *Builder) Collection(name string) *Builder {
	b.entry.Collection = name
	return b
}

// ID sets the document id this operation affects.
func (b *Builder) ID(id string) *Builder {
	b.entry.ID = id
	return b
}

// Detail adds a key-value pair to the entry's detail map.
//
// Use for operation-specific data that doesn't fit standard fields:
// filters, patch keys, result counts. Can be called multiple times.
func (b *Builder) Detail(key string, value any) *Builder {
	if b.entry.Detail == nil {
		b.entry.Detail = make(map[string]any)
	}
	b.entry.Detail[key] = value
	return b
}

// Write logs the entry, deriving success or failure from err.
//
// Failures are logged at error level and successes at debug level.
//
//	docs, err := h.Find(ctx, coll, filter, opts)
//	log.Event("database", "find").Collection(coll).Write(err)
func (b *Builder) Write(err error) {
	b.entry.End = time.Now()
	b.entry.Success = err == nil
	if err != nil {
		b.entry.Error = err.Error()
	}
	Log(b.entry)
}

// Options configures the logger.
type Options struct {
	// Level is a zap level name: debug, info, warn or error.
	Level string
	// Format is FormatConsole or FormatJSON.
	Format string
	// Output defaults to stderr so command output on stdout stays clean.
	Output io.Writer
}

// ParseLevel converts a level name into a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(s))
}

// New builds a zap logger from opts.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		cfg.ConsoleSeparator = " | "
		enc = zapcore.NewConsoleEncoder(cfg)
	case FormatJSON:
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	default:
		return nil, fmt.Errorf("log format %q: must be %s or %s", opts.Format, FormatConsole, FormatJSON)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller()), nil
}

// Open initialises the global logger. Safe to call multiple times; later
// calls are no-ops until Close.
func Open(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return nil
	}
	l, err := New(opts)
	if err != nil {
		return err
	}
	global = l
	return nil
}

// L returns the global logger, or a no-op logger before Open.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// Log writes an entry and delivers it to every sink. Safe to call if the
// logger is not initialised.
func Log(e Entry) {
	mu.Lock()
	l := global
	mu.Unlock()

	if l != nil {
		write(l, e)
	}
	deliver(e)
}

func write(l *zap.Logger, e Entry) {
	fields := make([]zap.Field, 0, 6+len(e.Detail))
	fields = append(fields,
		zap.String("source", e.Source),
		zap.Duration("duration", e.Duration()),
	)
	if e.Collection != "" {
		fields = append(fields, zap.String("collection", e.Collection))
	}
	if e.ID != "" {
		fields = append(fields, zap.String("id", e.ID))
	}
	for k, v := range e.Detail {
		fields = append(fields, zap.Any(k, v))
	}

	l = l.WithOptions(zap.AddCallerSkip(2))
	if !e.Success {
		fields = append(fields, zap.String("error", e.Error))
		l.Error(e.Action, fields...)
		return
	}
	l.Debug(e.Action, fields...)
}

// Close flushes and releases the global logger.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		_ = global.Sync()
		global = nil
	}
}
