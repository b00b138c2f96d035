package store

import "errors"

// Sentinel errors shared by all backends. Callers test with errors.Is; the
// concrete error usually wraps one of these with operation context.
var (
	// ErrConnection is returned when a backend cannot be reached after the
	// retry budget is exhausted.
	ErrConnection = errors.New("database connection failed")

	// ErrConfiguration is returned for an unknown backend or unusable
	// connection settings. It is never retried.
	ErrConfiguration = errors.New("invalid database configuration")

	// ErrValidation is returned for malformed collections, ids, fields,
	// operators or values.
	ErrValidation = errors.New("invalid input")

	// ErrNotConnected is returned when a handler method runs before Connect.
	ErrNotConnected = errors.New("handler not connected")

	// ErrUnsupported is returned when the active backend lacks an optional
	// capability such as Backup.
	ErrUnsupported = errors.New("operation not supported by backend")
)
