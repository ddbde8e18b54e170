package ioc

import (
	"io"
	"log/slog"
)

// Logger defines the interface for container logging.
// The container uses structured logging with key-value pairs
// so bean lifecycle output stays consistent and parseable.
//
// Every graph operation (definition registration, bean construction,
// property binding, affinity handoff, destruction, routine runs) is
// logged through this interface, so the embedding application controls
// how container logs appear.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Info("message", "key1", "value1", "key2", "value2")
//
// *slog.Logger satisfies the interface directly:
//
//	ctx, err := ioc.NewApplicationContext(types, slog.New(slog.NewTextHandler(os.Stdout, nil)))
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	// Used for refresh/close milestones and completed beans.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	// Used for failed builds, failed destroy hooks and failed routines.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	// Used for conditions such as evicted dependents or dropped routines.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	// Used for per-state transitions and reference resolution.
	Debug(msg string, args ...any)
}

// nopLogger returns a logger that discards everything.
func nopLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
