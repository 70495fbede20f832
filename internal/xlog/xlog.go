// Package xlog is the module's single structured-logging surface,
// modeled on the discard-by-default logger every tier reaches for
// instead of rolling its own (spec.md §9 "Ambient Stack — Logging").
package xlog

import (
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.DiscardHandler))
}

// SetLogger replaces the package-level logger. Callers embedding this
// module into a larger process call this once at startup to route
// invariant-violation reports into their own logging pipeline; the
// zero value discards everything.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	logger.Store(l)
}

// InvariantError is the panic value Fatal raises after logging, so a
// caller running the allocator inside a supervised goroutine can
// recover and distinguish an invariant violation from any other panic
// (spec.md §7 kind 3, "internal invariant violation").
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return e.Msg }

// Fatal logs msg at Error level with args as structured key/value pairs,
// then panics with an *InvariantError. Every internal invariant check in
// this module (span accounting, free-list structure, span-index
// consistency) that detects corruption calls Fatal rather than returning
// an error, per spec.md §7 kind 3: these conditions indicate a bug in
// the allocator itself, not a caller mistake, and continuing to run
// risks silent memory corruption.
func Fatal(msg string, args ...any) {
	logger.Load().Error(msg, args...)
	panic(&InvariantError{Msg: msg})
}

// Warn logs msg at Warn level, for conditions worth surfacing that do not
// indicate corruption. None of the allocator's own paths call it: an OS
// allocation failure, for one, surfaces only as ok=false.
func Warn(msg string, args ...any) {
	logger.Load().Warn(msg, args...)
}

// Default returns the currently installed logger, mirroring
// log/slog.Default for callers that want to derive a child logger with
// With().
func Default() *slog.Logger {
	return logger.Load()
}
