// Package logging provides the slog plumbing shared by the codec packages.
//
// Libraries in this module never log through a global logger. Every reader,
// writer and session receives a *slog.Logger; a nil logger is replaced by
// a discarding one so that disabled logging costs no formatting.
package logging

import (
	"context"
	"log/slog"
)

// LevelTrace is more verbose than [slog.LevelDebug]. It is used for
// per-segment and per-packet parser diagnostics.
const LevelTrace = slog.Level(-8)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var nop = slog.New(nopHandler{})

// Nop returns a logger that discards all output.
func Nop() *slog.Logger { return nop }

// OrNop returns l, or the discarding logger if l is nil.
func OrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return nop
	}
	return l
}

// Trace logs msg at [LevelTrace].
func Trace(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}
