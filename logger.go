package subpic

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/subpic/internal/logging"
)

// LevelTrace is the level of per-segment parser diagnostics. It is below
// [slog.LevelDebug], so handlers must be configured for it explicitly.
const LevelTrace = logging.LevelTrace

// loggerPtr stores the package logger. Accessed atomically so that
// SetLogger can be called concurrently with running sessions.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(logging.Nop())
}

// SetLogger sets the logger used by sessions created without
// [WithLogger]. By default subpic produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used by subpic:
//   - [LevelTrace]: per-segment and per-packet parser diagnostics
//   - [slog.LevelDebug]: per-caption pipeline steps (crop, scale, colors)
//   - [slog.LevelInfo]: conversion summary
//   - [slog.LevelWarn]: recoverable problems (skipped or blanked captions)
//   - [slog.LevelError]: the error that stopped a conversion
//
// Example:
//
//	subpic.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelWarn,
//	})))
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(logging.OrNop(l))
}

// Logger returns the package logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
