package pipeline

import (
	"log/slog"
	"sync/atomic"
)

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(slog.DiscardHandler))
}

// SetLogger installs the logger used by pipelines created afterwards and
// by the passes they own. By default nothing is logged; nil restores that.
//
// Levels:
//   - Debug: per-frame pass timings and frame rate
//   - Info: construction and resize
//   - Warn: lights skipped for lack of an atlas slot
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	loggerPtr.Store(l)
}

// Logger returns the current package logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
