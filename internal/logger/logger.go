// Package logger provides the process-wide structured logger.
//
// Messages keep a bracketed component prefix ("[Batch] ...") followed by
// key/value pairs, rendered by charmbracelet/log on stderr.
package logger

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var std atomic.Pointer[log.Logger]

func init() {
	std.Store(New(os.Stderr, "info"))
}

// New creates a logger writing to w at the given level name
// (debug, info, warn, error). Unknown names fall back to info.
func New(w io.Writer, level string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           ParseLevel(level),
	})
}

// ParseLevel maps a level name to a log.Level.
func ParseLevel(level string) log.Level {
	l, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return l
}

// Default returns the process-wide logger.
func Default() *log.Logger {
	return std.Load()
}

// SetDefault replaces the process-wide logger. A nil logger is ignored.
func SetDefault(l *log.Logger) {
	if l != nil {
		std.Store(l)
	}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// Debug writes a message at DEBUG level to the default logger.
func Debug(msg string, keyvals ...any) { Default().Debug(msg, keyvals...) }

// Info writes a message at INFO level to the default logger.
func Info(msg string, keyvals ...any) { Default().Info(msg, keyvals...) }

// Warn writes a message at WARN level to the default logger.
func Warn(msg string, keyvals ...any) { Default().Warn(msg, keyvals...) }

// Error writes a message at ERROR level to the default logger.
func Error(msg string, keyvals ...any) { Default().Error(msg, keyvals...) }

// Fatal writes a message at FATAL level to the default logger and exits.
func Fatal(msg string, keyvals ...any) { Default().Fatal(msg, keyvals...) }
