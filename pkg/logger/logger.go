// Package logger provides centralized slog.Logger construction with
// configurable level, output format (text or JSON) and an optional rotating
// log file.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/juju/lumberjack/v2"
)

// Options configures a logger built by NewFromOptions.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text, json

	// File, when set, receives a copy of every record. The file is rotated
	// once it reaches MaxSizeMB.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a *slog.Logger configured with the given level and format.
// Level: "debug", "info", "warn", "error" (default: "info").
// Format: "json" or "text" (default: "text").
// Output goes to stderr.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewFromOptions creates a logger writing to stderr and, if configured, to a
// rotating file. The returned closer releases the file; it is a no-op when no
// file is configured.
func NewFromOptions(opts Options) (*slog.Logger, io.Closer) {
	if opts.File == "" {
		return New(opts.Level, opts.Format), nopCloser{}
	}

	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}

	w := io.MultiWriter(os.Stderr, rotating)
	return NewWithWriter(w, opts.Level, opts.Format), rotating
}

// NewWithWriter creates a *slog.Logger writing to w.
// Useful for testing or redirecting output.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel converts a level string to slog.Level.
// Recognized values: "debug", "warn", "error". Everything else returns LevelInfo.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
