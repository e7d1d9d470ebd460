// Package observability provides structured logging helpers for Yui.
//
// It wraps log/slog with trace ID propagation and an optional rotating log
// file so that every log line emitted during a turn carries the trace context.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bdobrica/yui/common/trace"
)

// Log file rotation.
const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 5
	fileMaxAgeDays = 30
)

// ParseLevel maps "debug", "warn" and "error" to their slog levels; anything
// else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler returns a text or JSON handler writing to w.
func NewHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Setup configures the global slog logger according to the provided level and
// format strings (e.g. level="info", format="json"). Logs go to stderr, which
// keeps stdout free for the console transport, and additionally to a rotating
// file when file is set. The returned function closes the file.
func Setup(level, format, file string) func() error {
	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }
	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
			MaxAge:     fileMaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, rotator)
		closeFn = rotator.Close
	}
	slog.SetDefault(slog.New(NewHandler(w, level, format)))
	return closeFn
}

// WithTrace returns a child logger that always includes the trace_id from ctx.
func WithTrace(ctx context.Context) *slog.Logger {
	return FromLogger(ctx, slog.Default())
}

// FromLogger is WithTrace for an explicit base logger.
func FromLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return logger
	}
	return logger.With("trace_id", traceID)
}
