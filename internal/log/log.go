// Package log provides structured logging for the automation suite.
// It wraps slog with sensible defaults for production use.
package log

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// MirrorFunc receives a copy of every emitted record. The dashboard
// registers one to stream logs to connected operators.
type MirrorFunc func(level, msg string)

var (
	logger *slog.Logger
	once   sync.Once
	mirror atomic.Value
)

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
func Init(level string) {
	once.Do(func() {
		var lvl slog.Level
		switch level {
		case "debug":
			lvl = slog.LevelDebug
		case "warn":
			lvl = slog.LevelWarn
		case "error":
			lvl = slog.LevelError
		default:
			lvl = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{
			Level: lvl,
		}

		// Use JSON in production, text in development
		var inner slog.Handler
		if os.Getenv("GO_ENV") == "production" {
			inner = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			inner = slog.NewTextHandler(os.Stdout, opts)
		}

		logger = slog.New(&teeHandler{inner: inner})
		slog.SetDefault(logger)
	})
}

// SetMirror registers fn to receive a copy of every record. Passing nil
// removes the current mirror.
func SetMirror(fn MirrorFunc) {
	mirror.Store(fn)
}

// teeHandler forwards records to the configured handler and, when one is
// registered, to the mirror.
type teeHandler struct {
	inner slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.inner.Enabled(ctx, lvl)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	if fn, ok := mirror.Load().(MirrorFunc); ok && fn != nil {
		var b strings.Builder
		b.WriteString(r.Message)
		r.Attrs(func(a slog.Attr) bool {
			b.WriteByte(' ')
			b.WriteString(a.String())
			return true
		})
		fn(r.Level.String(), b.String())
	}
	return h.inner.Handle(ctx, r)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{inner: h.inner.WithGroup(name)}
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
