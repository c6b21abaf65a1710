package log

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Setup initializes the process logger used by the CLI.
// logic: default to INFO and JSON. Unknown values fall back to those defaults.
func Setup(level string, format ...string) {
	once.Do(func() {
		f := "json"
		if len(format) > 0 {
			f = format[0]
		}
		logger = newLogger(os.Stdout, level, f)
		slog.SetDefault(logger)
	})
}

// New builds a standalone logger writing JSON to w. Components that take a
// logger through their constructor use this in tests and embedding code.
func New(w io.Writer, level string) *slog.Logger {
	return newLogger(w, level, "json")
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup("INFO")
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// ArenaAttr is the arena field, for loggers passed in rather than global.
func ArenaAttr(name string) slog.Attr {
	return slog.String("arena", name)
}

// TaskAttr is the task_id field. Ids are logged as strings.
func TaskAttr(id int64) slog.Attr {
	return slog.String("task_id", strconv.FormatInt(id, 10))
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}
