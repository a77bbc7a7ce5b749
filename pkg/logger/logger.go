package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger defines structured logging interface
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
	With(args ...any) Logger
}

// SlogLogger implements Logger using Go's standard log/slog
type SlogLogger struct {
	logger *slog.Logger
}

// Options configures a logger built with NewWithOptions
type Options struct {
	Level  string // debug, info, warn, error
	Format string // "json" or "text"
	Writer io.Writer

	// Service and Environment are attached to every entry when set
	Service     string
	Environment string
}

// Redacted replaces the value of credential attributes
const Redacted = "[REDACTED]"

// sensitiveKeys are attribute key suffixes whose values never reach the output
var sensitiveKeys = []string{"token", "secret", "password", "api_key", "apikey", "dsn", "authorization"}

// New creates a JSON logger on stdout with the specified level
func New(level string) Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithWriter creates a JSON logger writing to w
func NewWithWriter(level string, w io.Writer) Logger {
	return NewWithOptions(Options{Level: level, Writer: w})
}

// NewWithOptions builds a logger from opts. Unknown levels fall back to
// info and unknown formats to json.
func NewWithOptions(opts Options) Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	ho := &slog.HandlerOptions{Level: parseLevel(opts.Level), ReplaceAttr: redact}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(w, ho)
	} else {
		handler = slog.NewJSONHandler(w, ho)
	}

	l := slog.New(handler)
	if opts.Service != "" {
		l = l.With("service", opts.Service)
	}
	if opts.Environment != "" {
		l = l.With("environment", opts.Environment)
	}
	return &SlogLogger{logger: l}
}

func parseLevel(level string) slog.Level {
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

func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range sensitiveKeys {
		if strings.HasSuffix(key, s) {
			return slog.String(a.Key, Redacted)
		}
	}
	return a
}

// Info logs an informational message
func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Error logs an error message
func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// Warn logs a warning message
func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Debug logs a debug message
func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// With returns a new logger with the specified attributes
func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{logger: l.logger.With(args...)}
}

// Default returns a default logger instance
func Default() Logger {
	return New("info")
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return NewWithWriter("error", io.Discard)
}
