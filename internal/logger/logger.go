// Package logger builds the structured slog logger shared by every Flagscope binary.
// Output is JSON or text depending on configuration, and every record carries the
// service name, version and environment.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rafaeljc/flagscope/internal/config"
)

// redacted replaces the value of attributes that may hold credentials.
const redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"api_key":       {},
	"authorization": {},
	"password":      {},
}

// New returns a logger writing to os.Stdout.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.LogLevel),
		AddSource:   cfg.Environment != config.EnvironmentProduction,
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

// redact masks sensitive attribute values regardless of group nesting.
func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

// parseLevel converts a string to slog.Level. Defaults to INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
