package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default(). It never returns nil.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// With enriches the logger stored in ctx with attrs and stores the result in a new context.
func With(ctx context.Context, attrs ...any) (context.Context, *slog.Logger) {
	l := FromContext(ctx).With(attrs...)
	return WithContext(ctx, l), l
}
