// Package contextutil carries a request-scoped slog.Logger through
// context.Context.
package contextutil

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying the logger. Middleware attaches
// a request-scoped logger this way; coordinator and backend code retrieve
// it with LoggerFromContext.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the logger attached to ctx, or slog.Default()
// when none is attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
