package contextutil

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerFromContext_ReturnsAttachedLogger(t *testing.T) {
	logger := slog.Default().With("request_id", "abc")
	ctx := WithLogger(context.Background(), logger)

	if got := LoggerFromContext(ctx); got != logger {
		t.Error("LoggerFromContext() did not return the attached logger")
	}
}

func TestLoggerFromContext_FallsBackToDefault(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != slog.Default() {
		t.Error("LoggerFromContext() should fall back to slog.Default()")
	}
}

func TestLoggerFromContext_IgnoresForeignKeyTypes(t *testing.T) {
	// A plain string key must not collide with the unexported key type.
	type stringKey string
	ctx := context.WithValue(context.Background(), stringKey("logger"), slog.Default().With("x", 1))

	if got := LoggerFromContext(ctx); got != slog.Default() {
		t.Error("LoggerFromContext() must only honor its own key type")
	}
}
