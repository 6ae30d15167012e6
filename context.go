package stagecraft

import (
	"context"
	"log/slog"
)

type ContextKey string

const (
	LoggerContextKey  ContextKey = "logger"
	SessionContextKey ContextKey = "session_id"
)

// WithLogger attaches a logger to the context passed into generation calls.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// WithSessionID attaches the owning session ID to a generation context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionContextKey, sessionID)
}

func GetLoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	logger, ok := ctx.Value(LoggerContextKey).(*slog.Logger)
	return logger, ok
}

func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(SessionContextKey).(string)
	return sessionID, ok
}
