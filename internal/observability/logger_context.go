// Package observability carries the request-scoped logger and correlation id
// through context, so the bot loop, usecases and adapters log coherently.
package observability

import (
	"context"
	"log/slog"
)

// loggerContextKey is the private context key used to store a *slog.Logger.
type loggerContextKey struct{}

// updateIDContextKey stores the transport update id that triggered the
// current unit of work, so deeper layers can correlate their logs with the
// inbound update.
type updateIDContextKey struct{}

// ContextWithLogger attaches a non-nil logger to the context.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, lg)
}

// LoggerFromContext returns the logger stored in the context or the default
// slog logger when none is present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if v := ctx.Value(loggerContextKey{}); v != nil {
		if lg, ok := v.(*slog.Logger); ok && lg != nil {
			return lg
		}
	}
	return slog.Default()
}

// ContextWithUpdateID stores a positive transport update id in the context.
func ContextWithUpdateID(ctx context.Context, updateID int64) context.Context {
	if ctx == nil || updateID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, updateIDContextKey{}, updateID)
}

// UpdateIDFromContext retrieves the update id, or zero when none is present.
func UpdateIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if v := ctx.Value(updateIDContextKey{}); v != nil {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
