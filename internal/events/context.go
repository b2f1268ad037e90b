package events

import (
	"context"
)

type contextKey int

const (
	loggerKey contextKey = iota
	vaultIDKey
)

// FromContext extracts the logger from ctx, or returns a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Nop()
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithVaultID tags the context and its logger with a vault ID.
func WithVaultID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("vault_id", id)
	ctx = context.WithValue(ctx, vaultIDKey, id)
	return WithLogger(ctx, logger)
}

// GetVaultID retrieves the vault ID from the context.
func GetVaultID(ctx context.Context) string {
	if id, ok := ctx.Value(vaultIDKey).(string); ok {
		return id
	}
	return ""
}
