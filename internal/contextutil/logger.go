package contextutil

import (
	"context"
	"log/slog"
)

type contextKey string

const loggerKey contextKey = "logger"

// LoggerFromContext returns the request-scoped logger the HTTP
// middleware installed, or the process default when the context carries
// none. Handlers, stores, and the sync path all log through this so
// request attributes follow the work.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctxLogger := ctx.Value(loggerKey); ctxLogger != nil {
		if l, ok := ctxLogger.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

// LoggerKey is the context key the middleware stores the logger under.
func LoggerKey() contextKey {
	return loggerKey
}
