// Package logger builds *slog.Logger instances for the sync client and
// provides attribute helpers so every component names its fields the same
// way.
//
// New creates a logger from functional options (format, level, output,
// service attributes, context values). Context extractors run on every
// record, which lets callers attach session-scoped values such as the user
// id through the context instead of through logger.With.
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "roomsync"),
//	    logger.WithContextValue("session_id", sessionKey{}),
//	)
//	log.LogAttrs(ctx, slog.LevelInfo, "reconnect scheduled",
//	    logger.Transport("event-stream"),
//	    logger.Attempt(2),
//	    logger.Delay(6*time.Second),
//	)
//
// Helpers such as Error return an empty attribute for nil input, and slog
// drops empty attributes, so they can be passed unconditionally.
package logger
