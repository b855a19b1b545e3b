// Package logger builds configured slog.Logger instances with optional
// context attribute injection.
//
// The factory returns a standard *slog.Logger so every component depends on
// log/slog directly; this package only owns construction (format, level,
// static attributes) and the decorator that pulls request-scoped values out
// of context at log time.
//
// Usage:
//
//	log := logger.New(
//	    logger.WithProduction("classboard"),
//	    logger.WithAttr(slog.String("component", "notifications")),
//	)
//	logger.SetAsDefault(log)
package logger
