package types

import (
	"context"
	"log/slog"
)

// Diagnostic is a structured event produced by an analysis step. Steps
// return diagnostics next to their best-effort value instead of logging
// directly; the engine forwards them to its logger.
type Diagnostic struct {
	Level   slog.Level
	Message string
	Attrs   []any
}

// Debug builds a debug-level Diagnostic.
func Debug(msg string, attrs ...any) Diagnostic {
	return Diagnostic{Level: slog.LevelDebug, Message: msg, Attrs: attrs}
}

// Warn builds a warn-level Diagnostic.
func Warn(msg string, attrs ...any) Diagnostic {
	return Diagnostic{Level: slog.LevelWarn, Message: msg, Attrs: attrs}
}

// Info builds an info-level Diagnostic.
func Info(msg string, attrs ...any) Diagnostic {
	return Diagnostic{Level: slog.LevelInfo, Message: msg, Attrs: attrs}
}

// Emit writes diagnostics to logger.
func Emit(ctx context.Context, logger *slog.Logger, diags []Diagnostic) {
	for _, d := range diags {
		logger.Log(ctx, d.Level, d.Message, d.Attrs...)
	}
}
