package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelSilent is above every level the tool logs at.
const LevelSilent = slog.Level(16)

// ParseLogLevel maps a logLevel value to a slog level. An empty value is
// info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "silent":
		return LevelSilent, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (expected debug, info, warn, error or silent)", s)
	}
}
