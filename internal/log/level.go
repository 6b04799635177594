package log

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Levels beyond the slog built-ins.
const (
	LevelTrace  slog.Level = slog.LevelDebug - 4
	LevelSilent slog.Level = math.MaxInt32
)

// ParseLevel converts a level name (trace, debug, info, warn, error, silent)
// into a slog.Level. Names are case-insensitive; "warning" and "off" are
// accepted as aliases.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "silent", "off", "none":
		return LevelSilent, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// LevelName returns the canonical name of l.
func LevelName(l slog.Level) string {
	switch {
	case l >= LevelSilent:
		return "silent"
	case l <= LevelTrace:
		return "trace"
	case l <= slog.LevelDebug:
		return "debug"
	case l <= slog.LevelInfo:
		return "info"
	case l <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}
