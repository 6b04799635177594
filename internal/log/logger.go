package log

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the logger built by [New].
type Config struct {
	// Level is the initial level name (default: "warn").
	Level string

	// Format is "text" or "json" (default: "text").
	Format string

	// File, if set, receives log output instead of Output and is rotated
	// by size.
	File string

	// MaxSizeMB is the rotation threshold for File (default: 10).
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default: 3).
	MaxBackups int

	// Output is the destination when File is empty (default: os.Stderr).
	Output io.Writer
}

// Logger bundles a redacting slog.Logger with the LevelVar controlling it.
type Logger struct {
	*slog.Logger

	// Level adjusts verbosity at runtime.
	Level *slog.LevelVar

	closer io.Closer
}

// New builds a logger from cfg.
func New(cfg Config) (*Logger, error) {
	level := new(slog.LevelVar)
	name := cfg.Level
	if name == "" {
		name = "warn"
	}
	l, err := ParseLevel(name)
	if err != nil {
		return nil, err
	}
	level.Set(l)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer
	if cfg.File != "" {
		f := NewRotatingFile(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
		out, closer = f, f
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}

	return &Logger{
		Logger: slog.New(NewRedactingHandler(h)),
		Level:  level,
		closer: closer,
	}, nil
}

// SetLevel parses name and applies it to the logger.
func (l *Logger) SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	l.Level.Set(lvl)
	return nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// NewRotatingFile returns a writer that appends to path and rotates it once
// it grows beyond maxSizeMB megabytes, keeping maxBackups old files.
func NewRotatingFile(path string, maxSizeMB, maxBackups int) *lumberjack.Logger {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
}
