package client

import (
	"log/slog"

	xlog "github.com/smnsjas/go-xapi/internal/log"
)

// LevelSetter receives the resolved log level of each connect call.
// Level names are trace, debug, info, warn, error and silent.
type LevelSetter interface {
	SetLevel(level string) error
}

// LevelSetterFunc adapts a function to [LevelSetter].
type LevelSetterFunc func(level string) error

// SetLevel calls f(level).
func (f LevelSetterFunc) SetLevel(level string) error {
	return f(level)
}

type noopLevels struct{}

func (noopLevels) SetLevel(string) error { return nil }

// SlogLevel returns a [LevelSetter] that applies level names to v.
func SlogLevel(v *slog.LevelVar) LevelSetter {
	return LevelSetterFunc(func(level string) error {
		l, err := xlog.ParseLevel(level)
		if err != nil {
			return err
		}
		v.Set(l)
		return nil
	})
}
