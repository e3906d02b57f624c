package logger

import (
	"io"
	"log/slog"
	"strings"
)

type Backend string

const (
	BackendStd Backend = "std" // text in dev, JSON in stage/prod
	BackendZap Backend = "zap" // zap core behind slog
)

type Config struct {
	Service    string
	Version    string
	InstanceID string

	Level   slog.Level
	Env     Env
	Backend Backend // default: std for dev, zap otherwise
	Debug   bool

	// Zap sampling: SampleInitial entries per SampleTick seconds, then every
	// SampleThereafter-th.
	SampleInitial    int
	SampleThereafter int
	SampleTick       int

	AddSource bool

	// Output defaults to os.Stdout.
	Output io.Writer
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown values
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) level() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}
	return c.Level
}
