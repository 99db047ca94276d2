// Package logging configures structured slog output for dkb.
//
// Log lines go to a size-rotated file under the dkb home directory so that
// the MCP stdio transport stays clean; stderr mirroring is optional and off
// while serving.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config controls log destination and verbosity.
type Config struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string
	// FilePath is the log file. Empty disables file logging.
	FilePath string
	// MaxSizeMB rotates the file once it exceeds this size.
	MaxSizeMB int
	// MaxFiles bounds how many rotated files are kept.
	MaxFiles int
	// Stderr mirrors log lines to stderr.
	Stderr bool
}

// DefaultConfig returns file logging under the dkb home directory.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		FilePath:  DefaultLogPath(),
		MaxSizeMB: 10,
		MaxFiles:  3,
		Stderr:    false,
	}
}

// DefaultLogPath returns the standard log file location.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".dkb", "dkb.log")
	}
	return filepath.Join(home, ".dkb", "dkb.log")
}

// Setup builds a JSON slog logger per cfg, installs it as the default, and
// returns a cleanup that flushes and closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var sinks []io.Writer
	cleanup := func() {}

	if cfg.FilePath != "" {
		w, err := newRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, w)
		cleanup = func() { _ = w.Close() }
	}
	if cfg.Stderr || len(sinks) == 0 {
		sinks = append(sinks, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(sinks...), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
