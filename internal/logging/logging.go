// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// Level is one of debug, info, warn, error. Anything else means info.
	Level string
	// File is the rotated log file. Empty logs to Stdout only.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	Stdout io.Writer
}

// New returns a JSON logger writing to Stdout and, when configured, to a
// size-rotated file. The returned closer flushes and closes the file.
func New(o Options) (*slog.Logger, io.Closer) {
	out := o.Stdout
	if out == nil {
		out = os.Stdout
	}
	var closer io.Closer = nopCloser{}

	if o.File != "" {
		if err := os.MkdirAll(filepath.Dir(o.File), 0o755); err == nil {
			lj := &lumberjack.Logger{
				Filename:   o.File,
				MaxSize:    orDefault(o.MaxSizeMB, 10),
				MaxBackups: orDefault(o.MaxBackups, 3),
				MaxAge:     orDefault(o.MaxAgeDays, 28),
				Compress:   true,
			}
			out = io.MultiWriter(out, lj)
			closer = lj
		}
	}

	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(o.Level)})
	return slog.New(h), closer
}

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

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
