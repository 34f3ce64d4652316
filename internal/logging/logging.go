// Package logging configures the shared slog logger. The daemon writes
// rotated files so transcript polling noise never lands on a terminal; the
// CLI logs to stderr at warn and above.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewDaemonLogger returns a logger writing size-rotated files at path.
func NewDaemonLogger(path string, debug bool) (*slog.Logger, io.Closer) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: level})
	return slog.New(handler), rotator
}

// NewCLILogger returns a stderr logger for one-shot commands.
func NewCLILogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	return slog.New(handler)
}

// Component tags a child logger with the subsystem that owns it.
func Component(log *slog.Logger, name string) *slog.Logger {
	return log.With("component", name)
}
