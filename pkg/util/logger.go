package util

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLogLevel accepts debug, info, warn or error. An empty level picks
// debug in development and info everywhere else.
func ParseLogLevel(env, level string) (slog.Level, error) {
	if strings.TrimSpace(level) == "" {
		if env == "development" {
			return slog.LevelDebug, nil
		}
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

// NewLogger writes text logs to stdout in development and JSON elsewhere.
func NewLogger(env, level string) *slog.Logger {
	return NewLoggerTo(os.Stdout, env, level)
}

func NewLoggerTo(w io.Writer, env, level string) *slog.Logger {
	lvl, err := ParseLogLevel(env, level)
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler).With("service", "pipedesk", "env", env)
	if err != nil {
		logger.Warn("falling back to info logging", "error", err)
	}
	return logger
}
