package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogHandler builds the slog handler for the configured level and
// format. Unknown values fall back to info/json, matching the config
// defaults.
func newLogHandler(w io.Writer, level, format string) slog.Handler {
	logLevel, ok := logLevels[strings.ToLower(level)]
	if !ok {
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	switch strings.ToLower(format) {
	case "text":
		return slog.NewTextHandler(w, opts)
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

func setupLogger(level, format string) *slog.Logger {
	return slog.New(newLogHandler(os.Stdout, level, format)).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}
