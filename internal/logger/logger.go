// Package logger centralizes slog setup so every command and package logs
// through one configured logger instead of each reaching for its own.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// defaultLogger is process-wide; Setup replaces it, L() reads it.
var defaultLogger *slog.Logger

// Setup builds the default logger from GEOQUAD_LOG_LEVEL and
// GEOQUAD_LOG_FORMAT. Output always goes to stderr — the build artifact
// itself is the only thing that belongs on stdout.
func Setup() *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("GEOQUAD_LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	var h slog.Handler
	if strings.ToLower(os.Getenv("GEOQUAD_LOG_FORMAT")) == "json" {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	defaultLogger = slog.New(h)
	return defaultLogger
}

// L returns the default logger, initializing it with Setup on first use.
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup()
	}
	return defaultLogger
}
