// Package logger provides structured logging with subsystem-specific levels
// and OpenTelemetry log bridging.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const loggerKey contextKey = "logger"

// Subsystems that get their own level.
const (
	SubsystemAPI     = "API"
	SubsystemVolumes = "VOLUMES"
)

// Config holds the default level and per-subsystem overrides.
type Config struct {
	DefaultLevel    slog.Level
	SubsystemLevels map[string]slog.Level
}

// NewConfig reads LOG_LEVEL and LOG_LEVEL_<SUBSYSTEM> from the environment.
func NewConfig() Config {
	cfg := Config{
		DefaultLevel:    parseLevel(os.Getenv("LOG_LEVEL"), slog.LevelInfo),
		SubsystemLevels: map[string]slog.Level{},
	}
	for _, s := range []string{SubsystemAPI, SubsystemVolumes} {
		if v := os.Getenv("LOG_LEVEL_" + s); v != "" {
			cfg.SubsystemLevels[s] = parseLevel(v, cfg.DefaultLevel)
		}
	}
	return cfg
}

// LevelFor returns the level configured for a subsystem.
func (c Config) LevelFor(subsystem string) slog.Level {
	if lvl, ok := c.SubsystemLevels[subsystem]; ok {
		return lvl
	}
	return c.DefaultLevel
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

// NewSubsystemLogger creates a JSON logger on stdout for a subsystem.
// If otelHandler is non-nil, records are also sent to it.
func NewSubsystemLogger(subsystem string, cfg Config, otelHandler slog.Handler) *slog.Logger {
	var h slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LevelFor(subsystem),
	})
	if otelHandler != nil {
		h = &fanoutHandler{handlers: []slog.Handler{h, otelHandler}, level: cfg.LevelFor(subsystem)}
	}
	return slog.New(h).With("subsystem", strings.ToLower(subsystem))
}

// AddToContext adds a logger to the context
func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or returns default
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
