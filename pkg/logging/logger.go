// Package logging configures the process-wide zerolog logger and hands out
// component loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelTrace LogLevel = "trace"
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Service is attached to every event when set.
	Service string

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Service: "chidata",
		Output:  os.Stderr,
	}
}

// ParseLevel converts a level name to zerolog.Level.
func ParseLevel(level LogLevel) (zerolog.Level, error) {
	switch strings.ToLower(string(level)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// Setup configures the global zerolog logger and returns it.
// Unknown levels fall back to info.
func Setup(cfg Config) zerolog.Logger {
	level, _ := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Per-page fetch progress (offset, limit, received)
//   - Cache operations (hit/miss, key, TTL)
//   - Snapshot queries
//
// Info: Normal operation events
//   - Completed fetches and refreshes
//   - Cache invalidation
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Portal throttling (429, cooldown active)
//   - Retry attempts
//   - Cache errors (fallback to direct fetch)
//
// Error: Error conditions requiring attention
//   - Failed fetches (transport or validation)
//   - Service unavailability
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting package (open-data-client, fetcher, table-cache, server, pgx)
//   - resource: Portal resource, e.g. r5kz-chrr.json
//   - dataset: Dataset name
//   - status_code: HTTP status code
//   - error_class: Error classification (client, server, throttled, network, decode)
//   - offset, limit: Page window
//   - duration: Request or fetch duration
//   - key, ttl: Cache key and entry TTL
