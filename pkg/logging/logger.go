// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	if l, ok := lookupLevel(level); ok {
		return l
	}
	return zerolog.InfoLevel
}

func lookupLevel(level LogLevel) (zerolog.Level, bool) {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	default:
		return zerolog.NoLevel, false
	}
}

// ValidLevel reports whether level names a supported log level.
func ValidLevel(level string) bool {
	_, ok := lookupLevel(LogLevel(level))
	return ok
}

// Component names used with NewLogger.
const (
	ComponentFontCSS    = "fontcss"
	ComponentRewriter   = "rewriter"
	ComponentAssetProxy = "assetproxy"
	ComponentProxy      = "proxy"
	ComponentCache      = "cache"
	ComponentOrigin     = "origin"
)

// NewLogger creates a new logger with the given component name.
// Call it after Setup; it copies the global logger at call time.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Stylesheet cache hits and misses (url, tag)
//   - Rewritten documents and relayed font assets
//   - Per-request access lines
//
// Info: Normal operation events
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Non-200 stylesheet responses (link left in place)
//   - Cache errors (fallback to uncached fetch)
//   - Retry attempts against the origin
//   - Font upstream unreachable (502)
//
// Error: Error conditions requiring attention
//   - Isolated transform failures (element left unchanged)
//   - Site origin unreachable
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package
//   - url: stylesheet, asset or page URL
//   - tag: browser fingerprint tag of the cache key
//   - status_code: HTTP status code
//   - duration: Request or document duration
//   - error_class: Error classification (client, server, network)
