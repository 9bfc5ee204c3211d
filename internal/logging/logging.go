// Package logging owns the process-wide zerolog logger used by arenas built
// without WithLogger. It also parses log levels from configuration.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "PROTOARENA_LOG_LEVEL"
	EnvLogConsole = "PROTOARENA_LOG_CONSOLE"
)

var (
	configureOnce sync.Once
	logger        zerolog.Logger
)

// Logger returns the shared logger, configuring it from the environment on
// first use.
func Logger() *zerolog.Logger {
	configureOnce.Do(func() {
		logger = build(os.Stderr, os.Getenv(EnvLogLevel), os.Getenv(EnvLogConsole))
	})
	return &logger
}

// New builds a logger writing to w at the named level. Unknown or empty
// levels fall back to warn.
func New(w io.Writer, level string) zerolog.Logger {
	return build(w, level, "")
}

func build(w io.Writer, level, console string) zerolog.Logger {
	if v, ok := parseBool(console); ok && v {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, ok := ParseLevel(level)
	if !ok {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("component", "protoarena").Logger()
}

// ParseLevel maps a textual level to zerolog. The second result is false
// when raw is empty or unrecognised.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.WarnLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.WarnLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
