// Package observability builds the structured logger shared by the
// pipeline components. Logging is slog throughout: JSON for machines,
// text for terminals, with model API keys redacted from attribute
// values before they reach the output.
package observability

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// LogConfig configures logger construction.
type LogConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Empty or unrecognized values mean "info".
	Level string

	// Format is "json" or "text". Empty means "json".
	Format string

	// Output defaults to os.Stderr so data written to stdout (CSV,
	// corpus JSON) stays clean.
	Output io.Writer

	// AddSource includes file:line in records.
	AddSource bool
}

// redactPatterns match provider API keys that must never be logged.
var redactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{16,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{30,}`),
}

// NewLogger creates a *slog.Logger per the config.
func NewLogger(config LogConfig) *slog.Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       parseLevel(config.Level),
		AddSource:   config.AddSource,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(config.Output, opts)
	} else {
		handler = slog.NewJSONHandler(config.Output, opts)
	}
	return slog.New(handler)
}

// NewNopLogger returns a logger that discards everything, for tests.
func NewNopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func parseLevel(level string) slog.Level {
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

// redactAttr scrubs API-key shaped substrings from string attributes.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	redacted := s
	for _, re := range redactPatterns {
		redacted = re.ReplaceAllString(redacted, "[REDACTED]")
	}
	if redacted != s {
		a.Value = slog.StringValue(redacted)
	}
	return a
}
