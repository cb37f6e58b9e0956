// Package logging builds the structured logger shared by the engine's components.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config configures the logger.
type Config struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string
	// Format is text or json.
	Format string
	// Output is stdout, stderr, or a file path.
	Output string
}

func DefaultConfig() Config {
	return Config{Level: "info", Format: "text", Output: "stderr"}
}

// New returns a logger for cfg. Unknown levels and formats fall back to info and text.
func New(cfg Config) (*slog.Logger, error) {
	var out io.Writer
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		out = f
	}
	return NewWriter(cfg, out), nil
}

// NewWriter is New with an explicit destination.
func NewWriter(cfg Config, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h)
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

// Discard drops everything. Used by tests and as a nil-logger stand-in.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Component tags l with the component name, tolerating a nil logger.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With("component", name)
}
