package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const service = "notify-router"

type options struct {
	out       io.Writer
	addSource bool
}

type Option func(*options)

// WithOutput redirects log records, stdout by default.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.out = w
		}
	}
}

func WithSource() Option {
	return func(o *options) {
		o.addSource = true
	}
}

// New builds the process logger. Production writes JSON, every other
// environment writes human-readable text.
func New(lvl string, environment string, opts ...Option) *slog.Logger {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     ParseLevel(lvl),
		AddSource: o.addSource,
	}

	var handler slog.Handler
	if strings.ToLower(environment) == "prod" {
		handler = slog.NewJSONHandler(o.out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(o.out, handlerOpts)
	}

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("environment", environment),
	)
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
