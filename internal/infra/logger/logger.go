package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"landowebtool/internal/infra/config"
)

// ServiceName is attached to every record.
const ServiceName = "landowebtool"

type options struct {
	reserveStdout bool
}

// Option tunes New.
type Option func(*options)

// ReserveStdout redirects an "stdout" output to stderr. The MCP stdio transport
// owns stdout while serving, so log lines there would corrupt the protocol.
func ReserveStdout() Option {
	return func(o *options) { o.reserveStdout = true }
}

// New creates a configured *slog.Logger.
// The returned closer function should be deferred to flush/close file handles.
func New(cfg config.LoggerConfig, opts ...Option) (*slog.Logger, func() error, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	output := cfg.Output
	if o.reserveStdout && strings.EqualFold(output, "stdout") {
		output = "stderr"
	}

	writer, closer, err := openOutput(output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	handler := newHandler(writer, cfg.Format, parseLevel(cfg.Level))
	return slog.New(handler).With("service", ServiceName), closer, nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel converts a string level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// openOutput returns an io.Writer for the specified output target.
func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	case "discard", "none":
		return io.Discard, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
